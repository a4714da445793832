package order

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/dto"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
	orderrepo "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/repository/order"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/pkg/errorbank"
)

type fakeOrderReader struct {
	byID       map[uuid.UUID]*entity.Order
	list       []entity.Order
	total      int
	lastFilter orderrepo.ListFilter
	counts     map[entity.Status]int
	months     map[time.Time]orderrepo.MonthStats
}

func (f *fakeOrderReader) GetByID(_ context.Context, id uuid.UUID) (*entity.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (f *fakeOrderReader) List(_ context.Context, filter orderrepo.ListFilter) ([]entity.Order, int, error) {
	f.lastFilter = filter
	return f.list, f.total, nil
}

func (f *fakeOrderReader) CountByStatus(context.Context, *uuid.UUID) (map[entity.Status]int, error) {
	return f.counts, nil
}

func (f *fakeOrderReader) StatsBetween(_ context.Context, from, _ time.Time) (orderrepo.MonthStats, error) {
	return f.months[from], nil
}

type fakeHistoryReader struct {
	entries []entity.OrderStatusHistory
}

func (f *fakeHistoryReader) ListByOrder(context.Context, uuid.UUID) ([]entity.OrderStatusHistory, error) {
	return f.entries, nil
}

func newQueryFixture(orders *fakeOrderReader, history *fakeHistoryReader) *Query {
	if history == nil {
		history = &fakeHistoryReader{}
	}
	return &Query{
		orders:   orders,
		history:  history,
		statsTTL: time.Minute,
		now:      func() time.Time { return fixedNow },
	}
}

func TestQueryGet(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	order := &entity.Order{ID: uuid.New(), CompanyID: companyID, Status: entity.StatusPending}
	reader := &fakeOrderReader{byID: map[uuid.UUID]*entity.Order{order.ID: order}}
	q := newQueryFixture(reader, nil)

	t.Run("owner reads their order", func(t *testing.T) {
		t.Parallel()
		actor := entity.Actor{ID: uuid.New(), CompanyID: companyID, Role: entity.RoleCustomer}
		got, err := q.Get(context.Background(), order.ID, actor)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.ID != order.ID {
			t.Errorf("order id = %s, want %s", got.ID, order.ID)
		}
	})

	t.Run("foreign order reads as not found for customers", func(t *testing.T) {
		t.Parallel()
		actor := entity.Actor{ID: uuid.New(), CompanyID: uuid.New(), Role: entity.RoleCustomer}
		_, err := q.Get(context.Background(), order.ID, actor)
		assertKind(t, err, errorbank.KindNotFound)
	})

	t.Run("staff read across companies", func(t *testing.T) {
		t.Parallel()
		actor := entity.Actor{ID: uuid.New(), CompanyID: uuid.New(), Role: entity.RoleAdmin}
		if _, err := q.Get(context.Background(), order.ID, actor); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	})

	t.Run("missing order reads as not found", func(t *testing.T) {
		t.Parallel()
		actor := entity.Actor{ID: uuid.New(), CompanyID: companyID, Role: entity.RoleAdmin}
		_, err := q.Get(context.Background(), uuid.New(), actor)
		assertKind(t, err, errorbank.KindNotFound)
	})
}

func TestQueryListOwnScopesToCompany(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	reader := &fakeOrderReader{list: []entity.Order{{ID: uuid.New()}}, total: 1}
	q := newQueryFixture(reader, nil)

	actor := entity.Actor{ID: uuid.New(), CompanyID: companyID, Role: entity.RoleCustomer}
	status := entity.StatusShipped
	_, total, err := q.ListOwn(context.Background(), actor, dto.OrderFilter{Status: &status, Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("ListOwn() error = %v", err)
	}
	if total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
	if reader.lastFilter.CompanyID == nil || *reader.lastFilter.CompanyID != companyID {
		t.Errorf("company filter = %v, want %s", reader.lastFilter.CompanyID, companyID)
	}
	if reader.lastFilter.Status == nil || *reader.lastFilter.Status != entity.StatusShipped {
		t.Errorf("status filter = %v, want shipped", reader.lastFilter.Status)
	}
	if reader.lastFilter.Offset != 10 || reader.lastFilter.Limit != 10 {
		t.Errorf("pagination = (offset %d, limit %d), want (10, 10)", reader.lastFilter.Offset, reader.lastFilter.Limit)
	}
}

func TestQueryListAll(t *testing.T) {
	t.Parallel()

	t.Run("admin lists across companies", func(t *testing.T) {
		t.Parallel()
		reader := &fakeOrderReader{list: []entity.Order{{ID: uuid.New()}}, total: 1}
		q := newQueryFixture(reader, nil)

		actor := entity.Actor{ID: uuid.New(), CompanyID: uuid.New(), Role: entity.RoleAdmin}
		if _, _, err := q.ListAll(context.Background(), actor, dto.OrderFilter{Page: 1, Limit: 20}); err != nil {
			t.Fatalf("ListAll() error = %v", err)
		}
		if reader.lastFilter.CompanyID != nil {
			t.Errorf("company filter = %v, want nil", reader.lastFilter.CompanyID)
		}
	})

	t.Run("supplier is forbidden", func(t *testing.T) {
		t.Parallel()
		q := newQueryFixture(&fakeOrderReader{}, nil)
		actor := entity.Actor{ID: uuid.New(), CompanyID: uuid.New(), Role: entity.RoleSupplier}
		_, _, err := q.ListAll(context.Background(), actor, dto.OrderFilter{Page: 1, Limit: 20})
		assertKind(t, err, errorbank.KindForbidden)
	})
}

func TestQueryHistory(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	order := &entity.Order{ID: uuid.New(), CompanyID: companyID, Status: entity.StatusDelivered}
	from := entity.StatusPending
	history := &fakeHistoryReader{entries: []entity.OrderStatusHistory{
		{OrderID: order.ID, ToStatus: entity.StatusPending},
		{OrderID: order.ID, FromStatus: &from, ToStatus: entity.StatusProcessing},
	}}
	reader := &fakeOrderReader{byID: map[uuid.UUID]*entity.Order{order.ID: order}}
	q := newQueryFixture(reader, history)

	t.Run("owner reads the timeline", func(t *testing.T) {
		t.Parallel()
		actor := entity.Actor{ID: uuid.New(), CompanyID: companyID, Role: entity.RoleCustomer}
		entries, err := q.History(context.Background(), order.ID, actor)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("entries = %d, want 2", len(entries))
		}
		if entries[0].FromStatus != nil {
			t.Errorf("first entry from = %v, want nil creation entry", entries[0].FromStatus)
		}
	})

	t.Run("foreign timeline is forbidden for customers", func(t *testing.T) {
		t.Parallel()
		actor := entity.Actor{ID: uuid.New(), CompanyID: uuid.New(), Role: entity.RoleCustomer}
		_, err := q.History(context.Background(), order.ID, actor)
		assertKind(t, err, errorbank.KindForbidden)
	})

	t.Run("missing order reads as not found", func(t *testing.T) {
		t.Parallel()
		actor := entity.Actor{ID: uuid.New(), CompanyID: companyID, Role: entity.RoleAdmin}
		_, err := q.History(context.Background(), uuid.New(), actor)
		assertKind(t, err, errorbank.KindNotFound)
	})
}

func TestQueryStats(t *testing.T) {
	t.Parallel()

	marchStart := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	februaryStart := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)

	reader := &fakeOrderReader{
		counts: map[entity.Status]int{
			entity.StatusPending:   3,
			entity.StatusDelivered: 7,
		},
		months: map[time.Time]orderrepo.MonthStats{
			marchStart:    {Count: 5, TotalAmount: decimal.RequireFromString("5000.00")},
			februaryStart: {Count: 2, TotalAmount: decimal.RequireFromString("1800.50")},
		},
	}
	q := newQueryFixture(reader, nil)

	t.Run("admin gets month over month deltas", func(t *testing.T) {
		t.Parallel()
		actor := entity.Actor{ID: uuid.New(), CompanyID: uuid.New(), Role: entity.RoleAdmin}
		stats, err := q.Stats(context.Background(), actor)
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if stats.StatusCounts["pending"] != 3 || stats.StatusCounts["delivered"] != 7 {
			t.Errorf("status counts = %v", stats.StatusCounts)
		}
		if stats.CountDelta != 3 {
			t.Errorf("count delta = %d, want 3", stats.CountDelta)
		}
		if !stats.AmountDelta.Equal(decimal.RequireFromString("3199.50")) {
			t.Errorf("amount delta = %s, want 3199.50", stats.AmountDelta)
		}
		if stats.CurrentMonth.Count != 5 || stats.PreviousMonth.Count != 2 {
			t.Errorf("month counts = (%d, %d), want (5, 2)", stats.CurrentMonth.Count, stats.PreviousMonth.Count)
		}
	})

	t.Run("non admin is forbidden", func(t *testing.T) {
		t.Parallel()
		for _, role := range []entity.Role{entity.RoleSupplier, entity.RoleCustomer} {
			actor := entity.Actor{ID: uuid.New(), CompanyID: uuid.New(), Role: role}
			_, err := q.Stats(context.Background(), actor)
			assertKind(t, err, errorbank.KindForbidden)
		}
	})
}
