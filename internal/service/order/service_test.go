package order

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
	orderrepo "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/repository/order"
	quotationrepo "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/repository/quotation"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/pkg/errorbank"
)

// validAccessKey carries a correct Modulo-11 check digit.
const validAccessKey = "35240312345678000195550010000014761000047680"

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

type fakeTx struct {
	calls int
}

func (f *fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error {
	f.calls++
	return fn(ctx, nil)
}

type fakeOrders struct {
	byID      map[uuid.UUID]*entity.Order
	created   []*entity.Order
	updateErr error
}

func newFakeOrders(orders ...*entity.Order) *fakeOrders {
	f := &fakeOrders{byID: make(map[uuid.UUID]*entity.Order)}
	for _, o := range orders {
		f.byID[o.ID] = o
	}
	return f
}

func (f *fakeOrders) Create(_ context.Context, _ bun.IDB, order *entity.Order) error {
	f.created = append(f.created, order)
	f.byID[order.ID] = order
	return nil
}

func (f *fakeOrders) GetForUpdate(_ context.Context, _ bun.IDB, id uuid.UUID) (*entity.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (f *fakeOrders) Update(_ context.Context, _ bun.IDB, order *entity.Order) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.byID[order.ID]; !ok {
		return orderrepo.ErrNotFound
	}
	clone := *order
	f.byID[order.ID] = &clone
	return nil
}

type fakeQuotations struct {
	byID     map[uuid.UUID]*entity.Quotation
	statuses map[uuid.UUID]entity.QuotationStatus
}

func newFakeQuotations(quotations ...*entity.Quotation) *fakeQuotations {
	f := &fakeQuotations{
		byID:     make(map[uuid.UUID]*entity.Quotation),
		statuses: make(map[uuid.UUID]entity.QuotationStatus),
	}
	for _, q := range quotations {
		f.byID[q.ID] = q
	}
	return f
}

func (f *fakeQuotations) GetForUpdate(_ context.Context, _ bun.IDB, id uuid.UUID) (*entity.Quotation, error) {
	q, ok := f.byID[id]
	if !ok {
		return nil, quotationrepo.ErrNotFound
	}
	clone := *q
	return &clone, nil
}

func (f *fakeQuotations) SetStatus(_ context.Context, _ bun.IDB, id uuid.UUID, status entity.QuotationStatus) error {
	if _, ok := f.byID[id]; !ok {
		return quotationrepo.ErrNotFound
	}
	f.statuses[id] = status
	return nil
}

type fakeLedger struct {
	entries []*entity.OrderStatusHistory
	err     error
}

func (f *fakeLedger) Record(_ context.Context, _ bun.IDB, entry *entity.OrderStatusHistory) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

type fakePricing struct {
	total decimal.Decimal
	err   error
}

func (f fakePricing) GrandTotal(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return f.total, f.err
}

type serviceFixture struct {
	svc        *Service
	tx         *fakeTx
	orders     *fakeOrders
	quotations *fakeQuotations
	ledger     *fakeLedger
}

func newServiceFixture(orders *fakeOrders, quotations *fakeQuotations) *serviceFixture {
	tx := &fakeTx{}
	led := &fakeLedger{}
	return &serviceFixture{
		svc: &Service{
			tx:         tx,
			orders:     orders,
			quotations: quotations,
			ledger:     led,
			pricing:    fakePricing{total: decimal.RequireFromString("1250.50")},
			cacheTTL:   time.Minute,
			now:        func() time.Time { return fixedNow },
		},
		tx:         tx,
		orders:     orders,
		quotations: quotations,
		ledger:     led,
	}
}

func assertKind(t *testing.T, err error, kind errorbank.Kind) *errorbank.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("error = nil, want kind %s", kind)
	}
	appErr := errorbank.From(err)
	if appErr.Kind() != kind {
		t.Fatalf("error kind = %s (%v), want %s", appErr.Kind(), err, kind)
	}
	return appErr
}

func supplierFor(companyID uuid.UUID) entity.Actor {
	return entity.Actor{ID: uuid.New(), CompanyID: companyID, Role: entity.RoleSupplier}
}

func TestCreateFromQuotation(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()
	future := fixedNow.Add(48 * time.Hour)

	newQuotation := func(status entity.QuotationStatus, validUntil *time.Time) *entity.Quotation {
		return &entity.Quotation{
			ID:          uuid.New(),
			CompanyID:   companyID,
			Status:      status,
			ValidUntil:  validUntil,
			TotalAmount: decimal.RequireFromString("1250.50"),
		}
	}

	t.Run("converts a processed quotation", func(t *testing.T) {
		t.Parallel()
		quotation := newQuotation(entity.QuotationProcessed, &future)
		fix := newServiceFixture(newFakeOrders(), newFakeQuotations(quotation))

		order, err := fix.svc.CreateFromQuotation(context.Background(), quotation.ID, supplierFor(companyID))
		if err != nil {
			t.Fatalf("CreateFromQuotation() error = %v", err)
		}
		if order.Status != entity.StatusPending {
			t.Errorf("order status = %s, want pending", order.Status)
		}
		if order.QuotationID != quotation.ID || order.CompanyID != companyID {
			t.Errorf("order linkage = (%s, %s), want (%s, %s)", order.QuotationID, order.CompanyID, quotation.ID, companyID)
		}
		if !order.TotalAmount.Equal(decimal.RequireFromString("1250.50")) {
			t.Errorf("order total = %s, want 1250.50", order.TotalAmount)
		}
		if got := fix.quotations.statuses[quotation.ID]; got != entity.QuotationCompleted {
			t.Errorf("quotation status = %s, want completed", got)
		}
		if len(fix.ledger.entries) != 1 {
			t.Fatalf("ledger entries = %d, want 1", len(fix.ledger.entries))
		}
		entry := fix.ledger.entries[0]
		if entry.FromStatus != nil || entry.ToStatus != entity.StatusPending {
			t.Errorf("creation ledger entry = (%v, %s), want (nil, pending)", entry.FromStatus, entry.ToStatus)
		}
	})

	t.Run("unknown quotation reads as not found", func(t *testing.T) {
		t.Parallel()
		fix := newServiceFixture(newFakeOrders(), newFakeQuotations())
		_, err := fix.svc.CreateFromQuotation(context.Background(), uuid.New(), supplierFor(companyID))
		assertKind(t, err, errorbank.KindNotFound)
	})

	t.Run("foreign quotation reads as not found", func(t *testing.T) {
		t.Parallel()
		quotation := newQuotation(entity.QuotationProcessed, &future)
		fix := newServiceFixture(newFakeOrders(), newFakeQuotations(quotation))
		_, err := fix.svc.CreateFromQuotation(context.Background(), quotation.ID, supplierFor(uuid.New()))
		assertKind(t, err, errorbank.KindNotFound)
	})

	t.Run("already completed quotation is rejected", func(t *testing.T) {
		t.Parallel()
		quotation := newQuotation(entity.QuotationCompleted, &future)
		fix := newServiceFixture(newFakeOrders(), newFakeQuotations(quotation))
		_, err := fix.svc.CreateFromQuotation(context.Background(), quotation.ID, supplierFor(companyID))
		appErr := assertKind(t, err, errorbank.KindBadRequest)
		if !strings.Contains(appErr.Message(), "completed") {
			t.Errorf("message = %q, want it to name the quotation status", appErr.Message())
		}
		if len(fix.orders.created) != 0 {
			t.Errorf("orders created = %d, want 0", len(fix.orders.created))
		}
	})

	t.Run("expired quotation names the expiry date", func(t *testing.T) {
		t.Parallel()
		expired := fixedNow.Add(-time.Hour)
		quotation := newQuotation(entity.QuotationProcessed, &expired)
		fix := newServiceFixture(newFakeOrders(), newFakeQuotations(quotation))
		_, err := fix.svc.CreateFromQuotation(context.Background(), quotation.ID, supplierFor(companyID))
		appErr := assertKind(t, err, errorbank.KindBadRequest)
		if !strings.Contains(appErr.Message(), expired.Format(time.RFC3339)) {
			t.Errorf("message = %q, want it to contain %s", appErr.Message(), expired.Format(time.RFC3339))
		}
		if len(fix.orders.created) != 0 {
			t.Errorf("orders created = %d, want 0", len(fix.orders.created))
		}
		if _, changed := fix.quotations.statuses[quotation.ID]; changed {
			t.Error("quotation status changed on rejected conversion")
		}
	})

	t.Run("quotation without expiry converts", func(t *testing.T) {
		t.Parallel()
		quotation := newQuotation(entity.QuotationProcessed, nil)
		fix := newServiceFixture(newFakeOrders(), newFakeQuotations(quotation))
		if _, err := fix.svc.CreateFromQuotation(context.Background(), quotation.ID, supplierFor(companyID)); err != nil {
			t.Fatalf("CreateFromQuotation() error = %v", err)
		}
	})

	t.Run("ledger failure aborts the conversion", func(t *testing.T) {
		t.Parallel()
		quotation := newQuotation(entity.QuotationProcessed, &future)
		fix := newServiceFixture(newFakeOrders(), newFakeQuotations(quotation))
		fix.ledger.err = errors.New("insert failed")

		_, err := fix.svc.CreateFromQuotation(context.Background(), quotation.ID, supplierFor(companyID))
		assertKind(t, err, errorbank.KindInternal)
		if _, completed := fix.quotations.statuses[quotation.ID]; completed {
			t.Error("quotation completed despite aborted transaction")
		}
	})
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()

	newOrder := func(status entity.Status) *entity.Order {
		return &entity.Order{
			ID:          uuid.New(),
			QuotationID: uuid.New(),
			CompanyID:   companyID,
			Status:      status,
			TotalAmount: decimal.RequireFromString("99.90"),
		}
	}

	t.Run("legal transition records the ledger entry", func(t *testing.T) {
		t.Parallel()
		order := newOrder(entity.StatusPending)
		fix := newServiceFixture(newFakeOrders(order), newFakeQuotations())

		eta := fixedNow.Add(72 * time.Hour)
		notes := "picked by carrier"
		updated, err := fix.svc.UpdateStatus(context.Background(), order.ID, entity.StatusProcessing, supplierFor(companyID), UpdateFields{
			EstimatedDeliveryDate: &eta,
			Notes:                 &notes,
		})
		if err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}
		if updated.Status != entity.StatusProcessing {
			t.Errorf("status = %s, want processing", updated.Status)
		}
		if updated.EstimatedDeliveryDate == nil || !updated.EstimatedDeliveryDate.Equal(eta) {
			t.Errorf("estimated delivery = %v, want %v", updated.EstimatedDeliveryDate, eta)
		}
		if len(fix.ledger.entries) != 1 {
			t.Fatalf("ledger entries = %d, want 1", len(fix.ledger.entries))
		}
		entry := fix.ledger.entries[0]
		if entry.FromStatus == nil || *entry.FromStatus != entity.StatusPending || entry.ToStatus != entity.StatusProcessing {
			t.Errorf("ledger entry = (%v, %s), want (pending, processing)", entry.FromStatus, entry.ToStatus)
		}
		if entry.Notes == nil || *entry.Notes != notes {
			t.Errorf("ledger notes = %v, want %q", entry.Notes, notes)
		}
	})

	t.Run("skipping a state is rejected", func(t *testing.T) {
		t.Parallel()
		order := newOrder(entity.StatusPending)
		fix := newServiceFixture(newFakeOrders(order), newFakeQuotations())

		_, err := fix.svc.UpdateStatus(context.Background(), order.ID, entity.StatusShipped, supplierFor(companyID), UpdateFields{})
		assertKind(t, err, errorbank.KindBadRequest)
		if got := fix.orders.byID[order.ID].Status; got != entity.StatusPending {
			t.Errorf("stored status = %s, want pending untouched", got)
		}
		if len(fix.ledger.entries) != 0 {
			t.Errorf("ledger entries = %d, want 0", len(fix.ledger.entries))
		}
	})

	t.Run("customer cannot transition", func(t *testing.T) {
		t.Parallel()
		order := newOrder(entity.StatusPending)
		fix := newServiceFixture(newFakeOrders(order), newFakeQuotations())

		actor := entity.Actor{ID: uuid.New(), CompanyID: companyID, Role: entity.RoleCustomer}
		_, err := fix.svc.UpdateStatus(context.Background(), order.ID, entity.StatusCancelled, actor, UpdateFields{})
		assertKind(t, err, errorbank.KindForbidden)
	})

	t.Run("unknown status fails before the transaction", func(t *testing.T) {
		t.Parallel()
		order := newOrder(entity.StatusPending)
		fix := newServiceFixture(newFakeOrders(order), newFakeQuotations())

		_, err := fix.svc.UpdateStatus(context.Background(), order.ID, "archived", supplierFor(companyID), UpdateFields{})
		assertKind(t, err, errorbank.KindBadRequest)
		if fix.tx.calls != 0 {
			t.Errorf("tx calls = %d, want 0", fix.tx.calls)
		}
	})

	t.Run("fulfillment fields only travel into processing or shipped", func(t *testing.T) {
		t.Parallel()
		order := newOrder(entity.StatusPending)
		fix := newServiceFixture(newFakeOrders(order), newFakeQuotations())

		tracking := "BR123456789"
		_, err := fix.svc.UpdateStatus(context.Background(), order.ID, entity.StatusCancelled, supplierFor(companyID), UpdateFields{
			TrackingNumber: &tracking,
		})
		assertKind(t, err, errorbank.KindBadRequest)
		if fix.tx.calls != 0 {
			t.Errorf("tx calls = %d, want 0", fix.tx.calls)
		}
	})

	t.Run("invalid access key is rejected up front", func(t *testing.T) {
		t.Parallel()
		order := newOrder(entity.StatusProcessing)
		fix := newServiceFixture(newFakeOrders(order), newFakeQuotations())

		bad := strings.Repeat("1", 44)
		_, err := fix.svc.UpdateStatus(context.Background(), order.ID, entity.StatusShipped, supplierFor(companyID), UpdateFields{
			NFeAccessKey: &bad,
		})
		assertKind(t, err, errorbank.KindBadRequest)
	})

	t.Run("shipping carries fiscal fields", func(t *testing.T) {
		t.Parallel()
		order := newOrder(entity.StatusProcessing)
		fix := newServiceFixture(newFakeOrders(order), newFakeQuotations())

		key := validAccessKey
		nfeURL := "https://nfe.fazenda.gov.br/danfe/4768"
		tracking := "BR123456789"
		updated, err := fix.svc.UpdateStatus(context.Background(), order.ID, entity.StatusShipped, supplierFor(companyID), UpdateFields{
			TrackingNumber: &tracking,
			NFeAccessKey:   &key,
			NFeURL:         &nfeURL,
		})
		if err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}
		if updated.NFeAccessKey == nil || *updated.NFeAccessKey != key {
			t.Errorf("access key = %v, want %q", updated.NFeAccessKey, key)
		}
		if updated.TrackingNumber == nil || *updated.TrackingNumber != tracking {
			t.Errorf("tracking = %v, want %q", updated.TrackingNumber, tracking)
		}
	})

	t.Run("missing order reads as not found", func(t *testing.T) {
		t.Parallel()
		fix := newServiceFixture(newFakeOrders(), newFakeQuotations())
		_, err := fix.svc.UpdateStatus(context.Background(), uuid.New(), entity.StatusCancelled, supplierFor(companyID), UpdateFields{})
		assertKind(t, err, errorbank.KindNotFound)
	})

	t.Run("ledger failure surfaces as internal", func(t *testing.T) {
		t.Parallel()
		order := newOrder(entity.StatusPending)
		fix := newServiceFixture(newFakeOrders(order), newFakeQuotations())
		fix.ledger.err = errors.New("insert failed")

		_, err := fix.svc.UpdateStatus(context.Background(), order.ID, entity.StatusProcessing, supplierFor(companyID), UpdateFields{})
		assertKind(t, err, errorbank.KindInternal)
	})
}

func TestUpdateFiscalFields(t *testing.T) {
	t.Parallel()

	companyID := uuid.New()

	newOrder := func() *entity.Order {
		return &entity.Order{
			ID:          uuid.New(),
			QuotationID: uuid.New(),
			CompanyID:   companyID,
			Status:      entity.StatusShipped,
			TotalAmount: decimal.RequireFromString("99.90"),
		}
	}

	t.Run("sets fiscal fields without a transition", func(t *testing.T) {
		t.Parallel()
		order := newOrder()
		fix := newServiceFixture(newFakeOrders(order), newFakeQuotations())

		key := validAccessKey
		updated, err := fix.svc.UpdateFiscalFields(context.Background(), order.ID, FiscalPatch{NFeAccessKey: &key}, supplierFor(companyID))
		if err != nil {
			t.Fatalf("UpdateFiscalFields() error = %v", err)
		}
		if updated.Status != entity.StatusShipped {
			t.Errorf("status = %s, want shipped unchanged", updated.Status)
		}
		if updated.NFeAccessKey == nil || *updated.NFeAccessKey != key {
			t.Errorf("access key = %v, want %q", updated.NFeAccessKey, key)
		}
		if len(fix.ledger.entries) != 0 {
			t.Errorf("ledger entries = %d, want 0 for fiscal-only update", len(fix.ledger.entries))
		}
	})

	t.Run("partial patch keeps the other field", func(t *testing.T) {
		t.Parallel()
		order := newOrder()
		existing := validAccessKey
		order.NFeAccessKey = &existing
		fix := newServiceFixture(newFakeOrders(order), newFakeQuotations())

		nfeURL := "https://nfe.fazenda.gov.br/danfe/4768"
		updated, err := fix.svc.UpdateFiscalFields(context.Background(), order.ID, FiscalPatch{NFeURL: &nfeURL}, supplierFor(companyID))
		if err != nil {
			t.Fatalf("UpdateFiscalFields() error = %v", err)
		}
		if updated.NFeAccessKey == nil || *updated.NFeAccessKey != existing {
			t.Errorf("access key = %v, want stored value kept", updated.NFeAccessKey)
		}
		if updated.NFeURL == nil || *updated.NFeURL != nfeURL {
			t.Errorf("nfe url = %v, want %q", updated.NFeURL, nfeURL)
		}
	})

	t.Run("customer is forbidden", func(t *testing.T) {
		t.Parallel()
		order := newOrder()
		fix := newServiceFixture(newFakeOrders(order), newFakeQuotations())

		key := validAccessKey
		actor := entity.Actor{ID: uuid.New(), CompanyID: companyID, Role: entity.RoleCustomer}
		_, err := fix.svc.UpdateFiscalFields(context.Background(), order.ID, FiscalPatch{NFeAccessKey: &key}, actor)
		assertKind(t, err, errorbank.KindForbidden)
	})

	t.Run("empty patch is rejected", func(t *testing.T) {
		t.Parallel()
		order := newOrder()
		fix := newServiceFixture(newFakeOrders(order), newFakeQuotations())
		_, err := fix.svc.UpdateFiscalFields(context.Background(), order.ID, FiscalPatch{}, supplierFor(companyID))
		assertKind(t, err, errorbank.KindBadRequest)
	})

	t.Run("rejects non-http url", func(t *testing.T) {
		t.Parallel()
		order := newOrder()
		fix := newServiceFixture(newFakeOrders(order), newFakeQuotations())

		nfeURL := "ftp://nfe.fazenda.gov.br/danfe"
		_, err := fix.svc.UpdateFiscalFields(context.Background(), order.ID, FiscalPatch{NFeURL: &nfeURL}, supplierFor(companyID))
		assertKind(t, err, errorbank.KindBadRequest)
	})
}
