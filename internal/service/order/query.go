package order

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/cache"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/config"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/dto"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
	historyrepo "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/repository/history"
	orderrepo "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/repository/order"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/pkg/errorbank"
)

const statsCacheKey = "orders:stats"

// orderReader is the read-side slice of the order repository.
type orderReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	List(ctx context.Context, filter orderrepo.ListFilter) ([]entity.Order, int, error)
	CountByStatus(ctx context.Context, companyID *uuid.UUID) (map[entity.Status]int, error)
	StatsBetween(ctx context.Context, from, to time.Time) (orderrepo.MonthStats, error)
}

// historyReader reads the status ledger.
type historyReader interface {
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]entity.OrderStatusHistory, error)
}

// Query is the read side: scoped listing, history timelines, and admin
// aggregates. It enforces access scoping but no lifecycle rules.
type Query struct {
	orders   orderReader
	history  historyReader
	cache    cache.Store
	statsTTL time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// QueryParams defines dependencies for constructing Query.
type QueryParams struct {
	fx.In

	Orders  *orderrepo.Repository
	History *historyrepo.Repository
	Cache   cache.Store
	Config  config.Config
	Logger  *zap.Logger
}

// NewQuery wires the read-side service.
func NewQuery(p QueryParams) *Query {
	return &Query{
		orders:   p.Orders,
		history:  p.History,
		cache:    p.Cache,
		statsTTL: p.Config.Cache.StatsTTL,
		logger:   p.Logger,
		now:      time.Now,
	}
}

// Get fetches one order. Customers only see their own orders; a foreign
// order reads as not-found rather than forbidden.
func (q *Query) Get(ctx context.Context, orderID uuid.UUID, actor entity.Actor) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderQuery.Get", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	order, err := q.getCached(ctx, orderID)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) && q.logger != nil {
			q.logger.Warn("orders cache read failed", zap.String("id", orderID.String()), zap.Error(err))
		}
		order, err = q.orders.GetByID(ctx, orderID)
		if errors.Is(err, orderrepo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found")
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "repository error")
			return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}
	}

	if actor.Role == entity.RoleCustomer && order.CompanyID != actor.CompanyID {
		return nil, errorbank.NotFound("order not found")
	}
	return order, nil
}

// ListOwn returns the requester company's orders matching the filter.
func (q *Query) ListOwn(ctx context.Context, actor entity.Actor, filter dto.OrderFilter) ([]entity.Order, int, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderQuery.ListOwn")
	defer span.End()

	companyID := actor.CompanyID
	orders, total, err := q.orders.List(ctx, orderrepo.ListFilter{
		CompanyID: &companyID,
		Status:    filter.Status,
		From:      filter.From,
		To:        filter.To,
		Limit:     filter.Limit,
		Offset:    filter.Offset(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, 0, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, total, nil
}

// ListAll returns orders across all companies; admin only.
func (q *Query) ListAll(ctx context.Context, actor entity.Actor, filter dto.OrderFilter) ([]entity.Order, int, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderQuery.ListAll")
	defer span.End()

	if actor.Role != entity.RoleAdmin {
		return nil, 0, errorbank.Forbidden("admin role required")
	}
	orders, total, err := q.orders.List(ctx, orderrepo.ListFilter{
		Status: filter.Status,
		From:   filter.From,
		To:     filter.To,
		Limit:  filter.Limit,
		Offset: filter.Offset(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, 0, errorbank.Internal("failed to list orders", errorbank.WithCause(err))
	}
	return orders, total, nil
}

// History returns an order's full status timeline, oldest first. Customers
// may only read timelines of their own orders.
func (q *Query) History(ctx context.Context, orderID uuid.UUID, actor entity.Actor) ([]entity.OrderStatusHistory, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderQuery.History", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	order, err := q.orders.GetByID(ctx, orderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if actor.Role == entity.RoleCustomer && order.CompanyID != actor.CompanyID {
		return nil, errorbank.Forbidden("order belongs to another company")
	}

	entries, err := q.history.ListByOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger read failed")
		return nil, errorbank.Internal("failed to load order history", errorbank.WithCause(err))
	}
	return entries, nil
}

// Stats computes the admin dashboard aggregates: a status histogram plus
// month-over-month deltas over created_at calendar months in UTC.
func (q *Query) Stats(ctx context.Context, actor entity.Actor) (dto.StatsResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderQuery.Stats")
	defer span.End()

	if actor.Role != entity.RoleAdmin {
		return dto.StatsResponse{}, errorbank.Forbidden("admin role required")
	}

	if cached, err := q.cachedStats(ctx); err == nil {
		return cached, nil
	}

	counts, err := q.orders.CountByStatus(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return dto.StatsResponse{}, errorbank.Internal("failed to compute stats", errorbank.WithCause(err))
	}

	now := q.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	previousStart := monthStart.AddDate(0, -1, 0)

	current, err := q.orders.StatsBetween(ctx, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return dto.StatsResponse{}, errorbank.Internal("failed to compute stats", errorbank.WithCause(err))
	}
	previous, err := q.orders.StatsBetween(ctx, previousStart, monthStart)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return dto.StatsResponse{}, errorbank.Internal("failed to compute stats", errorbank.WithCause(err))
	}

	statusCounts := make(map[string]int, len(counts))
	for st, n := range counts {
		statusCounts[string(st)] = n
	}
	stats := dto.StatsResponse{
		StatusCounts:  statusCounts,
		CurrentMonth:  dto.MonthStats{Count: current.Count, TotalAmount: current.TotalAmount},
		PreviousMonth: dto.MonthStats{Count: previous.Count, TotalAmount: previous.TotalAmount},
		CountDelta:    current.Count - previous.Count,
		AmountDelta:   current.TotalAmount.Sub(previous.TotalAmount),
	}

	q.storeStats(ctx, stats)
	return stats, nil
}

func (q *Query) getCached(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	if q.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	payload, err := q.cache.Get(ctx, "orders:"+id.String())
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(payload, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (q *Query) cachedStats(ctx context.Context) (dto.StatsResponse, error) {
	if q.cache == nil {
		return dto.StatsResponse{}, cache.ErrCacheMiss
	}
	payload, err := q.cache.Get(ctx, statsCacheKey)
	if err != nil {
		return dto.StatsResponse{}, err
	}
	var stats dto.StatsResponse
	if err := json.Unmarshal(payload, &stats); err != nil {
		return dto.StatsResponse{}, err
	}
	return stats, nil
}

func (q *Query) storeStats(ctx context.Context, stats dto.StatsResponse) {
	if q.cache == nil {
		return
	}
	payload, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := q.cache.Set(ctx, statsCacheKey, payload, q.statsTTL); err != nil && q.logger != nil {
		q.logger.Warn("stats cache write failed", zap.Error(err))
	}
}
