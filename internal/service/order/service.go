package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/cache"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/config"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/database"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/messaging"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/pricing"
	historyrepo "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/repository/history"
	orderrepo "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/repository/order"
	quotationrepo "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/repository/quotation"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/pkg/errorbank"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/pkg/nfe"
)

var serviceTracer = otel.Tracer("github.com/oguarni/crescebr-b2b-marketplace-sub000/service/order")

// txRunner executes a function inside one writer transaction.
type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.IDB) error) error
}

// orderStore is the slice of the order repository the lifecycle needs.
type orderStore interface {
	Create(ctx context.Context, db bun.IDB, order *entity.Order) error
	GetForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*entity.Order, error)
	Update(ctx context.Context, db bun.IDB, order *entity.Order) error
}

// quotationStore reads and completes quotations during conversion.
type quotationStore interface {
	GetForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*entity.Quotation, error)
	SetStatus(ctx context.Context, db bun.IDB, id uuid.UUID, status entity.QuotationStatus) error
}

// ledger appends to the status history.
type ledger interface {
	Record(ctx context.Context, db bun.IDB, entry *entity.OrderStatusHistory) error
}

// UpdateFields carries the optional fields a status transition may set.
type UpdateFields struct {
	TrackingNumber        *string
	EstimatedDeliveryDate *time.Time
	Notes                 *string
	NFeAccessKey          *string
	NFeURL                *string
}

// FiscalPatch sets or corrects fiscal fields outside a transition.
type FiscalPatch struct {
	NFeAccessKey *string
	NFeURL       *string
}

// Service orchestrates the order lifecycle: quotation conversion, status
// transitions, and fiscal-field updates. Every mutation is one atomic
// read-validate-write transaction; order rows are mutated nowhere else.
type Service struct {
	tx         txRunner
	orders     orderStore
	quotations quotationStore
	ledger     ledger
	pricing    pricing.Calculator
	cache      cache.Store
	cacheTTL   time.Duration
	logger     *zap.Logger
	publisher  messaging.Client
	messaging  messagingConfig
	now        func() time.Time
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
	topic   string
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Conns      *database.Connections
	Orders     *orderrepo.Repository
	Quotations *quotationrepo.Repository
	History    *historyrepo.Repository
	Pricing    pricing.Calculator
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		tx:         p.Conns,
		orders:     p.Orders,
		quotations: p.Quotations,
		ledger:     p.History,
		pricing:    p.Pricing,
		cache:      p.Cache,
		cacheTTL:   p.Config.Cache.DefaultTTL,
		logger:     p.Logger,
		publisher:  p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
			topic:   p.Config.Messaging.Kafka.Topic,
		},
		now: time.Now,
	}
}

// CreateFromQuotation converts a processed, non-expired quotation owned by
// the requester into a pending order. The order insert, the implicit ledger
// entry, and the quotation completion commit together or not at all.
func (s *Service) CreateFromQuotation(ctx context.Context, quotationID uuid.UUID, actor entity.Actor) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.CreateFromQuotation", trace.WithAttributes(attribute.String("quotation.id", quotationID.String())))
	defer span.End()

	now := s.now().UTC()
	var order *entity.Order

	err := s.tx.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		quotation, err := s.quotations.GetForUpdate(ctx, tx, quotationID)
		if errors.Is(err, quotationrepo.ErrNotFound) {
			return errorbank.NotFound("quotation not found")
		}
		if err != nil {
			return errorbank.Internal("failed to load quotation", errorbank.WithCause(err))
		}
		// Ownership mismatch reads as not-found so non-owners cannot
		// probe for quotation existence.
		if quotation.CompanyID != actor.CompanyID {
			return errorbank.NotFound("quotation not found")
		}
		if quotation.Status != entity.QuotationProcessed {
			return errorbank.BadRequest(
				fmt.Sprintf("quotation is %s, only processed quotations can be converted", quotation.Status),
				errorbank.WithDetail("quotation_status", string(quotation.Status)),
			)
		}
		if quotation.ValidUntil != nil && quotation.ValidUntil.Before(now) {
			return errorbank.BadRequest(
				fmt.Sprintf("quotation expired on %s", quotation.ValidUntil.Format(time.RFC3339)),
				errorbank.WithDetail("valid_until", quotation.ValidUntil.Format(time.RFC3339)),
			)
		}

		total, err := s.pricing.GrandTotal(ctx, quotation.ID)
		if err != nil {
			return errorbank.Internal("failed to price quotation", errorbank.WithCause(err))
		}

		order = &entity.Order{
			ID:          uuid.New(),
			QuotationID: quotation.ID,
			CompanyID:   quotation.CompanyID,
			Status:      entity.StatusPending,
			TotalAmount: total,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.orders.Create(ctx, tx, order); err != nil {
			return errorbank.Internal("failed to create order", errorbank.WithCause(err))
		}

		// Implicit creation entry: from_status is null only here.
		if err := s.ledger.Record(ctx, tx, &entity.OrderStatusHistory{
			OrderID:   order.ID,
			ToStatus:  entity.StatusPending,
			ChangedBy: actor.ID,
			CreatedAt: now,
		}); err != nil {
			return errorbank.Internal("failed to record order history", errorbank.WithCause(err))
		}

		if err := s.quotations.SetStatus(ctx, tx, quotation.ID, entity.QuotationCompleted); err != nil {
			return errorbank.Internal("failed to complete quotation", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "conversion failed")
		return nil, err
	}

	s.refreshCache(ctx, order)
	s.publishEvent(ctx, Event{
		Type:        EventOrderCreated,
		OrderID:     order.ID,
		QuotationID: order.QuotationID,
		CompanyID:   order.CompanyID,
		ToStatus:    order.Status,
		TotalAmount: order.TotalAmount,
		ChangedBy:   actor.ID,
		OccurredAt:  now,
	})
	return order, nil
}

// UpdateStatus applies a role-gated status transition, optionally setting
// fulfillment and fiscal fields, and appends the ledger entry in the same
// transaction. The policy is evaluated against the row-locked current
// status, so racing transitions serialize instead of both passing.
func (s *Service) UpdateStatus(ctx context.Context, orderID uuid.UUID, requested entity.Status, actor entity.Actor, fields UpdateFields) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.String("order.requested_status", string(requested)),
	))
	defer span.End()

	if !requested.Valid() {
		return nil, errorbank.BadRequest(fmt.Sprintf("unknown status %q", requested), errorbank.WithDetail("field", "status"))
	}
	if err := validateTransitionFields(requested, fields); err != nil {
		return nil, err
	}
	if err := validateFiscal(fields.NFeAccessKey, fields.NFeURL); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var (
		order    *entity.Order
		previous entity.Status
	)

	err := s.tx.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		var err error
		order, err = s.orders.GetForUpdate(ctx, tx, orderID)
		if errors.Is(err, orderrepo.ErrNotFound) {
			return errorbank.NotFound("order not found")
		}
		if err != nil {
			return errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}

		previous = order.Status
		if err := CanTransition(previous, requested, actor.Role); err != nil {
			return err
		}

		order.Status = requested
		if fields.TrackingNumber != nil {
			order.TrackingNumber = fields.TrackingNumber
		}
		if fields.EstimatedDeliveryDate != nil {
			order.EstimatedDeliveryDate = fields.EstimatedDeliveryDate
		}
		if fields.NFeAccessKey != nil {
			order.NFeAccessKey = fields.NFeAccessKey
		}
		if fields.NFeURL != nil {
			order.NFeURL = fields.NFeURL
		}
		order.UpdatedAt = now

		if err := s.orders.Update(ctx, tx, order); err != nil {
			return errorbank.Internal("failed to update order", errorbank.WithCause(err))
		}
		if err := s.ledger.Record(ctx, tx, &entity.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: &previous,
			ToStatus:   requested,
			ChangedBy:  actor.ID,
			Notes:      fields.Notes,
			CreatedAt:  now,
		}); err != nil {
			return errorbank.Internal("failed to record order history", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		return nil, err
	}

	s.refreshCache(ctx, order)
	s.publishEvent(ctx, Event{
		Type:        EventOrderStatusChanged,
		OrderID:     order.ID,
		QuotationID: order.QuotationID,
		CompanyID:   order.CompanyID,
		FromStatus:  &previous,
		ToStatus:    order.Status,
		TotalAmount: order.TotalAmount,
		ChangedBy:   actor.ID,
		OccurredAt:  now,
	})
	return order, nil
}

// UpdateFiscalFields sets or corrects NF-e fields without a status change,
// e.g. when the fiscal document only becomes available after shipment.
// Partial updates are allowed; an omitted field keeps its stored value.
func (s *Service) UpdateFiscalFields(ctx context.Context, orderID uuid.UUID, patch FiscalPatch, actor entity.Actor) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateFiscalFields", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	if !actor.Role.Staff() {
		return nil, errorbank.Forbidden(
			"role is not allowed to update fiscal fields",
			errorbank.WithDetail("role", string(actor.Role)),
		)
	}
	if patch.NFeAccessKey == nil && patch.NFeURL == nil {
		return nil, errorbank.BadRequest("at least one fiscal field is required")
	}
	if err := validateFiscal(patch.NFeAccessKey, patch.NFeURL); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var order *entity.Order

	err := s.tx.RunInTx(ctx, func(ctx context.Context, tx bun.IDB) error {
		var err error
		order, err = s.orders.GetForUpdate(ctx, tx, orderID)
		if errors.Is(err, orderrepo.ErrNotFound) {
			return errorbank.NotFound("order not found")
		}
		if err != nil {
			return errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}

		if patch.NFeAccessKey != nil {
			order.NFeAccessKey = patch.NFeAccessKey
		}
		if patch.NFeURL != nil {
			order.NFeURL = patch.NFeURL
		}
		order.UpdatedAt = now

		if err := s.orders.Update(ctx, tx, order); err != nil {
			return errorbank.Internal("failed to update order", errorbank.WithCause(err))
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fiscal update failed")
		return nil, err
	}

	s.refreshCache(ctx, order)
	return order, nil
}

// validateTransitionFields rejects fulfillment fields on transitions that
// may not carry them: the delivery estimate and tracking number only travel
// with moves into processing or shipped.
func validateTransitionFields(requested entity.Status, fields UpdateFields) error {
	fulfillment := requested == entity.StatusProcessing || requested == entity.StatusShipped
	if fields.EstimatedDeliveryDate != nil && !fulfillment {
		return errorbank.BadRequest(
			"estimated_delivery_date may only be set when moving into processing or shipped",
			errorbank.WithDetail("field", "estimated_delivery_date"),
		)
	}
	if fields.TrackingNumber != nil && !fulfillment {
		return errorbank.BadRequest(
			"tracking_number may only be set when moving into processing or shipped",
			errorbank.WithDetail("field", "tracking_number"),
		)
	}
	return nil
}

// validateFiscal checks the NF-e access key checksum and URL shape.
func validateFiscal(key, rawURL *string) error {
	if key != nil && !nfe.Valid(*key) {
		return errorbank.BadRequest(
			"nfe_access_key must be 44 digits with a valid check digit",
			errorbank.WithDetail("field", "nfe_access_key"),
		)
	}
	if rawURL != nil {
		u, err := url.Parse(*rawURL)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return errorbank.BadRequest(
				"nfe_url must be a valid http(s) URL",
				errorbank.WithDetail("field", "nfe_url"),
			)
		}
	}
	return nil
}

func (s *Service) publishEvent(ctx context.Context, event Event) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal lifecycle event", zap.Error(err))
		}
		return
	}
	if err := s.publisher.Publish(ctx, []byte("order-"+event.OrderID.String()), payload); err != nil {
		if s.logger != nil {
			s.logger.Error("publish lifecycle event", zap.Error(err), zap.String("type", event.Type))
		}
	}
}

func (s *Service) cacheKey(id uuid.UUID) string {
	return "orders:" + id.String()
}

// refreshCache replaces the cached snapshot after a committed mutation.
func (s *Service) refreshCache(ctx context.Context, order *entity.Order) {
	if s.cache == nil || order == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(order.ID)); err != nil && s.logger != nil {
		s.logger.Warn("orders cache invalidation failed", zap.String("id", order.ID.String()), zap.Error(err))
	}
	payload, err := json.Marshal(order)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(order.ID), payload, s.cacheTTL); err != nil && s.logger != nil {
		s.logger.Warn("orders cache write failed", zap.String("id", order.ID.String()), zap.Error(err))
	}
}
