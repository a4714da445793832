package order

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/dto"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/presentation/http/response"
	service "github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/service/order"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/transport/http/middleware"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/oguarni/crescebr-b2b-marketplace-sub000/transport/http/order")

// lifecycleService is the mutation surface the handler drives.
type lifecycleService interface {
	CreateFromQuotation(ctx context.Context, quotationID uuid.UUID, actor entity.Actor) (*entity.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, requested entity.Status, actor entity.Actor, fields service.UpdateFields) (*entity.Order, error)
	UpdateFiscalFields(ctx context.Context, orderID uuid.UUID, patch service.FiscalPatch, actor entity.Actor) (*entity.Order, error)
}

// queryService is the read surface the handler drives.
type queryService interface {
	Get(ctx context.Context, orderID uuid.UUID, actor entity.Actor) (*entity.Order, error)
	ListOwn(ctx context.Context, actor entity.Actor, filter dto.OrderFilter) ([]entity.Order, int, error)
	ListAll(ctx context.Context, actor entity.Actor, filter dto.OrderFilter) ([]entity.Order, int, error)
	History(ctx context.Context, orderID uuid.UUID, actor entity.Actor) ([]entity.OrderStatusHistory, error)
	Stats(ctx context.Context, actor entity.Actor) (dto.StatsResponse, error)
}

// Handler exposes order lifecycle endpoints over HTTP.
type Handler struct {
	svc     lifecycleService
	queries queryService
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service, queries *service.Query) *Handler {
	return &Handler{svc: svc, queries: queries}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders", middleware.Identity())
	g.POST("", h.create)
	g.GET("", h.listOwn)
	g.GET("/admin/all", h.listAll)
	g.GET("/admin/stats", h.stats)
	g.GET("/:id", h.getByID)
	g.PUT("/:id/status", h.updateStatus)
	g.PATCH("/:id/nfe", h.updateFiscal)
	g.GET("/:id/history", h.history)
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("identity required")).Build()
	}

	var payload dto.CreateOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.QuotationID == uuid.Nil {
		return b.WithError(errorbank.BadRequest("quotation_id is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create", trace.WithAttributes(
		attribute.String("quotation.id", payload.QuotationID.String()),
	))
	defer span.End()

	order, err := h.svc.CreateFromQuotation(ctx, payload.QuotationID, actor)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("identity required")).Build()
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid order id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order, err := h.queries.Get(ctx, id, actor)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("identity required")).Build()
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid order id", errorbank.WithCause(err))).Build()
	}

	var payload dto.UpdateStatusRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	requested := entity.Status(payload.Status)
	if !requested.Valid() {
		return b.WithError(errorbank.BadRequest("status must be one of pending, processing, shipped, delivered, cancelled", errorbank.WithDetail("field", "status"))).Build()
	}

	fields := service.UpdateFields{
		TrackingNumber: payload.TrackingNumber,
		Notes:          payload.Notes,
		NFeAccessKey:   payload.NFeAccessKey,
		NFeURL:         payload.NFeURL,
	}
	if payload.EstimatedDeliveryDate != nil {
		estimated, err := time.Parse(time.RFC3339, *payload.EstimatedDeliveryDate)
		if err != nil {
			return b.WithError(errorbank.BadRequest("estimated_delivery_date must be an RFC3339 timestamp", errorbank.WithDetail("field", "estimated_delivery_date"))).Build()
		}
		fields.EstimatedDeliveryDate = &estimated
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateStatus", trace.WithAttributes(
		attribute.String("order.id", id.String()),
		attribute.String("order.requested_status", payload.Status),
	))
	defer span.End()

	order, err := h.svc.UpdateStatus(ctx, id, requested, actor, fields)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) updateFiscal(c echo.Context) error {
	b := response.New(c)
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("identity required")).Build()
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid order id", errorbank.WithCause(err))).Build()
	}

	var payload dto.UpdateFiscalRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateFiscal", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order, err := h.svc.UpdateFiscalFields(ctx, id, service.FiscalPatch{
		NFeAccessKey: payload.NFeAccessKey,
		NFeURL:       payload.NFeURL,
	}, actor)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) listOwn(c echo.Context) error {
	b := response.New(c)
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("identity required")).Build()
	}

	filter, err := filterFromQuery(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listOwn")
	defer span.End()

	orders, total, err := h.queries.ListOwn(ctx, actor, filter)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toResponses(orders)).
		WithMeta("total", total).
		WithMeta("page", filter.Page).
		WithMeta("limit", filter.Limit).
		Build()
}

func (h *Handler) listAll(c echo.Context) error {
	b := response.New(c)
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("identity required")).Build()
	}

	filter, err := filterFromQuery(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.listAll")
	defer span.End()

	orders, total, err := h.queries.ListAll(ctx, actor, filter)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toResponses(orders)).
		WithMeta("total", total).
		WithMeta("page", filter.Page).
		WithMeta("limit", filter.Limit).
		Build()
}

func (h *Handler) history(c echo.Context) error {
	b := response.New(c)
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("identity required")).Build()
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid order id", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.history", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	entries, err := h.queries.History(ctx, id, actor)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromHistory(entries)).Build()
}

func (h *Handler) stats(c echo.Context) error {
	b := response.New(c)
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return b.WithError(errorbank.Unauthorized("identity required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.stats")
	defer span.End()

	stats, err := h.queries.Stats(ctx, actor)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(stats).Build()
}

func filterFromQuery(c echo.Context) (dto.OrderFilter, error) {
	return dto.ParseOrderFilter(
		c.QueryParam("status"),
		c.QueryParam("from"),
		c.QueryParam("to"),
		c.QueryParam("page"),
		c.QueryParam("limit"),
	)
}

func toResponses(orders []entity.Order) []dto.OrderResponse {
	out := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, dto.FromOrder(&orders[i]))
	}
	return out
}
