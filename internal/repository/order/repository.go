package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/database"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
)

var repoTracer = otel.Tracer("github.com/oguarni/crescebr-b2b-marketplace-sub000/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// ListFilter enumerates exactly the filters the order listing supports.
// Handlers build it from a validated dto.OrderFilter; no other shape ever
// reaches the query builder.
type ListFilter struct {
	CompanyID *uuid.UUID
	Status    *entity.Status
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// MonthStats aggregates orders created inside one time window.
type MonthStats struct {
	Count       int
	TotalAmount decimal.Decimal
}

// Repository encapsulates access to order rows. Writes always arrive with
// the caller's transaction handle; reads go to the replica when configured.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// Create inserts a new order inside the caller's transaction.
func (r *Repository) Create(ctx context.Context, db bun.IDB, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.id", order.ID.String())))
	defer span.End()

	_, err := db.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// GetForUpdate loads an order inside the caller's transaction with a row
// lock, serializing concurrent transitions on the same order.
func (r *Repository) GetForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetForUpdate", trace.WithAttributes(attribute.String("order.id", id.String())))
	defer span.End()

	order := new(entity.Order)
	err := db.NewSelect().Model(order).Where("id = ?", id).For("UPDATE").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select for update failed")
		return nil, err
	}
	return order, nil
}

// Update persists the mutable columns of a loaded order inside the caller's
// transaction. Creation-time columns are never touched.
func (r *Repository) Update(ctx context.Context, db bun.IDB, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(
		attribute.String("order.id", order.ID.String()),
		attribute.String("order.status", string(order.Status)),
	))
	defer span.End()

	res, err := db.NewUpdate().Model(order).
		Column("status", "estimated_delivery_date", "tracking_number", "nfe_access_key", "nfe_url", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		span.SetStatus(codes.Error, "not found")
		return ErrNotFound
	}
	return nil
}

// List returns a page of orders matching the filter plus the total match
// count, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]entity.Order, int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	var orders []entity.Order
	q := r.reader.NewSelect().Model(&orders)
	q = applyFilter(q, filter)

	count, err := q.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, 0, err
	}
	return orders, count, nil
}

// CountByStatus computes the status histogram, optionally scoped to one
// company.
func (r *Repository) CountByStatus(ctx context.Context, companyID *uuid.UUID) (map[entity.Status]int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountByStatus")
	defer span.End()

	var rows []struct {
		Status entity.Status `bun:"status"`
		Count  int           `bun:"count"`
	}
	q := r.reader.NewSelect().Model((*entity.Order)(nil)).
		ColumnExpr("status").
		ColumnExpr("count(*) AS count").
		Group("status")
	if companyID != nil {
		q = q.Where("company_id = ?", *companyID)
	}
	if err := q.Scan(ctx, &rows); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return nil, err
	}

	counts := make(map[entity.Status]int, len(entity.Statuses))
	for _, st := range entity.Statuses {
		counts[st] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// StatsBetween aggregates order count and total amount for orders created in
// [from, to).
func (r *Repository) StatsBetween(ctx context.Context, from, to time.Time) (MonthStats, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.StatsBetween", trace.WithAttributes(
		attribute.String("window.from", from.Format(time.RFC3339)),
		attribute.String("window.to", to.Format(time.RFC3339)),
	))
	defer span.End()

	var row struct {
		Count       int             `bun:"count"`
		TotalAmount decimal.Decimal `bun:"total_amount"`
	}
	err := r.reader.NewSelect().Model((*entity.Order)(nil)).
		ColumnExpr("count(*) AS count").
		ColumnExpr("coalesce(sum(total_amount), 0) AS total_amount").
		Where("created_at >= ?", from).
		Where("created_at < ?", to).
		Scan(ctx, &row)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return MonthStats{}, err
	}
	return MonthStats{Count: row.Count, TotalAmount: row.TotalAmount}, nil
}

func applyFilter(q *bun.SelectQuery, filter ListFilter) *bun.SelectQuery {
	if filter.CompanyID != nil {
		q = q.Where("company_id = ?", *filter.CompanyID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}
	return q
}
