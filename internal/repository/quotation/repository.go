package quotation

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
)

var repoTracer = otel.Tracer("github.com/oguarni/crescebr-b2b-marketplace-sub000/repository/quotation")

// ErrNotFound is returned when a quotation is missing.
var ErrNotFound = errors.New("quotation not found")

// Repository reads quotations and flips their status during conversion.
// The wider marketplace owns quotation creation; this service never inserts
// or deletes one.
type Repository struct{}

// NewRepository constructs the quotation repository.
func NewRepository() *Repository {
	return &Repository{}
}

// GetForUpdate loads a quotation inside the caller's transaction with a row
// lock so two conversions of the same quotation serialize.
func (r *Repository) GetForUpdate(ctx context.Context, db bun.IDB, id uuid.UUID) (*entity.Quotation, error) {
	ctx, span := repoTracer.Start(ctx, "QuotationRepository.GetForUpdate", trace.WithAttributes(attribute.String("quotation.id", id.String())))
	defer span.End()

	quotation := new(entity.Quotation)
	err := db.NewSelect().Model(quotation).Where("id = ?", id).For("UPDATE").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select for update failed")
		return nil, err
	}
	return quotation, nil
}

// SetStatus updates a quotation's status inside the caller's transaction.
func (r *Repository) SetStatus(ctx context.Context, db bun.IDB, id uuid.UUID, status entity.QuotationStatus) error {
	ctx, span := repoTracer.Start(ctx, "QuotationRepository.SetStatus", trace.WithAttributes(
		attribute.String("quotation.id", id.String()),
		attribute.String("quotation.status", string(status)),
	))
	defer span.End()

	res, err := db.NewUpdate().Model((*entity.Quotation)(nil)).
		Set("status = ?", status).
		Set("updated_at = CURRENT_TIMESTAMP").
		Where("id = ?", id).
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
