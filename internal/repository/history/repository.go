package history

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/database"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
)

var repoTracer = otel.Tracer("github.com/oguarni/crescebr-b2b-marketplace-sub000/repository/history")

// Repository is the append-only status ledger. There is deliberately no
// update or delete method; a wrong entry is fixed by appending a corrective
// one.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires the ledger repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// Record appends one ledger entry inside the caller's transaction.
func (r *Repository) Record(ctx context.Context, db bun.IDB, entry *entity.OrderStatusHistory) error {
	if entry == nil {
		return errors.New("nil history entry")
	}
	ctx, span := repoTracer.Start(ctx, "HistoryRepository.Record", trace.WithAttributes(
		attribute.String("order.id", entry.OrderID.String()),
		attribute.String("history.to_status", string(entry.ToStatus)),
	))
	defer span.End()

	_, err := db.NewInsert().Model(entry).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// ListByOrder returns an order's full ledger, oldest entry first.
func (r *Repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]entity.OrderStatusHistory, error) {
	ctx, span := repoTracer.Start(ctx, "HistoryRepository.ListByOrder", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	var entries []entity.OrderStatusHistory
	err := r.reader.NewSelect().Model(&entries).
		Where("order_id = ?", orderID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return entries, nil
}
