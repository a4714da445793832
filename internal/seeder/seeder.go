package seeder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/database"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Fixed IDs keep the seed idempotent across runs.
var (
	seedCompanyID        = uuid.MustParse("6f1b24f5-9c2a-4c94-bb0f-0f6cf02f3b01")
	seedQuotationOpen    = uuid.MustParse("a3f4e2d1-1111-4a61-9b3e-3d2a6d1c0001")
	seedQuotationExpired = uuid.MustParse("a3f4e2d1-2222-4a61-9b3e-3d2a6d1c0002")
	seedQuotationDone    = uuid.MustParse("a3f4e2d1-3333-4a61-9b3e-3d2a6d1c0003")
	seedOrderID          = uuid.MustParse("b7c8d9e0-4444-4f12-8a3b-5e6f7a8b0001")
	seedActorID          = uuid.MustParse("c1d2e3f4-5555-4b23-9c4d-6f7a8b9c0001")
)

// Quotations seeds example quotations covering the conversion states: one
// convertible, one expired, one already completed.
func (s *Seeder) Quotations(ctx context.Context) error {
	now := time.Now().UTC()
	future := now.Add(14 * 24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	samples := []entity.Quotation{
		{
			ID:          seedQuotationOpen,
			CompanyID:   seedCompanyID,
			Status:      entity.QuotationProcessed,
			ValidUntil:  &future,
			TotalAmount: decimal.RequireFromString("15230.50"),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          seedQuotationExpired,
			CompanyID:   seedCompanyID,
			Status:      entity.QuotationProcessed,
			ValidUntil:  &past,
			TotalAmount: decimal.RequireFromString("820.00"),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          seedQuotationDone,
			CompanyID:   seedCompanyID,
			Status:      entity.QuotationCompleted,
			TotalAmount: decimal.RequireFromString("4999.90"),
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}

	for _, sample := range samples {
		quotation := sample
		_, err := s.db.NewInsert().Model(&quotation).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded quotations", zap.Int("count", len(samples)))
	}
	return nil
}

// Orders seeds one order converted from the completed quotation, together
// with its implicit ledger entry.
func (s *Seeder) Orders(ctx context.Context) error {
	now := time.Now().UTC()

	order := entity.Order{
		ID:          seedOrderID,
		QuotationID: seedQuotationDone,
		CompanyID:   seedCompanyID,
		Status:      entity.StatusPending,
		TotalAmount: decimal.RequireFromString("4999.90"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	res, err := s.db.NewInsert().Model(&order).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows > 0 {
		entry := entity.OrderStatusHistory{
			OrderID:   order.ID,
			ToStatus:  entity.StatusPending,
			ChangedBy: seedActorID,
			CreatedAt: now,
		}
		if _, err := s.db.NewInsert().Model(&entry).Exec(ctx); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded orders", zap.Int("count", 1))
	}
	return nil
}

// All runs every seeder in dependency order.
func (s *Seeder) All(ctx context.Context) error {
	if err := s.Quotations(ctx); err != nil {
		return err
	}
	return s.Orders(ctx)
}
