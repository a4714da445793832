// Package pricing is the boundary to the marketplace's pricing collaborator.
// The grand total it yields is fixed onto the order at creation and never
// recomputed afterwards.
package pricing

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/database"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
)

// ErrQuotationNotFound is returned when no priced quotation exists.
var ErrQuotationNotFound = errors.New("quotation not priced")

// Calculator yields the computed grand total for a quotation. Tier discounts
// and line pricing happen upstream in the catalog service.
type Calculator interface {
	GrandTotal(ctx context.Context, quotationID uuid.UUID) (decimal.Decimal, error)
}

// Module provides the pricing calculator to Fx.
var Module = fx.Provide(NewCalculator)

// NewCalculator returns the default calculator, which reads the grand total
// the pricing pipeline persisted on the quotation row.
func NewCalculator(conns *database.Connections) Calculator {
	return &quotationTotal{reader: conns.Reader}
}

type quotationTotal struct {
	reader *bun.DB
}

func (c *quotationTotal) GrandTotal(ctx context.Context, quotationID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := c.reader.NewSelect().Model((*entity.Quotation)(nil)).
		Column("total_amount").
		Where("id = ?", quotationID).
		Scan(ctx, &total)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, ErrQuotationNotFound
	}
	if err != nil {
		return decimal.Decimal{}, err
	}
	return total, nil
}
