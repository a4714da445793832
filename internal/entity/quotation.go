package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// QuotationStatus enumerates the states of a quotation we consume. Only
// processed quotations are eligible for conversion into an order.
type QuotationStatus string

const (
	QuotationPending   QuotationStatus = "pending"
	QuotationProcessed QuotationStatus = "processed"
	QuotationCompleted QuotationStatus = "completed"
	QuotationRejected  QuotationStatus = "rejected"
)

// Quotation is the source document an order is converted from. The wider
// marketplace owns its creation and pricing; this service only reads it and
// flips it to completed when conversion commits.
type Quotation struct {
	bun.BaseModel `bun:"table:quotations"`

	ID          uuid.UUID       `bun:"id,pk,type:uuid"`
	CompanyID   uuid.UUID       `bun:"company_id,notnull,type:uuid"`
	Status      QuotationStatus `bun:"status,notnull"`
	ValidUntil  *time.Time      `bun:"valid_until,nullzero"`
	TotalAmount decimal.Decimal `bun:"total_amount,type:numeric(14,2)"`
	CreatedAt   time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time       `bun:"updated_at,nullzero"`
}
