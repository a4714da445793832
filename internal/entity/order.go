package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every lifecycle state in progression order.
var Statuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// Valid reports whether s is one of the five lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is legal from s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Order is a purchase order converted from a quotation. Exactly one order
// exists per quotation; the quotation_id unique constraint enforces it.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID                    uuid.UUID       `bun:"id,pk,type:uuid"`
	QuotationID           uuid.UUID       `bun:"quotation_id,notnull,unique,type:uuid"`
	CompanyID             uuid.UUID       `bun:"company_id,notnull,type:uuid"`
	Status                Status          `bun:"status,notnull"`
	TotalAmount           decimal.Decimal `bun:"total_amount,type:numeric(14,2)"`
	EstimatedDeliveryDate *time.Time      `bun:"estimated_delivery_date,nullzero"`
	TrackingNumber        *string         `bun:"tracking_number,nullzero"`
	NFeAccessKey          *string         `bun:"nfe_access_key,nullzero"`
	NFeURL                *string         `bun:"nfe_url,nullzero"`
	CreatedAt             time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt             time.Time       `bun:"updated_at,nullzero"`
}
