package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
)

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID                    uuid.UUID       `json:"id"`
	QuotationID           uuid.UUID       `json:"quotation_id"`
	CompanyID             uuid.UUID       `json:"company_id"`
	Status                entity.Status   `json:"status"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	EstimatedDeliveryDate *time.Time      `json:"estimated_delivery_date,omitempty"`
	TrackingNumber        *string         `json:"tracking_number,omitempty"`
	NFeAccessKey          *string         `json:"nfe_access_key,omitempty"`
	NFeURL                *string         `json:"nfe_url,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// FromOrder maps an order entity to its response shape.
func FromOrder(order *entity.Order) OrderResponse {
	return OrderResponse{
		ID:                    order.ID,
		QuotationID:           order.QuotationID,
		CompanyID:             order.CompanyID,
		Status:                order.Status,
		TotalAmount:           order.TotalAmount,
		EstimatedDeliveryDate: order.EstimatedDeliveryDate,
		TrackingNumber:        order.TrackingNumber,
		NFeAccessKey:          order.NFeAccessKey,
		NFeURL:                order.NFeURL,
		CreatedAt:             order.CreatedAt,
		UpdatedAt:             order.UpdatedAt,
	}
}

// HistoryEntryResponse is one ledger entry in an order's status timeline.
type HistoryEntryResponse struct {
	OrderID    uuid.UUID      `json:"order_id"`
	FromStatus *entity.Status `json:"from_status"`
	ToStatus   entity.Status  `json:"to_status"`
	ChangedBy  uuid.UUID      `json:"changed_by"`
	Notes      *string        `json:"notes,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// FromHistory maps ledger entries to their response shape.
func FromHistory(entries []entity.OrderStatusHistory) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntryResponse{
			OrderID:    e.OrderID,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			ChangedBy:  e.ChangedBy,
			Notes:      e.Notes,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}

// CreateOrderRequest converts a quotation into an order.
type CreateOrderRequest struct {
	QuotationID uuid.UUID `json:"quotation_id"`
}

// UpdateStatusRequest requests a status transition, optionally carrying
// fulfillment and fiscal fields alongside it.
type UpdateStatusRequest struct {
	Status                string  `json:"status"`
	TrackingNumber        *string `json:"tracking_number,omitempty"`
	EstimatedDeliveryDate *string `json:"estimated_delivery_date,omitempty"`
	Notes                 *string `json:"notes,omitempty"`
	NFeAccessKey          *string `json:"nfe_access_key,omitempty"`
	NFeURL                *string `json:"nfe_url,omitempty"`
}

// UpdateFiscalRequest sets or corrects fiscal fields without a transition.
type UpdateFiscalRequest struct {
	NFeAccessKey *string `json:"nfe_access_key,omitempty"`
	NFeURL       *string `json:"nfe_url,omitempty"`
}
