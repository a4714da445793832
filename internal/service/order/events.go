package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
)

// Event types published on the lifecycle topic.
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// Event is emitted after a lifecycle mutation commits.
type Event struct {
	Type        string          `json:"type"`
	OrderID     uuid.UUID       `json:"order_id"`
	QuotationID uuid.UUID       `json:"quotation_id"`
	CompanyID   uuid.UUID       `json:"company_id"`
	FromStatus  *entity.Status  `json:"from_status,omitempty"`
	ToStatus    entity.Status   `json:"to_status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	ChangedBy   uuid.UUID       `json:"changed_by"`
	OccurredAt  time.Time       `json:"occurred_at"`
}
