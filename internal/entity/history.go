package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// OrderStatusHistory is one append-only ledger entry. FromStatus is nil only
// for the implicit entry written at order creation. Entries are never
// updated or deleted; a mistake is fixed by appending a corrective entry.
type OrderStatusHistory struct {
	bun.BaseModel `bun:"table:order_status_history"`

	ID         int64     `bun:",pk,autoincrement"`
	OrderID    uuid.UUID `bun:"order_id,notnull,type:uuid"`
	FromStatus *Status   `bun:"from_status,nullzero"`
	ToStatus   Status    `bun:"to_status,notnull"`
	ChangedBy  uuid.UUID `bun:"changed_by,notnull,type:uuid"`
	Notes      *string   `bun:"notes,nullzero"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
