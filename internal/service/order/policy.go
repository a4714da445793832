package order

import (
	"fmt"

	"github.com/oguarni/crescebr-b2b-marketplace-sub000/internal/entity"
	"github.com/oguarni/crescebr-b2b-marketplace-sub000/pkg/errorbank"
)

// transitions is the legal fulfillment graph. Terminal states (delivered,
// cancelled) have no entry, so everything out of them is rejected. A no-op
// transition is never listed and is therefore illegal too.
var transitions = map[entity.Status][]entity.Status{
	entity.StatusPending:    {entity.StatusProcessing, entity.StatusCancelled},
	entity.StatusProcessing: {entity.StatusShipped, entity.StatusCancelled},
	entity.StatusShipped:    {entity.StatusDelivered},
}

// CanTransition decides whether role may move an order from current to
// requested. It is total: every input yields a decision, never a panic.
func CanTransition(current, requested entity.Status, role entity.Role) error {
	if !role.Staff() {
		return errorbank.Forbidden(
			"role is not allowed to change order status",
			errorbank.WithDetail("role", string(role)),
		)
	}
	for _, next := range transitions[current] {
		if next == requested {
			return nil
		}
	}
	return errorbank.BadRequest(
		fmt.Sprintf("illegal status transition from %s to %s", current, requested),
		errorbank.WithDetails(map[string]any{
			"from": string(current),
			"to":   string(requested),
		}),
	)
}
