package entity

import "github.com/google/uuid"

// Role enumerates requester roles understood by the transition policy.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSupplier Role = "supplier"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is a recognised role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupplier, RoleCustomer:
		return true
	}
	return false
}

// Staff reports whether the role may mutate orders.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleSupplier
}

// Actor identifies the authenticated requester. The auth gateway verifies
// credentials upstream and forwards identity as trusted headers.
type Actor struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Role      Role
}
