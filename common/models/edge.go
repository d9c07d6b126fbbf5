package models

import "github.com/google/uuid"

// Edge is a remote gateway node holding a partial replica of tenant state
// Maps to: edge table
type Edge struct {
	ID       uuid.UUID `db:"id" json:"id"`
	TenantID uuid.UUID `db:"tenant_id" json:"tenant_id"`

	// uuid.Nil when the edge is not assigned to a customer.
	// May change at any time; never cache it for customer-scoped decisions.
	CustomerID uuid.UUID `db:"customer_id" json:"customer_id"`

	Name string `db:"name" json:"name"`
}

// AssignedToCustomer reports whether the edge currently belongs to a customer
func (e *Edge) AssignedToCustomer() bool {
	return e.CustomerID != uuid.Nil
}
