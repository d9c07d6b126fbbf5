package models

import "github.com/google/uuid"

// Device is the snapshot sent to an edge in merge-resolution messages
// Maps to: device table
type Device struct {
	ID         uuid.UUID `db:"id" json:"id"`
	TenantID   uuid.UUID `db:"tenant_id" json:"tenant_id"`
	CustomerID uuid.UUID `db:"customer_id" json:"customer_id"`
	Name       string    `db:"name" json:"name"`
	Type       string    `db:"type" json:"type"`
	Label      string    `db:"label" json:"label,omitempty"`
}
