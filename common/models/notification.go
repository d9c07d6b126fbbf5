package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EntityChangeNotification signals that an entity changed centrally.
// It is transient: the router turns it into zero or more EdgeEvents.
type EntityChangeNotification struct {
	TenantID   uuid.UUID
	EntityType EdgeEventType
	EntityID   uuid.UUID
	Action     EdgeEventActionType

	// Set only for edge-directed actions (DELETED, ASSIGNED_TO_EDGE, UNASSIGNED_FROM_EDGE)
	TargetEdgeID *uuid.UUID

	Body json.RawMessage
}

// EdgeNotificationMsg is the wire form of an EntityChangeNotification on the intake queue.
// Identifiers travel as two signed 64-bit halves.
type EdgeNotificationMsg struct {
	TenantID    string          `json:"tenantId"`
	Type        string          `json:"type"`
	Action      string          `json:"action"`
	EntityIDMSB int64           `json:"entityIdMSB"`
	EntityIDLSB int64           `json:"entityIdLSB"`
	EdgeIDMSB   int64           `json:"edgeIdMSB,omitempty"`
	EdgeIDLSB   int64           `json:"edgeIdLSB,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// ToNotification validates the wire message and converts it to a notification
func (m *EdgeNotificationMsg) ToNotification() (*EntityChangeNotification, error) {
	tenantID, err := uuid.Parse(m.TenantID)
	if err != nil {
		return nil, fmt.Errorf("invalid tenantId: %w", err)
	}

	entityType := EdgeEventType(m.Type)
	if !entityType.Valid() {
		return nil, fmt.Errorf("unknown entity type: %s", m.Type)
	}

	action := EdgeEventActionType(m.Action)
	if !action.Valid() {
		return nil, fmt.Errorf("unknown action: %s", m.Action)
	}

	n := &EntityChangeNotification{
		TenantID:   tenantID,
		EntityType: entityType,
		EntityID:   UUIDFromBits(m.EntityIDMSB, m.EntityIDLSB),
		Action:     action,
		Body:       m.Body,
	}

	if m.EdgeIDMSB != 0 || m.EdgeIDLSB != 0 {
		edgeID := UUIDFromBits(m.EdgeIDMSB, m.EdgeIDLSB)
		n.TargetEdgeID = &edgeID
	}

	return n, nil
}

// NewEdgeNotificationMsg builds the wire form of a notification
func NewEdgeNotificationMsg(n *EntityChangeNotification) *EdgeNotificationMsg {
	msg := &EdgeNotificationMsg{
		TenantID: n.TenantID.String(),
		Type:     string(n.EntityType),
		Action:   string(n.Action),
		Body:     n.Body,
	}
	msg.EntityIDMSB, msg.EntityIDLSB = UUIDToBits(n.EntityID)
	if n.TargetEdgeID != nil {
		msg.EdgeIDMSB, msg.EdgeIDLSB = UUIDToBits(*n.TargetEdgeID)
	}
	return msg
}
