package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EdgeEventType identifies the kind of entity an edge event refers to
type EdgeEventType string

const (
	EdgeEventTypeDashboard         EdgeEventType = "DASHBOARD"
	EdgeEventTypeAsset             EdgeEventType = "ASSET"
	EdgeEventTypeDevice            EdgeEventType = "DEVICE"
	EdgeEventTypeDeviceProfile     EdgeEventType = "DEVICE_PROFILE"
	EdgeEventTypeEntityView        EdgeEventType = "ENTITY_VIEW"
	EdgeEventTypeAlarm             EdgeEventType = "ALARM"
	EdgeEventTypeRuleChain         EdgeEventType = "RULE_CHAIN"
	EdgeEventTypeRuleChainMetadata EdgeEventType = "RULE_CHAIN_METADATA"
	EdgeEventTypeEdge              EdgeEventType = "EDGE"
	EdgeEventTypeUser              EdgeEventType = "USER"
	EdgeEventTypeCustomer          EdgeEventType = "CUSTOMER"
	EdgeEventTypeRelation          EdgeEventType = "RELATION"
	EdgeEventTypeWidgetsBundle     EdgeEventType = "WIDGETS_BUNDLE"
	EdgeEventTypeWidgetType        EdgeEventType = "WIDGET_TYPE"
	EdgeEventTypeAdminSettings     EdgeEventType = "ADMIN_SETTINGS"
)

var edgeEventTypes = map[EdgeEventType]bool{
	EdgeEventTypeDashboard:         true,
	EdgeEventTypeAsset:             true,
	EdgeEventTypeDevice:            true,
	EdgeEventTypeDeviceProfile:     true,
	EdgeEventTypeEntityView:        true,
	EdgeEventTypeAlarm:             true,
	EdgeEventTypeRuleChain:         true,
	EdgeEventTypeRuleChainMetadata: true,
	EdgeEventTypeEdge:              true,
	EdgeEventTypeUser:              true,
	EdgeEventTypeCustomer:          true,
	EdgeEventTypeRelation:          true,
	EdgeEventTypeWidgetsBundle:     true,
	EdgeEventTypeWidgetType:        true,
	EdgeEventTypeAdminSettings:     true,
}

// Valid reports whether t is a known edge event type
func (t EdgeEventType) Valid() bool {
	return edgeEventTypes[t]
}

// EdgeEventActionType is what happened to the entity
type EdgeEventActionType string

const (
	ActionAdded                  EdgeEventActionType = "ADDED"
	ActionUpdated                EdgeEventActionType = "UPDATED"
	ActionDeleted                EdgeEventActionType = "DELETED"
	ActionCredentialsUpdated     EdgeEventActionType = "CREDENTIALS_UPDATED"
	ActionAssignedToCustomer     EdgeEventActionType = "ASSIGNED_TO_CUSTOMER"
	ActionUnassignedFromCustomer EdgeEventActionType = "UNASSIGNED_FROM_CUSTOMER"
	ActionAssignedToEdge         EdgeEventActionType = "ASSIGNED_TO_EDGE"
	ActionUnassignedFromEdge     EdgeEventActionType = "UNASSIGNED_FROM_EDGE"

	// Drain-side requests, queued for an edge and answered with a downlink message
	ActionEntityMergeRequest EdgeEventActionType = "ENTITY_MERGE_REQUEST"
	ActionCredentialsRequest EdgeEventActionType = "CREDENTIALS_REQUEST"
)

var edgeEventActions = map[EdgeEventActionType]bool{
	ActionAdded:                  true,
	ActionUpdated:                true,
	ActionDeleted:                true,
	ActionCredentialsUpdated:     true,
	ActionAssignedToCustomer:     true,
	ActionUnassignedFromCustomer: true,
	ActionAssignedToEdge:         true,
	ActionUnassignedFromEdge:     true,
	ActionEntityMergeRequest:     true,
	ActionCredentialsRequest:     true,
}

// Valid reports whether a is a known action type
func (a EdgeEventActionType) Valid() bool {
	return edgeEventActions[a]
}

// EdgeEvent is a queued unit of work for a single edge
// Maps to: edge_event table (append-only, rows are never updated or deleted)
type EdgeEvent struct {
	// Time-ordered event ID (UUID v7)
	ID uuid.UUID `db:"id" json:"id"`

	TenantID uuid.UUID `db:"tenant_id" json:"tenant_id"`
	EdgeID   uuid.UUID `db:"edge_id" json:"edge_id"`

	Type     EdgeEventType       `db:"edge_event_type" json:"type"`
	Action   EdgeEventActionType `db:"edge_event_action" json:"action"`
	EntityID uuid.UUID           `db:"entity_id" json:"entity_id"`

	// Optional action-specific payload
	Body json.RawMessage `db:"body" json:"body,omitempty"`

	CreatedTime time.Time `db:"created_time" json:"created_time"`
}
