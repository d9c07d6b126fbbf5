package downlink

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lyzr/edgesync/common/models"
	"github.com/tidwall/gjson"
)

// DeviceLookup loads a device snapshot; nil means it doesn't exist
type DeviceLookup interface {
	FindByID(ctx context.Context, tenantID, deviceID uuid.UUID) (*models.Device, error)
}

// Builder turns queued edge events into downlink messages.
// It reads but never writes; nothing here touches the event queue.
type Builder struct {
	devices DeviceLookup
}

// NewBuilder creates a downlink builder
func NewBuilder(devices DeviceLookup) *Builder {
	return &Builder{devices: devices}
}

// Build picks the message for a drain-side request event. A nil message means
// there is nothing to send for this event.
func (b *Builder) Build(ctx context.Context, edge *models.Edge, event *models.EdgeEvent) (*models.DownlinkMsg, error) {
	switch event.Action {
	case models.ActionEntityMergeRequest:
		return b.BuildMergeResolution(ctx, edge, event)
	case models.ActionCredentialsRequest:
		return BuildCredentialsRequest(event), nil
	default:
		return nil, nil
	}
}

// BuildMergeResolution answers an edge's entity merge request with the
// central device snapshot. Only device events produce a message.
func (b *Builder) BuildMergeResolution(ctx context.Context, edge *models.Edge, event *models.EdgeEvent) (*models.DownlinkMsg, error) {
	if event.Type != models.EdgeEventTypeDevice {
		return nil, nil
	}

	device, err := b.devices.FindByID(ctx, edge.TenantID, event.EntityID)
	if err != nil {
		return nil, fmt.Errorf("failed to load device %s: %w", event.EntityID, err)
	}
	if device == nil {
		return nil, fmt.Errorf("device %s not found", event.EntityID)
	}

	msg := newDeviceUpdateMsg(models.EntityMergeRPCMessage, device, effectiveCustomer(device, edge))
	msg.ConflictName = conflictName(event)

	return &models.DownlinkMsg{
		DeviceUpdateMsgs: []models.DeviceUpdateMsg{msg},
	}, nil
}

// BuildCredentialsRequest asks the edge to push back the device's current
// credentials. Only device events produce a message.
func BuildCredentialsRequest(event *models.EdgeEvent) *models.DownlinkMsg {
	if event.Type != models.EdgeEventTypeDevice {
		return nil
	}

	req := models.DeviceCredentialsRequestMsg{}
	req.DeviceIDMSB, req.DeviceIDLSB = models.UUIDToBits(event.EntityID)

	return &models.DownlinkMsg{
		DeviceCredentialsRequestMsgs: []models.DeviceCredentialsRequestMsg{req},
	}
}

// effectiveCustomer is the device's customer, or the edge's when the device has none
func effectiveCustomer(device *models.Device, edge *models.Edge) uuid.UUID {
	if device.CustomerID != uuid.Nil {
		return device.CustomerID
	}
	return edge.CustomerID
}

func conflictName(event *models.EdgeEvent) *string {
	if len(event.Body) == 0 {
		return nil
	}
	v := gjson.GetBytes(event.Body, "conflictName")
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	name := v.String()
	return &name
}

func newDeviceUpdateMsg(msgType models.UpdateMsgType, device *models.Device, customerID uuid.UUID) models.DeviceUpdateMsg {
	msg := models.DeviceUpdateMsg{
		MsgType: msgType,
		Name:    device.Name,
		Type:    device.Type,
		Label:   device.Label,
	}
	msg.IDMSB, msg.IDLSB = models.UUIDToBits(device.ID)
	if customerID != uuid.Nil {
		msg.CustomerIDMSB, msg.CustomerIDLSB = models.UUIDToBits(customerID)
	}
	return msg
}
