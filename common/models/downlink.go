package models

// UpdateMsgType tags a downlink entity update
type UpdateMsgType string

// EntityMergeRPCMessage answers an edge's entity merge request
const EntityMergeRPCMessage UpdateMsgType = "ENTITY_MERGE_RPC_MESSAGE"

// DeviceUpdateMsg carries a device snapshot to an edge
type DeviceUpdateMsg struct {
	MsgType UpdateMsgType `json:"msgType"`

	IDMSB int64 `json:"idMSB"`
	IDLSB int64 `json:"idLSB"`

	// Zero when the device resolves to no customer scope
	CustomerIDMSB int64 `json:"customerIdMSB,omitempty"`
	CustomerIDLSB int64 `json:"customerIdLSB,omitempty"`

	Name  string `json:"name"`
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`

	// Set on merge resolution when the edge reported a name clash
	ConflictName *string `json:"conflictName,omitempty"`
}

// DeviceCredentialsRequestMsg asks an edge to push back a device's current credentials
type DeviceCredentialsRequestMsg struct {
	DeviceIDMSB int64 `json:"deviceIdMSB"`
	DeviceIDLSB int64 `json:"deviceIdLSB"`
}

// DownlinkMsg is a ready-to-send batch for one edge. Encoding and transport
// happen in the delivery runtime.
type DownlinkMsg struct {
	DeviceUpdateMsgs             []DeviceUpdateMsg             `json:"deviceUpdateMsg,omitempty"`
	DeviceCredentialsRequestMsgs []DeviceCredentialsRequestMsg `json:"deviceCredentialsRequestMsg,omitempty"`
}
