package models

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// UUIDFromBits rebuilds a UUID from its most and least significant 64-bit halves
// as they travel on the wire (entityIdMSB / entityIdLSB)
func UUIDFromBits(msb, lsb int64) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[0:8], uint64(msb))
	binary.BigEndian.PutUint64(id[8:16], uint64(lsb))
	return id
}

// UUIDToBits splits a UUID into its most and least significant 64-bit halves
func UUIDToBits(id uuid.UUID) (msb, lsb int64) {
	msb = int64(binary.BigEndian.Uint64(id[0:8]))
	lsb = int64(binary.BigEndian.Uint64(id[8:16]))
	return msb, lsb
}
