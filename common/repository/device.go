package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lyzr/edgesync/common/db"
	"github.com/lyzr/edgesync/common/models"
)

// DeviceRepository reads device snapshots
type DeviceRepository struct {
	db *db.DB
}

// NewDeviceRepository creates a new device repository
func NewDeviceRepository(database *db.DB) *DeviceRepository {
	return &DeviceRepository{db: database}
}

// FindByID returns the device, or nil if it doesn't exist
func (r *DeviceRepository) FindByID(ctx context.Context, tenantID, deviceID uuid.UUID) (*models.Device, error) {
	query := `
		SELECT id, tenant_id, COALESCE(customer_id, '00000000-0000-0000-0000-000000000000'::uuid), name, type, label
		FROM device
		WHERE tenant_id = $1 AND id = $2
	`

	device := &models.Device{}
	err := r.db.QueryRow(ctx, query, tenantID, deviceID).Scan(
		&device.ID,
		&device.TenantID,
		&device.CustomerID,
		&device.Name,
		&device.Type,
		&device.Label,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return device, nil
}
