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

// EdgeRepository reads edges and their entity relations
type EdgeRepository struct {
	db *db.DB
}

// NewEdgeRepository creates a new edge repository
func NewEdgeRepository(database *db.DB) *EdgeRepository {
	return &EdgeRepository{db: database}
}

// FindByID returns the current edge record, or nil if it doesn't exist
func (r *EdgeRepository) FindByID(ctx context.Context, tenantID, edgeID uuid.UUID) (*models.Edge, error) {
	query := `
		SELECT id, tenant_id, COALESCE(customer_id, '00000000-0000-0000-0000-000000000000'::uuid), name
		FROM edge
		WHERE tenant_id = $1 AND id = $2
	`

	edge := &models.Edge{}
	err := r.db.QueryRow(ctx, query, tenantID, edgeID).Scan(
		&edge.ID,
		&edge.TenantID,
		&edge.CustomerID,
		&edge.Name,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get edge: %w", err)
	}

	return edge, nil
}

// FindRelatedEdgeIDs returns the edges that hold the given entity
func (r *EdgeRepository) FindRelatedEdgeIDs(ctx context.Context, tenantID, entityID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT edge_id
		FROM entity_edge_relation
		WHERE tenant_id = $1 AND entity_id = $2
		ORDER BY edge_id
	`

	rows, err := r.db.Query(ctx, query, tenantID, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to find related edges: %w", err)
	}
	defer rows.Close()

	var edgeIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan edge id: %w", err)
		}
		edgeIDs = append(edgeIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating related edges: %w", err)
	}

	return edgeIDs, nil
}

// FindByTenant returns one page of the tenant's edges ordered by id
func (r *EdgeRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID, link models.PageLink) (*models.PageData[models.Edge], error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM edge WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count edges: %w", err)
	}

	query := `
		SELECT id, tenant_id, COALESCE(customer_id, '00000000-0000-0000-0000-000000000000'::uuid), name
		FROM edge
		WHERE tenant_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, tenantID, link.PageSize, link.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	defer rows.Close()

	var edges []models.Edge
	for rows.Next() {
		var edge models.Edge
		if err := rows.Scan(&edge.ID, &edge.TenantID, &edge.CustomerID, &edge.Name); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return models.NewPageData(edges, total, link), nil
}
