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

// EdgeEventRepository is the append-only edge work queue.
// Rows are never updated or deleted.
type EdgeEventRepository struct {
	db *db.DB
}

// NewEdgeEventRepository creates a new edge event repository
func NewEdgeEventRepository(database *db.DB) *EdgeEventRepository {
	return &EdgeEventRepository{db: database}
}

// Save appends an edge event
func (r *EdgeEventRepository) Save(ctx context.Context, event *models.EdgeEvent) error {
	query := `
		INSERT INTO edge_event (id, tenant_id, edge_id, edge_event_type, edge_event_action, entity_id, body, created_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var body any
	if len(event.Body) > 0 {
		body = []byte(event.Body)
	}

	_, err := r.db.Exec(ctx, query,
		event.ID,
		event.TenantID,
		event.EdgeID,
		string(event.Type),
		string(event.Action),
		event.EntityID,
		body,
		event.CreatedTime,
	)
	if err != nil {
		return fmt.Errorf("failed to save edge event: %w", err)
	}

	return nil
}

const edgeEventColumns = `id, tenant_id, edge_id, edge_event_type, edge_event_action, entity_id, body, created_time`

func scanEdgeEvent(row pgx.Row) (*models.EdgeEvent, error) {
	event := &models.EdgeEvent{}
	var eventType, action string
	var body []byte
	err := row.Scan(
		&event.ID,
		&event.TenantID,
		&event.EdgeID,
		&eventType,
		&action,
		&event.EntityID,
		&body,
		&event.CreatedTime,
	)
	if err != nil {
		return nil, err
	}
	event.Type = models.EdgeEventType(eventType)
	event.Action = models.EdgeEventActionType(action)
	if len(body) > 0 {
		event.Body = body
	}
	return event, nil
}

// FindByID returns a single queued event, or nil if it doesn't exist
func (r *EdgeEventRepository) FindByID(ctx context.Context, tenantID, edgeID, eventID uuid.UUID) (*models.EdgeEvent, error) {
	query := `SELECT ` + edgeEventColumns + `
		FROM edge_event
		WHERE tenant_id = $1 AND edge_id = $2 AND id = $3
	`

	event, err := scanEdgeEvent(r.db.QueryRow(ctx, query, tenantID, edgeID, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get edge event: %w", err)
	}

	return event, nil
}

// ListByEdge returns one page of an edge's events in append order
func (r *EdgeEventRepository) ListByEdge(ctx context.Context, tenantID, edgeID uuid.UUID, link models.PageLink) (*models.PageData[models.EdgeEvent], error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM edge_event WHERE tenant_id = $1 AND edge_id = $2`
	if err := r.db.QueryRow(ctx, countQuery, tenantID, edgeID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count edge events: %w", err)
	}

	query := `SELECT ` + edgeEventColumns + `
		FROM edge_event
		WHERE tenant_id = $1 AND edge_id = $2
		ORDER BY seq ASC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Query(ctx, query, tenantID, edgeID, link.PageSize, link.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list edge events: %w", err)
	}
	defer rows.Close()

	var events []models.EdgeEvent
	for rows.Next() {
		event, err := scanEdgeEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge event: %w", err)
		}
		events = append(events, *event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edge events: %w", err)
	}

	return models.NewPageData(events, total, link), nil
}
