package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lyzr/edgesync/common/db"
	"github.com/lyzr/edgesync/common/models"
)

// RuleChainRepository reads rule chains and their forward connections
type RuleChainRepository struct {
	db *db.DB
}

// NewRuleChainRepository creates a new rule chain repository
func NewRuleChainRepository(database *db.DB) *RuleChainRepository {
	return &RuleChainRepository{db: database}
}

// FindByTenantAndEdge returns one page of the rule chains assigned to an edge
func (r *RuleChainRepository) FindByTenantAndEdge(ctx context.Context, tenantID, edgeID uuid.UUID, link models.PageLink) (*models.PageData[models.RuleChain], error) {
	var total int64
	countQuery := `
		SELECT COUNT(*)
		FROM rule_chain_edge
		WHERE tenant_id = $1 AND edge_id = $2
	`
	if err := r.db.QueryRow(ctx, countQuery, tenantID, edgeID).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count edge rule chains: %w", err)
	}

	query := `
		SELECT rc.id, rc.tenant_id, rc.name, rc.root
		FROM rule_chain rc
		JOIN rule_chain_edge rce ON rce.rule_chain_id = rc.id
		WHERE rce.tenant_id = $1 AND rce.edge_id = $2
		ORDER BY rc.id
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Query(ctx, query, tenantID, edgeID, link.PageSize, link.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list edge rule chains: %w", err)
	}
	defer rows.Close()

	var chains []models.RuleChain
	for rows.Next() {
		var chain models.RuleChain
		if err := rows.Scan(&chain.ID, &chain.TenantID, &chain.Name, &chain.Root); err != nil {
			return nil, fmt.Errorf("failed to scan rule chain: %w", err)
		}
		chains = append(chains, chain)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule chains: %w", err)
	}

	return models.NewPageData(chains, total, link), nil
}

// LoadConnections returns the chain's outgoing connections in node order
func (r *RuleChainRepository) LoadConnections(ctx context.Context, tenantID, ruleChainID uuid.UUID) ([]models.RuleChainConnection, error) {
	query := `
		SELECT c.from_index, c.target_rule_chain_id, c.type
		FROM rule_chain_connection c
		JOIN rule_chain rc ON rc.id = c.rule_chain_id
		WHERE rc.tenant_id = $1 AND c.rule_chain_id = $2
		ORDER BY c.from_index
	`

	rows, err := r.db.Query(ctx, query, tenantID, ruleChainID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rule chain connections: %w", err)
	}
	defer rows.Close()

	var connections []models.RuleChainConnection
	for rows.Next() {
		var conn models.RuleChainConnection
		if err := rows.Scan(&conn.FromIndex, &conn.TargetRuleChainID, &conn.Type); err != nil {
			return nil, fmt.Errorf("failed to scan rule chain connection: %w", err)
		}
		connections = append(connections, conn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rule chain connections: %w", err)
	}

	return connections, nil
}
