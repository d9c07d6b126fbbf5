// Package dependency finds rule chains that reference a changed chain.
//
// Chains only store forward connections ("this chain connects to that one"),
// so finding who points at a chain means scanning every chain on the edge and
// its connection list. Cost is O(chains × connections) per lookup; it runs
// only on rule chain assignment changes.
package dependency

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lyzr/edgesync/common/models"
)

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// RuleChainLookup lists an edge's chains and loads chain connections
type RuleChainLookup interface {
	FindByTenantAndEdge(ctx context.Context, tenantID, edgeID uuid.UUID, link models.PageLink) (*models.PageData[models.RuleChain], error)
	LoadConnections(ctx context.Context, tenantID, ruleChainID uuid.UUID) ([]models.RuleChainConnection, error)
}

// Walker performs the reverse-dependency search
type Walker struct {
	chains   RuleChainLookup
	pageSize int
	logger   Logger
}

// NewWalker creates a walker using pageSize for the chain listing
func NewWalker(chains RuleChainLookup, pageSize int, logger Logger) *Walker {
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}
	return &Walker{
		chains:   chains,
		pageSize: pageSize,
		logger:   logger,
	}
}

// FindDependents returns the chains on edgeID, other than updatedChainID, that
// have at least one connection targeting updatedChainID. Each dependent is
// reported once, in discovery order.
//
// A chain whose connections fail to load is skipped. A listing failure stops
// the walk; the dependents found so far are returned with the error.
func (w *Walker) FindDependents(ctx context.Context, tenantID, updatedChainID, edgeID uuid.UUID) ([]uuid.UUID, error) {
	var dependents []uuid.UUID
	seen := make(map[uuid.UUID]bool)

	link := models.NewPageLink(w.pageSize)
	for {
		if err := ctx.Err(); err != nil {
			return dependents, err
		}

		page, err := w.chains.FindByTenantAndEdge(ctx, tenantID, edgeID, link)
		if err != nil {
			return dependents, fmt.Errorf("failed to list rule chains for edge (page %d): %w", link.Page, err)
		}
		if page == nil {
			return dependents, nil
		}

		for _, chain := range page.Data {
			if chain.ID == updatedChainID || seen[chain.ID] {
				continue
			}

			references, err := w.references(ctx, chain, updatedChainID)
			if err != nil {
				w.logger.Warn("skipping rule chain, failed to load connections",
					"tenant_id", tenantID,
					"edge_id", edgeID,
					"rule_chain_id", chain.ID,
					"error", err)
				continue
			}
			if references {
				seen[chain.ID] = true
				dependents = append(dependents, chain.ID)
			}
		}

		if !page.HasNext || len(page.Data) == 0 {
			return dependents, nil
		}
		link = link.Next()
	}
}

func (w *Walker) references(ctx context.Context, chain models.RuleChain, target uuid.UUID) (bool, error) {
	connections, err := w.chains.LoadConnections(ctx, chain.TenantID, chain.ID)
	if err != nil {
		return false, err
	}
	for _, conn := range connections {
		if conn.TargetRuleChainID == target {
			return true, nil
		}
	}
	return false, nil
}
