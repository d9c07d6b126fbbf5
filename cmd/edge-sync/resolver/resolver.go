package resolver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lyzr/edgesync/common/models"
)

// RelationLookup finds the edges that hold an entity
type RelationLookup interface {
	FindRelatedEdgeIDs(ctx context.Context, tenantID, entityID uuid.UUID) ([]uuid.UUID, error)
}

// EdgeLookup fetches the current edge record; nil means it doesn't exist
type EdgeLookup interface {
	FindByID(ctx context.Context, tenantID, edgeID uuid.UUID) (*models.Edge, error)
}

// EdgeResolver maps an entity to the edges related to it
type EdgeResolver struct {
	relations RelationLookup
}

// NewEdgeResolver creates an edge resolver
func NewEdgeResolver(relations RelationLookup) *EdgeResolver {
	return &EdgeResolver{relations: relations}
}

// RelatedEdges returns each related edge once, in lookup order. May be empty.
func (r *EdgeResolver) RelatedEdges(ctx context.Context, tenantID, entityID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := r.relations.FindRelatedEdgeIDs(ctx, tenantID, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to find related edge ids: %w", err)
	}

	seen := make(map[uuid.UUID]bool, len(ids))
	edges := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		edges = append(edges, id)
	}
	return edges, nil
}

// CustomerScopeFilter decides whether an edge currently belongs to a customer
type CustomerScopeFilter struct {
	edges EdgeLookup
}

// NewCustomerScopeFilter creates a customer scope filter
func NewCustomerScopeFilter(edges EdgeLookup) *CustomerScopeFilter {
	return &CustomerScopeFilter{edges: edges}
}

// Qualifies reads the edge as it is now and compares its customer with customerID.
// Missing edges and unassigned edges never qualify.
func (f *CustomerScopeFilter) Qualifies(ctx context.Context, tenantID, edgeID, customerID uuid.UUID) (bool, error) {
	edge, err := f.edges.FindByID(ctx, tenantID, edgeID)
	if err != nil {
		return false, fmt.Errorf("failed to find edge by id: %w", err)
	}
	if edge == nil || !edge.AssignedToCustomer() {
		return false, nil
	}
	return edge.CustomerID == customerID, nil
}
