package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lyzr/edgesync/cmd/edge-sync/emitter"
	"github.com/lyzr/edgesync/common/models"
	"golang.org/x/sync/errgroup"
)

// Logger interface for logging
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// EdgeResolver maps an entity to its related edges
type EdgeResolver interface {
	RelatedEdges(ctx context.Context, tenantID, entityID uuid.UUID) ([]uuid.UUID, error)
}

// ScopeFilter re-checks an edge's current customer assignment
type ScopeFilter interface {
	Qualifies(ctx context.Context, tenantID, edgeID, customerID uuid.UUID) (bool, error)
}

// DependencyWalker finds rule chains on an edge that reference a given chain
type DependencyWalker interface {
	FindDependents(ctx context.Context, tenantID, updatedChainID, edgeID uuid.UUID) ([]uuid.UUID, error)
}

// EventEmitter appends a single edge event
type EventEmitter interface {
	Emit(ctx context.Context, draft emitter.Draft) (*models.EdgeEvent, error)
}

// EdgeLister pages through every edge of a tenant
type EdgeLister interface {
	FindByTenant(ctx context.Context, tenantID uuid.UUID, link models.PageLink) (*models.PageData[models.Edge], error)
}

// NotificationRouter turns entity change notifications into per-edge events
type NotificationRouter struct {
	resolver    EdgeResolver
	scope       ScopeFilter
	walker      DependencyWalker
	emitter     EventEmitter
	edges       EdgeLister
	pageSize    int
	concurrency int
	logger      Logger

	inflight sync.WaitGroup
}

// RouterOpts contains options for creating a notification router
type RouterOpts struct {
	Resolver    EdgeResolver
	ScopeFilter ScopeFilter
	Walker      DependencyWalker
	Emitter     EventEmitter
	EdgeLister  EdgeLister

	// Page size for RouteToAllEdges; defaults to models.DefaultPageSize
	PageSize int

	// Max concurrent per-edge branches of one notification; defaults to 16
	Concurrency int

	Logger Logger
}

const defaultConcurrency = 16

// NewNotificationRouter creates a notification router
func NewNotificationRouter(opts *RouterOpts) *NotificationRouter {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = models.DefaultPageSize
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &NotificationRouter{
		resolver:    opts.Resolver,
		scope:       opts.ScopeFilter,
		walker:      opts.Walker,
		emitter:     opts.Emitter,
		edges:       opts.EdgeLister,
		pageSize:    pageSize,
		concurrency: concurrency,
		logger:      opts.Logger,
	}
}

// Route schedules the fan-out of one notification and returns immediately.
// Failures are logged per branch; nothing is reported back to the caller.
func (r *NotificationRouter) Route(ctx context.Context, tenantID uuid.UUID, n *models.EntityChangeNotification) {
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		r.route(ctx, tenantID, n)
	}()
}

// RouteToAllEdges sends ADDED, UPDATED and DELETED notifications to every
// edge of the tenant, without looking at relations.
func (r *NotificationRouter) RouteToAllEdges(ctx context.Context, tenantID uuid.UUID, n *models.EntityChangeNotification) {
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		r.routeToAllEdges(ctx, tenantID, n)
	}()
}

// Wait blocks until every scheduled notification has been fully routed
func (r *NotificationRouter) Wait() {
	r.inflight.Wait()
}

func (r *NotificationRouter) route(ctx context.Context, tenantID uuid.UUID, n *models.EntityChangeNotification) {
	switch n.Action {
	case models.ActionAdded, models.ActionUpdated, models.ActionCredentialsUpdated:
		r.routeToRelatedEdges(ctx, tenantID, n)
	case models.ActionAssignedToCustomer, models.ActionUnassignedFromCustomer:
		r.routeToCustomerEdges(ctx, tenantID, n)
	case models.ActionDeleted:
		r.routeToTargetEdge(ctx, tenantID, n)
	case models.ActionAssignedToEdge, models.ActionUnassignedFromEdge:
		r.routeEdgeAssignment(ctx, tenantID, n)
	default:
		r.logger.Warn("unsupported notification action, nothing routed", notificationFields(tenantID, n)...)
	}
}

func (r *NotificationRouter) routeToRelatedEdges(ctx context.Context, tenantID uuid.UUID, n *models.EntityChangeNotification) {
	edgeIDs, err := r.resolver.RelatedEdges(ctx, tenantID, n.EntityID)
	if err != nil {
		r.logger.Error("failed to resolve related edges",
			append(notificationFields(tenantID, n), "error", err)...)
		return
	}

	r.fanOut(edgeIDs, func(edgeID uuid.UUID) {
		r.emit(ctx, tenantID, edgeID, n.EntityType, n.Action, n.EntityID)
	})
}

func (r *NotificationRouter) routeToCustomerEdges(ctx context.Context, tenantID uuid.UUID, n *models.EntityChangeNotification) {
	customerID, err := parseCustomerID(n.Body)
	if err != nil {
		r.logger.Error("failed to parse customer from notification body",
			append(notificationFields(tenantID, n), "error", err)...)
		return
	}

	edgeIDs, err := r.resolver.RelatedEdges(ctx, tenantID, n.EntityID)
	if err != nil {
		r.logger.Error("failed to resolve related edges",
			append(notificationFields(tenantID, n), "error", err)...)
		return
	}

	r.fanOut(edgeIDs, func(edgeID uuid.UUID) {
		log := r.branchLogger(tenantID, edgeID)
		ok, err := r.scope.Qualifies(ctx, tenantID, edgeID, customerID)
		if err != nil {
			log.Error("failed to check edge customer",
				"entity_type", n.EntityType, "entity_id", n.EntityID, "action", n.Action,
				"customer_id", customerID, "error", err)
			return
		}
		if !ok {
			log.Debug("edge not assigned to customer, skipping", "customer_id", customerID)
			return
		}
		r.emit(ctx, tenantID, edgeID, n.EntityType, n.Action, n.EntityID)
	})
}

func (r *NotificationRouter) routeToTargetEdge(ctx context.Context, tenantID uuid.UUID, n *models.EntityChangeNotification) {
	if n.TargetEdgeID == nil {
		r.logger.Warn("edge-directed notification without target edge, dropped", notificationFields(tenantID, n)...)
		return
	}
	r.emit(ctx, tenantID, *n.TargetEdgeID, n.EntityType, n.Action, n.EntityID)
}

func (r *NotificationRouter) routeEdgeAssignment(ctx context.Context, tenantID uuid.UUID, n *models.EntityChangeNotification) {
	if n.TargetEdgeID == nil {
		r.logger.Warn("edge-directed notification without target edge, dropped", notificationFields(tenantID, n)...)
		return
	}
	edgeID := *n.TargetEdgeID

	r.emit(ctx, tenantID, edgeID, n.EntityType, n.Action, n.EntityID)

	if n.EntityType != models.EdgeEventTypeRuleChain {
		return
	}

	// Chains on the edge that call into this one need their metadata refreshed
	dependents, err := r.walker.FindDependents(ctx, tenantID, n.EntityID, edgeID)
	if err != nil {
		r.logger.Error("failed to find dependent rule chains",
			append(notificationFields(tenantID, n), "edge_id", edgeID, "found", len(dependents), "error", err)...)
	}

	for _, chainID := range dependents {
		r.emit(ctx, tenantID, edgeID, models.EdgeEventTypeRuleChainMetadata, models.ActionUpdated, chainID)
	}
}

func (r *NotificationRouter) routeToAllEdges(ctx context.Context, tenantID uuid.UUID, n *models.EntityChangeNotification) {
	switch n.Action {
	case models.ActionAdded, models.ActionUpdated, models.ActionDeleted:
	default:
		r.logger.Warn("unsupported action for all-edges routing, nothing routed", notificationFields(tenantID, n)...)
		return
	}

	link := models.NewPageLink(r.pageSize)
	for {
		if ctx.Err() != nil {
			return
		}

		page, err := r.edges.FindByTenant(ctx, tenantID, link)
		if err != nil {
			r.logger.Error("failed to list tenant edges",
				append(notificationFields(tenantID, n), "page", link.Page, "error", err)...)
			return
		}
		if page == nil {
			return
		}

		edgeIDs := make([]uuid.UUID, 0, len(page.Data))
		for _, edge := range page.Data {
			edgeIDs = append(edgeIDs, edge.ID)
		}
		r.fanOut(edgeIDs, func(edgeID uuid.UUID) {
			r.emit(ctx, tenantID, edgeID, n.EntityType, n.Action, n.EntityID)
		})

		if !page.HasNext || len(page.Data) == 0 {
			return
		}
		link = link.Next()
	}
}

// fanOut runs one branch per edge and waits for all of them.
// Branches never return errors so a failing edge cannot cancel its siblings.
func (r *NotificationRouter) fanOut(edgeIDs []uuid.UUID, branch func(edgeID uuid.UUID)) {
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, edgeID := range edgeIDs {
		g.Go(func() error {
			branch(edgeID)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *NotificationRouter) emit(ctx context.Context, tenantID, edgeID uuid.UUID, eventType models.EdgeEventType, action models.EdgeEventActionType, entityID uuid.UUID) {
	_, err := r.emitter.Emit(ctx, emitter.Draft{
		TenantID: tenantID,
		EdgeID:   edgeID,
		Type:     eventType,
		Action:   action,
		EntityID: entityID,
	})
	if err != nil {
		r.branchLogger(tenantID, edgeID).Error("failed to emit edge event",
			"type", eventType,
			"action", action,
			"entity_id", entityID,
			"error", err)
	}
}

// customerRef is the body of customer (un)assignment notifications
type customerRef struct {
	ID         string `json:"id"`
	EntityType string `json:"entityType,omitempty"`
}

func parseCustomerID(body json.RawMessage) (uuid.UUID, error) {
	if len(body) == 0 {
		return uuid.Nil, fmt.Errorf("empty body")
	}

	var ref customerRef
	if err := json.Unmarshal(body, &ref); err != nil {
		return uuid.Nil, fmt.Errorf("failed to unmarshal customer ref: %w", err)
	}

	id, err := uuid.Parse(ref.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid customer id %q: %w", ref.ID, err)
	}
	return id, nil
}

func notificationFields(tenantID uuid.UUID, n *models.EntityChangeNotification) []interface{} {
	return []interface{}{
		"tenant_id", tenantID,
		"entity_type", n.EntityType,
		"entity_id", n.EntityID,
		"action", n.Action,
	}
}
