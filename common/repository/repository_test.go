package repository

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lyzr/edgesync/common/config"
	"github.com/lyzr/edgesync/common/db"
	"github.com/lyzr/edgesync/common/logger"
	"github.com/lyzr/edgesync/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against the Postgres named by the POSTGRES_* variables.
// Every test works in its own random tenant, so no cleanup is needed.
func setupDB(t *testing.T) *db.DB {
	t.Helper()
	if os.Getenv("EDGESYNC_DB_TESTS") != "true" {
		t.Skip("Skipping repository tests. Set EDGESYNC_DB_TESTS=true to run")
	}

	cfg, err := config.Load("edge-sync-test")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	database, err := db.New(ctx, cfg, logger.NewWithWriter(io.Discard, "error", "json"))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	t.Cleanup(database.Close)

	require.NoError(t, database.ApplySchema(ctx))
	return database
}

func insertEdge(t *testing.T, database *db.DB, tenantID, customerID uuid.UUID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	var customer any
	if customerID != uuid.Nil {
		customer = customerID
	}
	_, err := database.Exec(context.Background(),
		`INSERT INTO edge (id, tenant_id, customer_id, name) VALUES ($1, $2, $3, $4)`,
		id, tenantID, customer, "edge-"+id.String()[:8])
	require.NoError(t, err)
	return id
}

func insertChain(t *testing.T, database *db.DB, tenantID, edgeID uuid.UUID) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	id := uuid.New()
	_, err := database.Exec(ctx, `INSERT INTO rule_chain (id, tenant_id, name) VALUES ($1, $2, 'chain')`, id, tenantID)
	require.NoError(t, err)
	_, err = database.Exec(ctx, `INSERT INTO rule_chain_edge (tenant_id, edge_id, rule_chain_id) VALUES ($1, $2, $3)`, tenantID, edgeID, id)
	require.NoError(t, err)
	return id
}

func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	out := append([]uuid.UUID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func TestEdgeRepository_FindByID(t *testing.T) {
	database := setupDB(t)
	repo := NewEdgeRepository(database)
	ctx := context.Background()
	tenantID, customerID := uuid.New(), uuid.New()

	unassigned := insertEdge(t, database, tenantID, uuid.Nil)
	assigned := insertEdge(t, database, tenantID, customerID)

	edge, err := repo.FindByID(ctx, tenantID, unassigned)
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Equal(t, uuid.Nil, edge.CustomerID)

	edge, err = repo.FindByID(ctx, tenantID, assigned)
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Equal(t, customerID, edge.CustomerID)

	// missing rows and foreign tenants read as not found
	edge, err = repo.FindByID(ctx, tenantID, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, edge)

	edge, err = repo.FindByID(ctx, uuid.New(), assigned)
	require.NoError(t, err)
	assert.Nil(t, edge)
}

func TestEdgeRepository_FindByTenantPages(t *testing.T) {
	database := setupDB(t)
	repo := NewEdgeRepository(database)
	ctx := context.Background()
	tenantID := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		ids = append(ids, insertEdge(t, database, tenantID, uuid.Nil))
	}
	insertEdge(t, database, uuid.New(), uuid.Nil)

	var seen []uuid.UUID
	link := models.NewPageLink(2)
	wantSizes := []int{2, 2, 1}
	for i, size := range wantSizes {
		page, err := repo.FindByTenant(ctx, tenantID, link)
		require.NoError(t, err)
		assert.Len(t, page.Data, size, "page %d", i)
		assert.Equal(t, int64(5), page.TotalElements)
		assert.Equal(t, 3, page.TotalPages)
		assert.Equal(t, i < len(wantSizes)-1, page.HasNext, "page %d", i)
		for _, edge := range page.Data {
			seen = append(seen, edge.ID)
		}
		link = link.Next()
	}

	assert.Equal(t, sortedIDs(ids), seen)
}

func TestEdgeRepository_FindByTenantExactlyFullLastPage(t *testing.T) {
	database := setupDB(t)
	repo := NewEdgeRepository(database)
	ctx := context.Background()
	tenantID := uuid.New()

	for i := 0; i < 4; i++ {
		insertEdge(t, database, tenantID, uuid.Nil)
	}

	page, err := repo.FindByTenant(ctx, tenantID, models.PageLink{PageSize: 2, Page: 1})
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.False(t, page.HasNext)

	page, err = repo.FindByTenant(ctx, uuid.New(), models.NewPageLink(2))
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.False(t, page.HasNext)
}

func TestEdgeRepository_FindRelatedEdgeIDs(t *testing.T) {
	database := setupDB(t)
	repo := NewEdgeRepository(database)
	ctx := context.Background()
	tenantID, entityID := uuid.New(), uuid.New()

	a := insertEdge(t, database, tenantID, uuid.Nil)
	b := insertEdge(t, database, tenantID, uuid.Nil)
	insertEdge(t, database, tenantID, uuid.Nil)
	for _, edgeID := range []uuid.UUID{a, b} {
		_, err := database.Exec(ctx,
			`INSERT INTO entity_edge_relation (tenant_id, entity_id, edge_id) VALUES ($1, $2, $3)`,
			tenantID, entityID, edgeID)
		require.NoError(t, err)
	}

	ids, err := repo.FindRelatedEdgeIDs(ctx, tenantID, entityID)
	require.NoError(t, err)
	assert.Equal(t, sortedIDs([]uuid.UUID{a, b}), ids)

	ids, err = repo.FindRelatedEdgeIDs(ctx, tenantID, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRuleChainRepository_PagesAndConnections(t *testing.T) {
	database := setupDB(t)
	repo := NewRuleChainRepository(database)
	ctx := context.Background()
	tenantID := uuid.New()
	edgeID := insertEdge(t, database, tenantID, uuid.Nil)
	otherEdge := insertEdge(t, database, tenantID, uuid.Nil)

	var chains []uuid.UUID
	for i := 0; i < 3; i++ {
		chains = append(chains, insertChain(t, database, tenantID, edgeID))
	}
	insertChain(t, database, tenantID, otherEdge)

	first, err := repo.FindByTenantAndEdge(ctx, tenantID, edgeID, models.NewPageLink(2))
	require.NoError(t, err)
	assert.Len(t, first.Data, 2)
	assert.True(t, first.HasNext)
	assert.Equal(t, int64(3), first.TotalElements)

	second, err := repo.FindByTenantAndEdge(ctx, tenantID, edgeID, models.NewPageLink(2).Next())
	require.NoError(t, err)
	assert.Len(t, second.Data, 1)
	assert.False(t, second.HasNext)

	var seen []uuid.UUID
	for _, chain := range append(first.Data, second.Data...) {
		assert.Equal(t, tenantID, chain.TenantID)
		seen = append(seen, chain.ID)
	}
	assert.Equal(t, sortedIDs(chains), seen)

	target := uuid.New()
	for _, idx := range []int{2, 0} {
		_, err := database.Exec(ctx,
			`INSERT INTO rule_chain_connection (rule_chain_id, from_index, target_rule_chain_id) VALUES ($1, $2, $3)`,
			chains[0], idx, target)
		require.NoError(t, err)
	}

	conns, err := repo.LoadConnections(ctx, tenantID, chains[0])
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, 0, conns[0].FromIndex)
	assert.Equal(t, 2, conns[1].FromIndex)
	assert.Equal(t, target, conns[0].TargetRuleChainID)
	assert.Equal(t, "Success", conns[0].Type)

	conns, err = repo.LoadConnections(ctx, uuid.New(), chains[0])
	require.NoError(t, err)
	assert.Empty(t, conns)
}

func TestDeviceRepository_FindByID(t *testing.T) {
	database := setupDB(t)
	repo := NewDeviceRepository(database)
	ctx := context.Background()
	tenantID, deviceID := uuid.New(), uuid.New()

	_, err := database.Exec(ctx,
		`INSERT INTO device (id, tenant_id, name, type) VALUES ($1, $2, 'thermostat', 'sensor')`,
		deviceID, tenantID)
	require.NoError(t, err)

	device, err := repo.FindByID(ctx, tenantID, deviceID)
	require.NoError(t, err)
	require.NotNil(t, device)
	assert.Equal(t, "thermostat", device.Name)
	assert.Equal(t, "sensor", device.Type)
	assert.Equal(t, uuid.Nil, device.CustomerID)

	device, err = repo.FindByID(ctx, tenantID, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, device)
}

func TestEdgeEventRepository_AppendAndList(t *testing.T) {
	database := setupDB(t)
	repo := NewEdgeEventRepository(database)
	ctx := context.Background()
	tenantID, edgeID := uuid.New(), uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)

	var saved []*models.EdgeEvent
	for i := 0; i < 3; i++ {
		event := &models.EdgeEvent{
			ID:          uuid.Must(uuid.NewV7()),
			TenantID:    tenantID,
			EdgeID:      edgeID,
			Type:        models.EdgeEventTypeDevice,
			Action:      models.ActionUpdated,
			EntityID:    uuid.New(),
			CreatedTime: now.Add(time.Duration(i) * time.Second),
		}
		if i == 1 {
			event.Body = json.RawMessage(`{"conflictName":"foo"}`)
		}
		require.NoError(t, repo.Save(ctx, event))
		saved = append(saved, event)
	}

	page, err := repo.ListByEdge(ctx, tenantID, edgeID, models.NewPageLink(10))
	require.NoError(t, err)
	require.Len(t, page.Data, 3)
	assert.Equal(t, int64(3), page.TotalElements)
	for i, event := range page.Data {
		assert.Equal(t, saved[i].ID, event.ID)
		assert.Equal(t, saved[i].Type, event.Type)
		assert.Equal(t, saved[i].Action, event.Action)
		assert.WithinDuration(t, saved[i].CreatedTime, event.CreatedTime, time.Millisecond)
	}
	assert.Nil(t, page.Data[0].Body)
	assert.JSONEq(t, `{"conflictName":"foo"}`, string(page.Data[1].Body))

	found, err := repo.FindByID(ctx, tenantID, edgeID, saved[2].ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, saved[2].EntityID, found.EntityID)

	found, err = repo.FindByID(ctx, tenantID, uuid.New(), saved[2].ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	// Saving the same event twice violates the unique id
	assert.Error(t, repo.Save(ctx, saved[0]))
}
