package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/lyzr/edgesync/cmd/edge-sync/dependency"
	"github.com/lyzr/edgesync/cmd/edge-sync/resolver"
	"github.com/lyzr/edgesync/common/logger"
	"github.com/lyzr/edgesync/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	dec := json.NewDecoder(buf)
	for {
		var entry map[string]any
		err := dec.Decode(&entry)
		if errors.Is(err, io.EOF) {
			return entries
		}
		require.NoError(t, err)
		entries = append(entries, entry)
	}
}

func TestRoute_EmitFailureLogCarriesTenantAndEdge(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "debug", "json")

	w := newWorld()
	em := &recordingEmitter{failOn: make(map[uuid.UUID]bool)}
	tenantID, deviceID := uuid.New(), uuid.New()
	good := w.addEdge(tenantID, uuid.Nil)
	bad := w.addEdge(tenantID, uuid.Nil)
	w.relate(deviceID, good, bad)
	em.failOn[bad] = true

	router := NewNotificationRouter(&RouterOpts{
		Resolver:    resolver.NewEdgeResolver(w),
		ScopeFilter: resolver.NewCustomerScopeFilter(w),
		Walker:      dependency.NewWalker(w, 2, log),
		Emitter:     em,
		EdgeLister:  w,
		Logger:      log,
	})

	router.Route(context.Background(), tenantID, &models.EntityChangeNotification{
		TenantID:   tenantID,
		EntityType: models.EdgeEventTypeDevice,
		EntityID:   deviceID,
		Action:     models.ActionUpdated,
	})
	router.Wait()

	var failures []map[string]any
	for _, entry := range decodeEntries(t, &buf) {
		if entry["msg"] == "failed to emit edge event" {
			failures = append(failures, entry)
		}
	}
	require.Len(t, failures, 1)
	assert.Equal(t, tenantID.String(), failures[0]["tenant_id"])
	assert.Equal(t, bad.String(), failures[0]["edge_id"])
	assert.Equal(t, deviceID.String(), failures[0]["entity_id"])
}

type capturedLine struct {
	level string
	msg   string
	kv    []interface{}
}

type captureLogger struct {
	lines []capturedLine
}

func (l *captureLogger) add(level, msg string, kv []interface{}) {
	l.lines = append(l.lines, capturedLine{level: level, msg: msg, kv: kv})
}

func (l *captureLogger) Info(msg string, kv ...interface{})  { l.add("info", msg, kv) }
func (l *captureLogger) Error(msg string, kv ...interface{}) { l.add("error", msg, kv) }
func (l *captureLogger) Warn(msg string, kv ...interface{})  { l.add("warn", msg, kv) }
func (l *captureLogger) Debug(msg string, kv ...interface{}) { l.add("debug", msg, kv) }

func TestBranchLogger_FallsBackToFields(t *testing.T) {
	capture := &captureLogger{}
	router := NewNotificationRouter(&RouterOpts{Logger: capture})
	tenantID, edgeID := uuid.New(), uuid.New()

	log := router.branchLogger(tenantID, edgeID)
	log.Warn("first", "k", 1)
	log.Error("second")

	require.Len(t, capture.lines, 2)
	assert.Equal(t, capturedLine{
		level: "warn",
		msg:   "first",
		kv:    []interface{}{"tenant_id", tenantID, "edge_id", edgeID, "k", 1},
	}, capture.lines[0])
	assert.Equal(t, []interface{}{"tenant_id", tenantID, "edge_id", edgeID}, capture.lines[1].kv)
}
