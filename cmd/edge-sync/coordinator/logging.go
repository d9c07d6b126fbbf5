package coordinator

import (
	"github.com/google/uuid"
	"github.com/lyzr/edgesync/common/logger"
)

// edgeScoper is implemented by the service logger
type edgeScoper interface {
	WithTenantID(tenantID string) *logger.Logger
}

// branchLogger returns a logger that tags every line with the branch's tenant and edge
func (r *NotificationRouter) branchLogger(tenantID, edgeID uuid.UUID) Logger {
	if l, ok := r.logger.(edgeScoper); ok {
		return l.WithTenantID(tenantID.String()).WithEdgeID(edgeID.String())
	}
	return &fieldLogger{
		next:   r.logger,
		fields: []interface{}{"tenant_id", tenantID, "edge_id", edgeID},
	}
}

// fieldLogger appends fixed fields for loggers that cannot scope themselves
type fieldLogger struct {
	next   Logger
	fields []interface{}
}

func (l *fieldLogger) with(keysAndValues []interface{}) []interface{} {
	return append(append([]interface{}{}, l.fields...), keysAndValues...)
}

func (l *fieldLogger) Info(msg string, keysAndValues ...interface{}) {
	l.next.Info(msg, l.with(keysAndValues)...)
}

func (l *fieldLogger) Error(msg string, keysAndValues ...interface{}) {
	l.next.Error(msg, l.with(keysAndValues)...)
}

func (l *fieldLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.next.Warn(msg, l.with(keysAndValues)...)
}

func (l *fieldLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.next.Debug(msg, l.with(keysAndValues)...)
}
