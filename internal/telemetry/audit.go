package telemetry

import (
	"context"

	"github.com/mraysmit/apex-sub000/internal/ports"
)

// LogAuditSink forwards every audit event to a Logger, the default
// AuditSink for deployments that have no dedicated audit store (§6.5:
// "the core has no persistent state... audit events are forwarded to an
// external sink" — a structured log stream is the simplest such sink).
type LogAuditSink struct {
	log Logger
}

// NewLogAuditSink builds a LogAuditSink.
func NewLogAuditSink(log Logger) *LogAuditSink {
	return &LogAuditSink{log: log}
}

func (s *LogAuditSink) Emit(_ context.Context, ev ports.AuditEvent) {
	s.log.Infow("audit",
		"timestamp", ev.Timestamp,
		"actor", ev.Actor,
		"event_type", ev.EventType,
		"subject", ev.Subject,
		"details", ev.Details,
	)
}

var _ ports.AuditSink = (*LogAuditSink)(nil)
