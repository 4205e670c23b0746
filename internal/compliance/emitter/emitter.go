// Package emitter delivers audit events to their sinks.
package emitter

import (
	"context"

	"github.com/vietddude/purity/internal/core/domain"
)

// Emitter defines the interface for emitting audit events
type Emitter interface {
	// Emit sends a single event
	Emit(ctx context.Context, event domain.AuditEvent) error

	// EmitBatch sends multiple events in order
	EmitBatch(ctx context.Context, events []domain.AuditEvent) error

	// Close releases the sink
	Close() error
}

func emitEach(ctx context.Context, e Emitter, events []domain.AuditEvent) error {
	for _, ev := range events {
		if err := e.Emit(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
