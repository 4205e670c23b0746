package emitter

import (
	"context"
	"slices"
	"sync"

	"github.com/vietddude/purity/internal/core/domain"
)

// MemoryEmitter keeps events in memory, for batch runs and tests.
type MemoryEmitter struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func NewMemoryEmitter() *MemoryEmitter {
	return &MemoryEmitter{}
}

func (m *MemoryEmitter) Emit(_ context.Context, ev domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemoryEmitter) EmitBatch(ctx context.Context, events []domain.AuditEvent) error {
	return emitEach(ctx, m, events)
}

func (m *MemoryEmitter) Close() error { return nil }

// Events returns a snapshot of emitted events.
func (m *MemoryEmitter) Events() []domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

// ByType returns emitted events of type t.
func (m *MemoryEmitter) ByType(t domain.EventType) []domain.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AuditEvent
	for _, ev := range m.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
