package emitter

import (
	"context"
	"log/slog"

	"github.com/vietddude/purity/internal/core/domain"
)

// LogEmitter writes audit events to a structured logger.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter creates a log sink. A nil logger uses slog.Default().
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger.With("component", "audit")}
}

func (e *LogEmitter) Emit(ctx context.Context, ev domain.AuditEvent) error {
	attrs := []any{
		"id", ev.ID,
		"type", ev.Type,
		"timestamp", ev.Timestamp,
	}
	if ev.TxID != "" {
		attrs = append(attrs, "tx_id", ev.TxID, "decision", ev.Decision, "reason", ev.Reason)
	}
	if ev.Account != "" {
		attrs = append(attrs, "account", ev.Account, "frozen_amount", ev.Amount, "target", ev.Target)
	}
	if ev.Hash != "" {
		attrs = append(attrs, "hash", ev.Hash, "prev_hash", ev.PrevHash)
	}

	if ev.Type == domain.EventTypeAlert {
		e.logger.ErrorContext(ctx, "CRITICAL: audit alert", attrs...)
		return nil
	}
	e.logger.InfoContext(ctx, "Audit event", attrs...)
	return nil
}

func (e *LogEmitter) EmitBatch(ctx context.Context, events []domain.AuditEvent) error {
	return emitEach(ctx, e, events)
}

func (e *LogEmitter) Close() error { return nil }
