// Package recovery moves frozen value into its target pool, retrying failed
// ledger writes with exponential backoff.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/purity/internal/compliance/emitter"
	"github.com/vietddude/purity/internal/compliance/freeze"
	"github.com/vietddude/purity/internal/compliance/metrics"
	"github.com/vietddude/purity/internal/core/domain"
)

// ErrExhausted is returned when every retry failed and an alert was raised.
var ErrExhausted = errors.New("redistribution retries exhausted")

// ErrInFlight is returned when the record is already being redistributed.
var ErrInFlight = errors.New("redistribution already in flight")

// LedgerWriter moves frozen value on the external ledger.
type LedgerWriter interface {
	Redistribute(ctx context.Context, frozen domain.FrozenBalance) error
}

// CompletionFunc runs after a record is marked redistributed, e.g. to
// persist the mark and advance the account's state.
type CompletionFunc func(ctx context.Context, rec domain.FrozenBalance) error

// Redistributor drives a frozen balance to its target pool.
type Redistributor struct {
	ledger   LedgerWriter
	freezes  *freeze.Ledger
	strategy RetryStrategy
	audit    emitter.Emitter
	timeout  time.Duration
	onDone   CompletionFunc
	logger   *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Option configures a Redistributor.
type Option func(*Redistributor)

// WithCompletion registers fn to run after a successful redistribution.
func WithCompletion(fn CompletionFunc) Option {
	return func(r *Redistributor) { r.onDone = fn }
}

// WithCallTimeout bounds each ledger call.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Redistributor) { r.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Redistributor) { r.logger = l }
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Redistributor) { r.sleep = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(r *Redistributor) { r.now = fn }
}

// NewRedistributor creates a redistributor.
func NewRedistributor(
	ledger LedgerWriter,
	freezes *freeze.Ledger,
	strategy RetryStrategy,
	audit emitter.Emitter,
	opts ...Option,
) *Redistributor {
	r := &Redistributor{
		ledger:   ledger,
		freezes:  freezes,
		strategy: strategy,
		audit:    audit,
		logger:   slog.Default(),
		sleep:    sleepCtx,
		now:      time.Now,
		inflight: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Redistribute writes rec to the ledger until it succeeds or the strategy
// gives up. On success the record is marked, one redistribution event is
// emitted and the completion hook runs. On exhaustion a CRITICAL alert is
// logged and emitted; the freeze itself stays recorded.
func (r *Redistributor) Redistribute(ctx context.Context, rec domain.FrozenBalance) error {
	if !r.acquire(rec.ID) {
		return ErrInFlight
	}
	defer r.release(rec.ID)

	if current, err := r.freezes.Get(rec.ID); err == nil && current.Redistributed() {
		return nil
	}

	for attempt := 0; ; attempt++ {
		err := r.write(ctx, rec)
		if err == nil {
			return r.complete(ctx, rec)
		}

		failed := attempt + 1
		if !r.strategy.ShouldRetry(err, failed) {
			r.alert(ctx, rec, failed, err)
			return fmt.Errorf("%w: %s after %d attempts: %w", ErrExhausted, rec.ID, failed, err)
		}

		delay := r.strategy.GetDelay(attempt)
		metrics.RedistributionRetries.Inc()
		r.logger.Warn("Redistribution failed, retrying",
			"frozen_id", rec.ID,
			"account", rec.Account,
			"attempt", failed,
			"delay", delay,
			"error", err,
		)
		if err := r.sleep(ctx, delay); err != nil {
			r.alert(ctx, rec, failed, err)
			return fmt.Errorf("%w: %s interrupted: %w", ErrExhausted, rec.ID, err)
		}
	}
}

func (r *Redistributor) write(ctx context.Context, rec domain.FrozenBalance) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	start := time.Now()
	err := r.ledger.Redistribute(ctx, rec)
	metrics.CollaboratorLatency.WithLabelValues("ledger_redistribute").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("ledger_redistribute").Inc()
	}
	return err
}

func (r *Redistributor) complete(ctx context.Context, rec domain.FrozenBalance) error {
	at := r.now()
	if err := r.freezes.MarkRedistributed(rec.ID, at); err != nil {
		if errors.Is(err, domain.ErrAlreadyRedistributed) {
			return nil
		}
		return fmt.Errorf("failed to mark %s redistributed: %w", rec.ID, err)
	}
	metrics.RedistributedAmount.Set(float64(r.freezes.TotalRedistributed()))

	ev := domain.AuditEvent{
		ID:        uuid.NewString(),
		Type:      domain.EventTypeRedistribution,
		Timestamp: at,
		Account:   rec.Account,
		Amount:    rec.Amount,
		Target:    rec.Target,
	}
	if err := r.audit.Emit(ctx, ev); err != nil {
		metrics.AuditEmitErrors.WithLabelValues("redistribution").Inc()
		r.logger.Error("CRITICAL: failed to emit redistribution event", "frozen_id", rec.ID, "error", err)
	}

	if r.onDone != nil {
		rec.RedistributedAt = &at
		if err := r.onDone(ctx, rec); err != nil {
			return fmt.Errorf("redistribution completion for %s: %w", rec.ID, err)
		}
	}
	r.logger.Info("Frozen balance redistributed",
		"frozen_id", rec.ID,
		"account", rec.Account,
		"amount", rec.Amount,
		"target", rec.Target,
	)
	return nil
}

func (r *Redistributor) alert(ctx context.Context, rec domain.FrozenBalance, attempts int, cause error) {
	metrics.RedistributionAlerts.Inc()
	r.logger.Error("CRITICAL: redistribution failed, frozen value not moved",
		"frozen_id", rec.ID,
		"account", rec.Account,
		"amount", rec.Amount,
		"target", rec.Target,
		"attempts", attempts,
		"error", cause,
	)
	ev := domain.AuditEvent{
		ID:        uuid.NewString(),
		Type:      domain.EventTypeAlert,
		Timestamp: r.now(),
		Reason:    "redistribution_failed: " + cause.Error(),
		Account:   rec.Account,
		Amount:    rec.Amount,
		Target:    rec.Target,
	}
	// The caller's context may already be done; the alert must still go out.
	if err := r.audit.Emit(context.WithoutCancel(ctx), ev); err != nil {
		metrics.AuditEmitErrors.WithLabelValues("alert").Inc()
	}
}

func (r *Redistributor) acquire(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[id]; busy {
		return false
	}
	r.inflight[id] = struct{}{}
	return true
}

func (r *Redistributor) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, id)
}
