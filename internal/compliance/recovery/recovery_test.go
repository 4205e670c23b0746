package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/purity/internal/compliance/emitter"
	"github.com/vietddude/purity/internal/compliance/freeze"
	"github.com/vietddude/purity/internal/core/config"
	"github.com/vietddude/purity/internal/core/domain"
)

// =============================================================================
// Mock Ledger
// =============================================================================

type mockLedger struct {
	mu       sync.Mutex
	failures int // fail this many calls before succeeding
	err      error
	calls    int
}

func (m *mockLedger) Redistribute(ctx context.Context, frozen domain.FrozenBalance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failures {
		if m.err != nil {
			return m.err
		}
		return errors.New("ledger unavailable")
	}
	return nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func setup(t *testing.T, ledger *mockLedger, attempts int) (*Redistributor, *freeze.Ledger, *emitter.MemoryEmitter, domain.FrozenBalance) {
	t.Helper()
	freezes := freeze.NewLedger()
	rec, err := freezes.Freeze("founder_wallet_1", 1000, domain.PoolCommunity, domain.ReasonAnomalyScore, time.Now())
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	strategy := DefaultBackoff(nil)
	strategy.MaxAttempts = attempts
	audit := emitter.NewMemoryEmitter()
	r := NewRedistributor(ledger, freezes, strategy, audit, WithSleeper(noSleep))
	return r, freezes, audit, rec
}

// =============================================================================
// Strategy Tests
// =============================================================================

func TestBackoff_Delay(t *testing.T) {
	strategy := DefaultBackoff(nil)
	strategy.InitialDelay = 1 * time.Second
	strategy.MaxDelay = 10 * time.Second

	if d := strategy.GetDelay(0); d != 1*time.Second {
		t.Errorf("expected 1s, got %v", d)
	}
	if d := strategy.GetDelay(2); d != 4*time.Second {
		t.Errorf("expected 4s, got %v", d)
	}
	if d := strategy.GetDelay(10); d != 10*time.Second {
		t.Errorf("expected 10s, got %v", d)
	}
}

func TestBackoff_ShouldRetry(t *testing.T) {
	strategy := DefaultBackoff(nil)
	strategy.MaxAttempts = 3

	if !strategy.ShouldRetry(errors.New("err"), 2) {
		t.Error("should retry after 2 failed attempts")
	}
	if strategy.ShouldRetry(errors.New("err"), 3) {
		t.Error("should NOT retry after 3 failed attempts (max reached)")
	}
	if strategy.ShouldRetry(ErrPermanent, 0) {
		t.Error("should NOT retry permanent failures")
	}
}

func TestBackoffFromConfig(t *testing.T) {
	b := BackoffFromConfig(config.RedistributionConfig{InitialDelay: time.Second, MaxAttempts: 2}, nil)
	if b.InitialDelay != time.Second || b.MaxAttempts != 2 || b.MaxDelay != 60*time.Second {
		t.Errorf("unexpected backoff: %+v", b)
	}
}

// =============================================================================
// Redistributor Tests
// =============================================================================

func TestRedistribute_SucceedsAfterRetries(t *testing.T) {
	ledger := &mockLedger{failures: 2}
	r, freezes, audit, rec := setup(t, ledger, 5)

	var completed []string
	r.onDone = func(ctx context.Context, rec domain.FrozenBalance) error {
		completed = append(completed, rec.ID)
		return nil
	}

	if err := r.Redistribute(context.Background(), rec); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if ledger.calls != 3 {
		t.Errorf("expected 3 ledger calls, got %d", ledger.calls)
	}
	if freezes.TotalRedistributed() != 1000 || freezes.TotalFrozen() != 1000 {
		t.Errorf("unexpected totals: frozen %d redistributed %d", freezes.TotalFrozen(), freezes.TotalRedistributed())
	}
	if n := len(audit.ByType(domain.EventTypeRedistribution)); n != 1 {
		t.Errorf("expected exactly one redistribution event, got %d", n)
	}
	if len(completed) != 1 {
		t.Errorf("expected completion hook once, got %d", len(completed))
	}
}

func TestRedistribute_ExhaustionRaisesAlert(t *testing.T) {
	ledger := &mockLedger{failures: 100}
	r, freezes, audit, rec := setup(t, ledger, 3)

	err := r.Redistribute(context.Background(), rec)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if ledger.calls != 3 {
		t.Errorf("expected 3 attempts, got %d", ledger.calls)
	}
	if len(audit.ByType(domain.EventTypeAlert)) != 1 {
		t.Error("expected one alert event")
	}
	if len(audit.ByType(domain.EventTypeRedistribution)) != 0 {
		t.Error("expected no redistribution event")
	}
	// Freeze is still held.
	if freezes.TotalFrozen() != 1000 || len(freezes.Pending()) != 1 {
		t.Error("expected freeze to remain pending")
	}
}

func TestRedistribute_PermanentFailureStopsImmediately(t *testing.T) {
	ledger := &mockLedger{failures: 100, err: ErrPermanent}
	r, _, _, rec := setup(t, ledger, 5)

	if err := r.Redistribute(context.Background(), rec); !errors.Is(err, ErrPermanent) {
		t.Fatalf("expected wrapped ErrPermanent, got %v", err)
	}
	if ledger.calls != 1 {
		t.Errorf("expected 1 attempt, got %d", ledger.calls)
	}
}

func TestRedistribute_AlreadyDoneIsNoop(t *testing.T) {
	ledger := &mockLedger{}
	r, freezes, _, rec := setup(t, ledger, 3)
	_ = freezes.MarkRedistributed(rec.ID, time.Now())

	if err := r.Redistribute(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ledger.calls != 0 {
		t.Errorf("expected no ledger calls, got %d", ledger.calls)
	}
}

func TestSweeper_RetriesPending(t *testing.T) {
	ledger := &mockLedger{failures: 1}
	r, freezes, _, _ := setup(t, ledger, 1)

	s := NewSweeper(freezes, r, time.Minute)
	if done := s.Sweep(context.Background()); done != 0 {
		t.Errorf("expected first sweep to fail, got %d done", done)
	}
	if done := s.Sweep(context.Background()); done != 1 {
		t.Errorf("expected second sweep to complete, got %d done", done)
	}
	if len(freezes.Pending()) != 0 {
		t.Error("expected nothing pending")
	}
}
