package recovery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/vietddude/purity/internal/compliance/freeze"
)

// Sweeper periodically retries frozen balances that were never redistributed,
// e.g. after an exhausted retry or a restart.
type Sweeper struct {
	freezes  *freeze.Ledger
	r        *Redistributor
	interval time.Duration
}

// NewSweeper creates a sweeper.
func NewSweeper(freezes *freeze.Ledger, r *Redistributor, interval time.Duration) *Sweeper {
	return &Sweeper{freezes: freezes, r: r, interval: interval}
}

// Start runs the sweep loop until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep attempts every pending record once through the redistributor and
// returns how many completed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	done := 0
	for _, rec := range s.freezes.Pending() {
		if ctx.Err() != nil {
			break
		}
		err := s.r.Redistribute(ctx, rec)
		switch {
		case err == nil:
			done++
		case errors.Is(err, ErrInFlight):
		default:
			slog.Warn("[Sweeper] redistribution still pending", "frozen_id", rec.ID, "error", err)
		}
	}
	return done
}
