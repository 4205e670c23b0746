package enforcer

import (
	"context"
	"fmt"

	"github.com/vietddude/purity/internal/compliance/metrics"
)

// Restore reloads watchlist state and frozen balances from the store. It is
// called once at startup, before the first Enforce.
func (e *Enforcer) Restore(ctx context.Context) error {
	entries, err := e.deps.Store.Watchlist.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load watchlist: %w", err)
	}
	e.deps.Watchlist.Restore(entries)

	frozen, err := e.deps.Store.Frozen.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load frozen balances: %w", err)
	}
	e.deps.Freezes.Restore(frozen)

	metrics.FrozenAmount.Set(float64(e.deps.Freezes.TotalFrozen()))
	metrics.RedistributedAmount.Set(float64(e.deps.Freezes.TotalRedistributed()))
	e.logger.Info("Compliance state restored",
		"watchlist_entries", len(entries),
		"frozen_balances", len(frozen),
		"total_frozen", e.deps.Freezes.TotalFrozen(),
		"pending_redistribution", len(e.deps.Freezes.Pending()),
	)
	return nil
}
