package enforcer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/purity/internal/compliance/metrics"
	"github.com/vietddude/purity/internal/compliance/recovery"
	"github.com/vietddude/purity/internal/compliance/watchlist"
	"github.com/vietddude/purity/internal/core/domain"
	"github.com/vietddude/purity/internal/infra/storage"
)

// recordViolations appends a violation for every privileged participant of
// a rejected transaction and freezes those that reached the tolerance.
// Must be called with the participants' locks held.
func (e *Enforcer) recordViolations(
	ctx context.Context,
	tx domain.TransactionRecord,
	reason domain.Reason,
	now time.Time,
) []domain.FrozenBalance {
	var frozen []domain.FrozenBalance
	for _, account := range slices.Compact(tx.Participants()) {
		if !e.deps.Watchlist.IsPrivileged(account) || e.deps.Watchlist.IsFrozen(account) {
			continue
		}

		v := domain.Violation{TxID: tx.ID, Account: account, Reason: reason, DetectedAt: now}
		count, err := e.deps.Watchlist.RecordViolation(v)
		if err != nil {
			e.logger.Error("Failed to record violation", "tx_id", tx.ID, "account", account, "error", err)
			continue
		}
		if err := e.deps.Store.Watchlist.AppendViolation(ctx, v); err != nil {
			e.logger.Error("Failed to persist violation", "tx_id", tx.ID, "account", account, "error", err)
		}
		e.persistState(ctx, account)
		e.logger.Warn("Privileged account violation",
			"tx_id", tx.ID,
			"account", account,
			"reason", reason,
			"count", count,
			"tolerance", e.policy.ViolationTolerance,
		)

		if count < e.policy.ViolationTolerance {
			continue
		}
		fb, err := e.freeze(ctx, account, reason, now)
		if err != nil {
			e.logger.Error("CRITICAL: failed to freeze account", "account", account, "error", err)
			continue
		}
		frozen = append(frozen, fb)
	}
	return frozen
}

// freeze moves the account's entire tracked balance into a frozen record
// and emits one freeze event.
func (e *Enforcer) freeze(ctx context.Context, account string, reason domain.Reason, now time.Time) (domain.FrozenBalance, error) {
	before, err := e.deps.Watchlist.Get(account)
	if err != nil {
		return domain.FrozenBalance{}, err
	}
	entry, amount, err := e.deps.Watchlist.Freeze(account)
	if err != nil {
		return domain.FrozenBalance{}, err
	}
	if before.Balance < 0 {
		e.logger.Warn("Freezing account with negative tracked balance",
			"account", account,
			"balance", before.Balance,
		)
	}

	target := domain.TargetFor(entry.Role)
	fb, err := e.deps.Freezes.Freeze(account, amount, target, reason, now)
	if err != nil {
		if rerr := e.deps.Watchlist.RevertFreeze(before); rerr != nil {
			e.logger.Error("Failed to revert watchlist freeze", "account", account, "error", rerr)
		}
		return domain.FrozenBalance{}, fmt.Errorf("failed to append frozen balance: %w", err)
	}
	if err := e.deps.Store.Frozen.Save(ctx, fb); err != nil {
		e.logger.Error("Failed to persist frozen balance", "frozen_id", fb.ID, "account", account, "error", err)
	}
	e.persistState(ctx, account)

	metrics.FreezesTotal.WithLabelValues(string(target)).Inc()
	metrics.FrozenAmount.Set(float64(e.deps.Freezes.TotalFrozen()))

	ev := domain.AuditEvent{
		ID:        uuid.NewString(),
		Type:      domain.EventTypeFreeze,
		Timestamp: now,
		Reason:    string(reason),
		Account:   account,
		Amount:    fb.Amount,
		Target:    target,
	}
	if err := e.deps.Audit.Emit(ctx, ev); err != nil {
		metrics.AuditEmitErrors.WithLabelValues("freeze").Inc()
		e.logger.Error("Failed to emit freeze event", "account", account, "error", err)
	}

	e.logger.Warn("Account frozen",
		"account", account,
		"role", entry.Role,
		"amount", fb.Amount,
		"target", target,
		"frozen_id", fb.ID,
	)
	return fb, nil
}

func (e *Enforcer) persistState(ctx context.Context, account string) {
	entry, err := e.deps.Watchlist.Get(account)
	if err != nil {
		return
	}
	if err := e.deps.Store.Watchlist.SaveState(ctx, account, entry.State, entry.Balance); err != nil {
		e.logger.Error("Failed to persist watchlist state", "account", account, "error", err)
	}
}

// RedistributionCompleted returns the hook that finishes an account's
// lifecycle once its frozen value has reached the target pool.
func RedistributionCompleted(wl *watchlist.Watchlist, store storage.Store, logger *slog.Logger) recovery.CompletionFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, rec domain.FrozenBalance) error {
		at := time.Now()
		if rec.RedistributedAt != nil {
			at = *rec.RedistributedAt
		}
		if err := store.Frozen.MarkRedistributed(ctx, rec.ID, at); err != nil {
			logger.Error("Failed to persist redistribution", "frozen_id", rec.ID, "error", err)
		}
		if err := wl.MarkRedistributed(rec.Account); err != nil {
			return fmt.Errorf("failed to advance %s: %w", rec.Account, err)
		}
		entry, err := wl.Get(rec.Account)
		if err != nil {
			return err
		}
		return store.Watchlist.SaveState(ctx, rec.Account, entry.State, entry.Balance)
	}
}
