// Package watchlist tracks privileged accounts, their violations and their
// state in the freeze lifecycle.
package watchlist

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vietddude/purity/internal/core/domain"
)

// Watchlist is the in-memory set of privileged accounts. Mutations are
// serialised by a single mutex; callers coordinate multi-step updates of
// one account with their own per-account lock.
type Watchlist struct {
	mu       sync.RWMutex
	entries  map[string]*domain.WatchlistEntry
	lookback time.Duration
}

// New seeds the watchlist from the static privileged list. lookback bounds
// which violations count toward the tolerance; zero counts all of them.
func New(accounts []domain.PrivilegedAccount, lookback time.Duration) *Watchlist {
	w := &Watchlist{
		entries:  make(map[string]*domain.WatchlistEntry, len(accounts)),
		lookback: lookback,
	}
	for _, a := range accounts {
		w.entries[a.Account] = &domain.WatchlistEntry{
			Account: a.Account,
			Role:    a.Role,
			State:   domain.AccountStateClean,
			Balance: a.Balance,
		}
	}
	return w
}

// IsPrivileged reports whether account is on the watchlist.
func (w *Watchlist) IsPrivileged(account string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.entries[account]
	return ok
}

// IsFlagged reports whether a privileged account has left the Clean state.
func (w *Watchlist) IsFlagged(account string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entries[account]
	return ok && e.State != domain.AccountStateClean
}

// IsFrozen reports whether account is frozen or already redistributed.
func (w *Watchlist) IsFrozen(account string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entries[account]
	return ok && (e.State == domain.AccountStateFrozen || e.State == domain.AccountStateRedistributed)
}

// ViolationCount returns the total number of violations recorded for account.
func (w *Watchlist) ViolationCount(account string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if e, ok := w.entries[account]; ok {
		return len(e.Violations)
	}
	return 0
}

// Get returns a copy of the entry for account.
func (w *Watchlist) Get(account string) (domain.WatchlistEntry, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entries[account]
	if !ok {
		return domain.WatchlistEntry{}, fmt.Errorf("%s: %w", account, domain.ErrAccountNotPrivileged)
	}
	return copyEntry(e), nil
}

// List returns copies of all entries ordered by account.
func (w *Watchlist) List() []domain.WatchlistEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]domain.WatchlistEntry, 0, len(w.entries))
	for _, e := range w.entries {
		out = append(out, copyEntry(e))
	}
	slices.SortFunc(out, func(a, b domain.WatchlistEntry) int {
		return strings.Compare(a.Account, b.Account)
	})
	return out
}

// RecordViolation appends v and returns how many violations fall within the
// lookback window ending at v.DetectedAt. A Clean account moves to
// UnderReview.
func (w *Watchlist) RecordViolation(v domain.Violation) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[v.Account]
	if !ok {
		return 0, fmt.Errorf("%s: %w", v.Account, domain.ErrAccountNotPrivileged)
	}
	e.Violations = append(e.Violations, v)
	if e.State == domain.AccountStateClean {
		e.State = domain.AccountStateUnderReview
	}
	return w.countRecentLocked(e, v.DetectedAt), nil
}

func (w *Watchlist) countRecentLocked(e *domain.WatchlistEntry, now time.Time) int {
	if w.lookback <= 0 {
		return len(e.Violations)
	}
	cutoff := now.Add(-w.lookback)
	n := 0
	for _, v := range e.Violations {
		if !v.DetectedAt.Before(cutoff) {
			n++
		}
	}
	return n
}

// Freeze moves account to Frozen and hands back its entire tracked balance,
// leaving zero behind. A negative balance freezes nothing. It fails if the
// state machine forbids the move.
func (w *Watchlist) Freeze(account string) (domain.WatchlistEntry, int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[account]
	if !ok {
		return domain.WatchlistEntry{}, 0, fmt.Errorf("%s: %w", account, domain.ErrAccountNotPrivileged)
	}
	if !e.State.CanTransition(domain.AccountStateFrozen) {
		return domain.WatchlistEntry{}, 0, fmt.Errorf("cannot freeze %s from state %s", account, e.State)
	}
	amount := max(e.Balance, 0)
	e.Balance = 0
	e.State = domain.AccountStateFrozen
	return copyEntry(e), amount, nil
}

// RevertFreeze puts back the state and balance captured before a Freeze
// whose frozen record could not be written.
func (w *Watchlist) RevertFreeze(before domain.WatchlistEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[before.Account]
	if !ok {
		return fmt.Errorf("%s: %w", before.Account, domain.ErrAccountNotPrivileged)
	}
	if e.State != domain.AccountStateFrozen {
		return fmt.Errorf("cannot revert freeze of %s in state %s", before.Account, e.State)
	}
	e.State = before.State
	e.Balance = before.Balance
	return nil
}

// MarkRedistributed completes the lifecycle of a frozen account.
func (w *Watchlist) MarkRedistributed(account string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.entries[account]
	if !ok {
		return fmt.Errorf("%s: %w", account, domain.ErrAccountNotPrivileged)
	}
	if e.State == domain.AccountStateRedistributed {
		return nil
	}
	if !e.State.CanTransition(domain.AccountStateRedistributed) {
		return fmt.Errorf("cannot redistribute %s from state %s", account, e.State)
	}
	e.State = domain.AccountStateRedistributed
	return nil
}

// AdjustBalance applies delta to a privileged account's tracked balance.
// Non-privileged accounts are ignored; frozen accounts no longer track value.
func (w *Watchlist) AdjustBalance(account string, delta int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entries[account]
	if !ok || e.State == domain.AccountStateFrozen || e.State == domain.AccountStateRedistributed {
		return
	}
	e.Balance += delta
}

// Restore overwrites entries with persisted state. Entries for accounts that
// are no longer privileged are ignored.
func (w *Watchlist) Restore(entries []domain.WatchlistEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range entries {
		e, ok := w.entries[r.Account]
		if !ok {
			continue
		}
		e.State = r.State
		e.Balance = r.Balance
		e.Violations = slices.Clone(r.Violations)
	}
}

func copyEntry(e *domain.WatchlistEntry) domain.WatchlistEntry {
	c := *e
	c.Violations = slices.Clone(e.Violations)
	return c
}
