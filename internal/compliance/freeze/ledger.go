// Package freeze holds the append-only record of frozen balances.
package freeze

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/purity/internal/core/domain"
)

type freezeKey struct {
	account string
	at      int64
}

// Ledger is an append-only list of frozen balances. Records are never
// removed; the only mutation is marking one redistributed. The mutex is held
// for a single append or mark.
type Ledger struct {
	mu            sync.Mutex
	records       []domain.FrozenBalance
	byID          map[string]int
	byKey         map[freezeKey]int
	total         int64
	redistributed int64
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		byID:  make(map[string]int),
		byKey: make(map[freezeKey]int),
	}
}

// Freeze appends a record. A repeat call for the same account and timestamp
// returns the existing record without changing totals.
func (l *Ledger) Freeze(
	account string,
	amount int64,
	target domain.PoolTarget,
	reason domain.Reason,
	at time.Time,
) (domain.FrozenBalance, error) {
	if account == "" {
		return domain.FrozenBalance{}, fmt.Errorf("freeze: empty account")
	}
	if amount < 0 {
		return domain.FrozenBalance{}, fmt.Errorf("freeze %s: negative amount %d", account, amount)
	}

	key := freezeKey{account: account, at: at.UnixNano()}

	l.mu.Lock()
	defer l.mu.Unlock()

	if i, ok := l.byKey[key]; ok {
		return cloneRecord(l.records[i]), nil
	}
	rec := domain.FrozenBalance{
		ID:        uuid.NewString(),
		Account:   account,
		Amount:    amount,
		Reason:    reason,
		Target:    target,
		CreatedAt: at,
	}
	l.appendLocked(rec)
	return cloneRecord(rec), nil
}

func (l *Ledger) appendLocked(rec domain.FrozenBalance) {
	l.records = append(l.records, rec)
	idx := len(l.records) - 1
	l.byID[rec.ID] = idx
	l.byKey[freezeKey{account: rec.Account, at: rec.CreatedAt.UnixNano()}] = idx
	l.total += rec.Amount
	if rec.Redistributed() {
		l.redistributed += rec.Amount
	}
}

// MarkRedistributed records that the frozen value reached its target pool.
func (l *Ledger) MarkRedistributed(id string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.byID[id]
	if !ok {
		return fmt.Errorf("frozen balance %s: %w", id, domain.ErrNotFound)
	}
	if l.records[i].Redistributed() {
		return fmt.Errorf("frozen balance %s: %w", id, domain.ErrAlreadyRedistributed)
	}
	l.records[i].RedistributedAt = &at
	l.redistributed += l.records[i].Amount
	return nil
}

// TotalFrozen is the sum of every record ever appended. It never decreases.
func (l *Ledger) TotalFrozen() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// TotalRedistributed is the portion of TotalFrozen already moved to pools.
func (l *Ledger) TotalRedistributed() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.redistributed
}

// Get returns the record with id.
func (l *Ledger) Get(id string) (domain.FrozenBalance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.byID[id]
	if !ok {
		return domain.FrozenBalance{}, fmt.Errorf("frozen balance %s: %w", id, domain.ErrNotFound)
	}
	return cloneRecord(l.records[i]), nil
}

// List returns all records in append order.
func (l *Ledger) List() []domain.FrozenBalance {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.FrozenBalance, len(l.records))
	for i, r := range l.records {
		out[i] = cloneRecord(r)
	}
	return out
}

// Pending returns records not yet redistributed.
func (l *Ledger) Pending() []domain.FrozenBalance {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.FrozenBalance
	for _, r := range l.records {
		if !r.Redistributed() {
			out = append(out, cloneRecord(r))
		}
	}
	return out
}

// PendingCount returns how many records are not yet redistributed.
func (l *Ledger) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.records {
		if !r.Redistributed() {
			n++
		}
	}
	return n
}

// Restore loads persisted records, skipping ids already present.
func (l *Ledger) Restore(records []domain.FrozenBalance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b domain.FrozenBalance) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	for _, r := range sorted {
		if _, ok := l.byID[r.ID]; ok {
			continue
		}
		l.appendLocked(cloneRecord(r))
	}
}

func cloneRecord(r domain.FrozenBalance) domain.FrozenBalance {
	if r.RedistributedAt != nil {
		at := *r.RedistributedAt
		r.RedistributedAt = &at
	}
	return r
}
