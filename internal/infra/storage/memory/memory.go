package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vietddude/purity/internal/core/domain"
	"github.com/vietddude/purity/internal/infra/storage"
)

type MemoryStorage struct {
	decisions map[string]storage.DecisionRecord
	order     []string
	frozen    []domain.FrozenBalance
	states    map[string]domain.WatchlistEntry
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		decisions: make(map[string]storage.DecisionRecord),
		states:    make(map[string]domain.WatchlistEntry),
	}
}

// Store returns the repositories backed by this storage.
func (s *MemoryStorage) Store() storage.Store {
	return storage.Store{
		Decisions: NewDecisionRepo(s),
		Frozen:    NewFrozenRepo(s),
		Watchlist: NewWatchlistRepo(s),
	}
}

// -----------------------------------------------------------------------------
// Decision Repository
// -----------------------------------------------------------------------------

type DecisionRepo struct {
	store *MemoryStorage
}

func NewDecisionRepo(store *MemoryStorage) *DecisionRepo {
	return &DecisionRepo{store: store}
}

func (r *DecisionRepo) Save(ctx context.Context, rec storage.DecisionRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id := rec.Decision.TxID
	if _, exists := r.store.decisions[id]; !exists {
		r.store.order = append(r.store.order, id)
	}
	r.store.decisions[id] = rec
	return nil
}

func (r *DecisionRepo) Get(ctx context.Context, txID string) (*storage.DecisionRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rec, ok := r.store.decisions[txID]
	if !ok {
		return nil, fmt.Errorf("decision %s: %w", txID, storage.ErrNotFound)
	}
	return &rec, nil
}

func (r *DecisionRepo) List(ctx context.Context, limit int) ([]storage.DecisionRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []storage.DecisionRecord
	for i := len(r.store.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, r.store.decisions[r.store.order[i]])
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Frozen Balance Repository
// -----------------------------------------------------------------------------

type FrozenRepo struct {
	store *MemoryStorage
}

func NewFrozenRepo(store *MemoryStorage) *FrozenRepo {
	return &FrozenRepo{store: store}
}

func (r *FrozenRepo) Save(ctx context.Context, fb domain.FrozenBalance) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.frozen {
		if existing.ID == fb.ID {
			return nil
		}
	}
	r.store.frozen = append(r.store.frozen, fb)
	return nil
}

func (r *FrozenRepo) MarkRedistributed(ctx context.Context, id string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.store.frozen {
		if r.store.frozen[i].ID != id {
			continue
		}
		if r.store.frozen[i].RedistributedAt != nil {
			return fmt.Errorf("frozen balance %s: %w", id, domain.ErrAlreadyRedistributed)
		}
		r.store.frozen[i].RedistributedAt = &at
		return nil
	}
	return fmt.Errorf("frozen balance %s: %w", id, storage.ErrNotFound)
}

func (r *FrozenRepo) List(ctx context.Context) ([]domain.FrozenBalance, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return slices.Clone(r.store.frozen), nil
}

// -----------------------------------------------------------------------------
// Watchlist Repository
// -----------------------------------------------------------------------------

type WatchlistRepo struct {
	store *MemoryStorage
}

func NewWatchlistRepo(store *MemoryStorage) *WatchlistRepo {
	return &WatchlistRepo{store: store}
}

func (r *WatchlistRepo) AppendViolation(ctx context.Context, v domain.Violation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e := r.store.states[v.Account]
	e.Account = v.Account
	e.Violations = append(e.Violations, v)
	r.store.states[v.Account] = e
	return nil
}

func (r *WatchlistRepo) SaveState(
	ctx context.Context,
	account string,
	state domain.AccountState,
	balance int64,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	e := r.store.states[account]
	e.Account = account
	e.State = state
	e.Balance = balance
	r.store.states[account] = e
	return nil
}

func (r *WatchlistRepo) Load(ctx context.Context) ([]domain.WatchlistEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]domain.WatchlistEntry, 0, len(r.store.states))
	for _, e := range r.store.states {
		e.Violations = slices.Clone(e.Violations)
		if e.State == "" {
			e.State = domain.AccountStateUnderReview
		}
		out = append(out, e)
	}
	return out, nil
}
