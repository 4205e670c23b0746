package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vietddude/purity/internal/core/domain"
)

// Memory is an in-process ledger used for batch runs and tests.
type Memory struct {
	mu        sync.RWMutex
	history   []domain.TransactionRecord
	decisions map[string]domain.Decision
	pools     map[domain.PoolTarget]int64
	moved     map[string]struct{}
}

// NewMemory creates a ledger seeded with past transfers.
func NewMemory(history ...domain.TransactionRecord) *Memory {
	return &Memory{
		history:   slices.Clone(history),
		decisions: make(map[string]domain.Decision),
		pools:     make(map[domain.PoolTarget]int64),
		moved:     make(map[string]struct{}),
	}
}

// Record appends a settled transfer to history.
func (m *Memory) Record(tx domain.TransactionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, tx)
}

func (m *Memory) FetchRecent(ctx context.Context, account string, since time.Time) ([]domain.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.TransactionRecord
	for _, tx := range m.history {
		if tx.Timestamp.Before(since) {
			continue
		}
		if tx.Sender == account || tx.Recipient == account {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *Memory) SubmitDecision(ctx context.Context, txID string, decision domain.Decision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[txID] = decision
	return nil
}

func (m *Memory) Redistribute(ctx context.Context, frozen domain.FrozenBalance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, done := m.moved[frozen.ID]; done {
		return nil
	}
	if frozen.Target == "" {
		return fmt.Errorf("frozen balance %s has no target: %w", frozen.ID, ErrRejected)
	}
	m.moved[frozen.ID] = struct{}{}
	m.pools[frozen.Target] += frozen.Amount
	return nil
}

// Decision returns the submitted decision for txID.
func (m *Memory) Decision(txID string) (domain.Decision, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.decisions[txID]
	return d, ok
}

// PoolBalance returns the value moved into target so far.
func (m *Memory) PoolBalance(target domain.PoolTarget) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pools[target]
}
