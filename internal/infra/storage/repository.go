package storage

import (
	"context"
	"time"

	"github.com/vietddude/purity/internal/core/domain"
)

// ErrNotFound is returned when a record doesn't exist.
var ErrNotFound = domain.ErrNotFound

// DecisionRecord is a stored enforcement decision with the transaction it
// was made for.
type DecisionRecord struct {
	Transaction domain.TransactionRecord `json:"transaction"`
	Decision    domain.Decision          `json:"decision"`
}

// DecisionRepository stores enforcement decisions by transaction id.
type DecisionRepository interface {
	// Save stores a decision, replacing any earlier one for the same tx
	Save(ctx context.Context, rec DecisionRecord) error

	// Get retrieves the decision for a transaction
	Get(ctx context.Context, txID string) (*DecisionRecord, error)

	// List returns the most recent decisions, newest first
	List(ctx context.Context, limit int) ([]DecisionRecord, error)
}

// FrozenBalanceRepository persists the freeze ledger.
type FrozenBalanceRepository interface {
	// Save appends a frozen balance; saving an existing id is a no-op
	Save(ctx context.Context, fb domain.FrozenBalance) error

	// MarkRedistributed sets RedistributedAt once
	MarkRedistributed(ctx context.Context, id string, at time.Time) error

	// List returns every frozen balance in creation order
	List(ctx context.Context) ([]domain.FrozenBalance, error)
}

// WatchlistRepository persists privileged account state and violations.
type WatchlistRepository interface {
	// AppendViolation records a violation
	AppendViolation(ctx context.Context, v domain.Violation) error

	// SaveState stores an account's lifecycle state and tracked balance
	SaveState(ctx context.Context, account string, state domain.AccountState, balance int64) error

	// Load returns every stored entry with its violations
	Load(ctx context.Context) ([]domain.WatchlistEntry, error)
}

// Store groups the repositories the service needs.
type Store struct {
	Decisions DecisionRepository
	Frozen    FrozenBalanceRepository
	Watchlist WatchlistRepository
}
