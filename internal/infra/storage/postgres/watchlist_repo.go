package postgres

import (
	"context"
	"fmt"

	"github.com/vietddude/purity/internal/core/domain"
)

// WatchlistRepo implements storage.WatchlistRepository using PostgreSQL.
type WatchlistRepo struct {
	db *DB
}

// NewWatchlistRepo creates a new PostgreSQL watchlist repository.
func NewWatchlistRepo(db *DB) *WatchlistRepo {
	return &WatchlistRepo{db: db}
}

// AppendViolation records a violation once per (tx, account).
func (r *WatchlistRepo) AppendViolation(ctx context.Context, v domain.Violation) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO violations (tx_id, account, reason, detected_at)
		VALUES (:tx_id, :account, :reason, :detected_at)
		ON CONFLICT (tx_id, account) DO NOTHING`, v)
	if err != nil {
		return fmt.Errorf("failed to append violation: %w", err)
	}
	return nil
}

// SaveState upserts an account's state and balance.
func (r *WatchlistRepo) SaveState(
	ctx context.Context,
	account string,
	state domain.AccountState,
	balance int64,
) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO watchlist_state (account, state, balance, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (account) DO UPDATE SET
			state = EXCLUDED.state,
			balance = EXCLUDED.balance,
			updated_at = now()`,
		account, string(state), balance)
	if err != nil {
		return fmt.Errorf("failed to save watchlist state: %w", err)
	}
	return nil
}

type stateRow struct {
	Account string `db:"account"`
	State   string `db:"state"`
	Balance int64  `db:"balance"`
}

// Load returns every account with stored state or violations.
func (r *WatchlistRepo) Load(ctx context.Context) ([]domain.WatchlistEntry, error) {
	var states []stateRow
	if err := r.db.SelectContext(ctx, &states,
		`SELECT account, state, balance FROM watchlist_state`); err != nil {
		return nil, fmt.Errorf("failed to load watchlist state: %w", err)
	}
	var violations []domain.Violation
	if err := r.db.SelectContext(ctx, &violations,
		`SELECT tx_id, account, reason, detected_at FROM violations ORDER BY detected_at, id`); err != nil {
		return nil, fmt.Errorf("failed to load violations: %w", err)
	}

	entries := make(map[string]*domain.WatchlistEntry)
	var order []string
	get := func(account string) *domain.WatchlistEntry {
		if e, ok := entries[account]; ok {
			return e
		}
		e := &domain.WatchlistEntry{Account: account, State: domain.AccountStateUnderReview}
		entries[account] = e
		order = append(order, account)
		return e
	}
	for _, s := range states {
		e := get(s.Account)
		e.State = domain.AccountState(s.State)
		e.Balance = s.Balance
	}
	for _, v := range violations {
		e := get(v.Account)
		e.Violations = append(e.Violations, v)
	}

	out := make([]domain.WatchlistEntry, 0, len(order))
	for _, acc := range order {
		out = append(out, *entries[acc])
	}
	return out, nil
}
