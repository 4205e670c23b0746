package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/vietddude/purity/internal/core/domain"
	"github.com/vietddude/purity/internal/infra/storage"
)

// FrozenRepo implements storage.FrozenBalanceRepository using PostgreSQL.
type FrozenRepo struct {
	db *DB
}

// NewFrozenRepo creates a new PostgreSQL frozen balance repository.
func NewFrozenRepo(db *DB) *FrozenRepo {
	return &FrozenRepo{db: db}
}

// Save appends a frozen balance. Existing ids are left untouched.
func (r *FrozenRepo) Save(ctx context.Context, fb domain.FrozenBalance) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO frozen_balances (id, account, amount, reason, target, created_at, redistributed_at)
		VALUES (:id, :account, :amount, :reason, :target, :created_at, :redistributed_at)
		ON CONFLICT DO NOTHING`, fb)
	if err != nil {
		return fmt.Errorf("failed to save frozen balance: %w", err)
	}
	return nil
}

// MarkRedistributed sets redistributed_at if it has not been set yet.
func (r *FrozenRepo) MarkRedistributed(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE frozen_balances SET redistributed_at = $2 WHERE id = $1 AND redistributed_at IS NULL`,
		id, at)
	if err != nil {
		return fmt.Errorf("failed to mark redistributed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM frozen_balances WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check frozen balance: %w", err)
	}
	if !exists {
		return fmt.Errorf("frozen balance %s: %w", id, storage.ErrNotFound)
	}
	return fmt.Errorf("frozen balance %s: %w", id, domain.ErrAlreadyRedistributed)
}

// List returns all frozen balances in creation order.
func (r *FrozenRepo) List(ctx context.Context) ([]domain.FrozenBalance, error) {
	var out []domain.FrozenBalance
	if err := r.db.SelectContext(ctx, &out,
		`SELECT id, account, amount, reason, target, created_at, redistributed_at
		 FROM frozen_balances ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("failed to list frozen balances: %w", err)
	}
	return out, nil
}
