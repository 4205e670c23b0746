package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/vietddude/purity/internal/core/domain"
	"github.com/vietddude/purity/internal/infra/storage"
)

// DecisionRepo implements storage.DecisionRepository using PostgreSQL.
type DecisionRepo struct {
	db *DB
}

// NewDecisionRepo creates a new PostgreSQL decision repository.
func NewDecisionRepo(db *DB) *DecisionRepo {
	return &DecisionRepo{db: db}
}

type decisionRow struct {
	TxID        string          `db:"tx_id"`
	Kind        string          `db:"kind"`
	Reason      string          `db:"reason"`
	Account     string          `db:"account"`
	Score       float64         `db:"score"`
	TaintPath   pq.StringArray  `db:"taint_path"`
	FrozenIDs   pq.StringArray  `db:"frozen_ids"`
	DecidedAt   time.Time       `db:"decided_at"`
	Transaction json.RawMessage `db:"transaction"`
}

func (r decisionRow) toRecord() (storage.DecisionRecord, error) {
	var tx domain.TransactionRecord
	if err := json.Unmarshal(r.Transaction, &tx); err != nil {
		return storage.DecisionRecord{}, fmt.Errorf("failed to decode transaction %s: %w", r.TxID, err)
	}
	return storage.DecisionRecord{
		Transaction: tx,
		Decision: domain.Decision{
			TxID:      r.TxID,
			Kind:      domain.DecisionKind(r.Kind),
			Reason:    domain.Reason(r.Reason),
			Account:   r.Account,
			FrozenIDs: []string(r.FrozenIDs),
			Score:     r.Score,
			TaintPath: []string(r.TaintPath),
			DecidedAt: r.DecidedAt,
		},
	}, nil
}

// Save upserts a decision.
func (r *DecisionRepo) Save(ctx context.Context, rec storage.DecisionRecord) error {
	txJSON, err := json.Marshal(rec.Transaction)
	if err != nil {
		return fmt.Errorf("failed to encode transaction: %w", err)
	}
	d := rec.Decision
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO decisions (tx_id, kind, reason, account, score, taint_path, frozen_ids, decided_at, transaction)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tx_id) DO UPDATE SET
			kind = EXCLUDED.kind,
			reason = EXCLUDED.reason,
			account = EXCLUDED.account,
			score = EXCLUDED.score,
			taint_path = EXCLUDED.taint_path,
			frozen_ids = EXCLUDED.frozen_ids,
			decided_at = EXCLUDED.decided_at,
			transaction = EXCLUDED.transaction`,
		d.TxID, string(d.Kind), string(d.Reason), d.Account, d.Score,
		pq.Array(nonNil(d.TaintPath)), pq.Array(nonNil(d.FrozenIDs)), d.DecidedAt, txJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save decision: %w", err)
	}
	return nil
}

// Get retrieves a decision by transaction id.
func (r *DecisionRepo) Get(ctx context.Context, txID string) (*storage.DecisionRecord, error) {
	var row decisionRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM decisions WHERE tx_id = $1`, txID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("decision %s: %w", txID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision: %w", err)
	}
	rec, err := row.toRecord()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns the most recent decisions.
func (r *DecisionRepo) List(ctx context.Context, limit int) ([]storage.DecisionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []decisionRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM decisions ORDER BY decided_at DESC LIMIT $1`, limit); err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	out := make([]storage.DecisionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
