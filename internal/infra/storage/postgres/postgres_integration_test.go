//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vietddude/purity/internal/core/domain"
	"github.com/vietddude/purity/internal/infra/storage"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("purity"),
		tcpostgres.WithUsername("purity"),
		tcpostgres.WithPassword("purity"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := NewDB(ctx, Config{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate())
	return db
}

func TestPostgresStore(t *testing.T) {
	db := newTestDB(t)
	store := db.Store()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("decisions", func(t *testing.T) {
		tx := domain.TransactionRecord{
			ID: "tx-1", Amount: 314159, Origin: domain.OriginP2P,
			Timestamp: now, Sender: "dave", Recipient: "erin",
		}
		d := domain.Reject("tx-1", domain.ReasonTaintedExposure, now)
		d.TaintPath = []string{"dave", "carol", "binance"}
		require.NoError(t, store.Decisions.Save(ctx, storage.DecisionRecord{Transaction: tx, Decision: d}))

		got, err := store.Decisions.Get(ctx, "tx-1")
		require.NoError(t, err)
		assert.Equal(t, domain.ReasonTaintedExposure, got.Decision.Reason)
		assert.Equal(t, d.TaintPath, got.Decision.TaintPath)
		assert.Equal(t, "dave", got.Transaction.Sender)

		_, err = store.Decisions.Get(ctx, "missing")
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("frozen balances are append-only", func(t *testing.T) {
		fb := domain.FrozenBalance{
			ID: "f-1", Account: "founder_wallet_1", Amount: 1000,
			Reason: domain.ReasonAnomalyScore, Target: domain.PoolCommunity, CreatedAt: now,
		}
		require.NoError(t, store.Frozen.Save(ctx, fb))
		require.NoError(t, store.Frozen.Save(ctx, fb))

		require.NoError(t, store.Frozen.MarkRedistributed(ctx, "f-1", now.Add(time.Minute)))
		err := store.Frozen.MarkRedistributed(ctx, "f-1", now)
		assert.ErrorIs(t, err, domain.ErrAlreadyRedistributed)
		assert.ErrorIs(t, store.Frozen.MarkRedistributed(ctx, "nope", now), storage.ErrNotFound)

		_, err = db.ExecContext(ctx, `DELETE FROM frozen_balances WHERE id = 'f-1'`)
		assert.Error(t, err, "delete must be refused by trigger")

		list, err := store.Frozen.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list[0].Redistributed())
	})

	t.Run("watchlist", func(t *testing.T) {
		v := domain.Violation{TxID: "tx-9", Account: "team_wallet_1", Reason: domain.ReasonAnomalyScore, DetectedAt: now}
		require.NoError(t, store.Watchlist.AppendViolation(ctx, v))
		require.NoError(t, store.Watchlist.AppendViolation(ctx, v))
		require.NoError(t, store.Watchlist.SaveState(ctx, "team_wallet_1", domain.AccountStateFrozen, 0))

		entries, err := store.Watchlist.Load(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, domain.AccountStateFrozen, entries[0].State)
		assert.Len(t, entries[0].Violations, 1)
	})
}
