package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/purity/internal/core/domain"
)

var t0 = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

func record(id, from, to string, at time.Time) domain.TransactionRecord {
	return domain.TransactionRecord{ID: id, Amount: 314159, Origin: domain.OriginP2P, Timestamp: at, Sender: from, Recipient: to}
}

func TestMemory_FetchRecent(t *testing.T) {
	m := NewMemory(
		record("old", "a", "b", t0.Add(-time.Hour)),
		record("in", "c", "b", t0),
		record("out", "b", "d", t0.Add(time.Minute)),
		record("other", "x", "y", t0),
	)

	txs, err := m.FetchRecent(context.Background(), "b", t0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "in", txs[0].ID)
	assert.Equal(t, "out", txs[1].ID)
}

func TestMemory_RedistributeIsIdempotent(t *testing.T) {
	m := NewMemory()
	fb := domain.FrozenBalance{ID: "f1", Account: "founder_wallet_1", Amount: 10, Target: domain.PoolCommunity}

	require.NoError(t, m.Redistribute(context.Background(), fb))
	require.NoError(t, m.Redistribute(context.Background(), fb))
	assert.Equal(t, int64(10), m.PoolBalance(domain.PoolCommunity))

	err := m.Redistribute(context.Background(), domain.FrozenBalance{ID: "f2"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestHTTPClient(t *testing.T) {
	var submitted decisionRequest
	var redistributed domain.FrozenBalance

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/accounts/{account}/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("account") != "bob" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("since") == "" {
			http.Error(w, "missing since", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode([]domain.TransactionRecord{record("t1", "alice", "bob", t0)})
	})
	mux.HandleFunc("POST /v1/decisions", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&submitted)
		w.WriteHeader(http.StatusAccepted)
	})
	mux.HandleFunc("POST /v1/redistributions", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&redistributed)
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", time.Second)
	ctx := context.Background()

	txs, err := c.FetchRecent(ctx, "bob", t0.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "alice", txs[0].Sender)

	require.NoError(t, c.SubmitDecision(ctx, "t9", domain.Accept("t9", t0)))
	assert.Equal(t, "t9", submitted.TxID)
	assert.Equal(t, domain.DecisionAccept, submitted.Decision.Kind)

	require.NoError(t, c.Redistribute(ctx, domain.FrozenBalance{ID: "f1", Amount: 5, Target: domain.PoolSupply}))
	assert.Equal(t, "f1", redistributed.ID)
}

func TestHTTPClient_ErrorClasses(t *testing.T) {
	status := http.StatusServiceUnavailable
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", status)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	err := c.Redistribute(context.Background(), domain.FrozenBalance{ID: "f1"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRejected), "5xx is retryable")

	status = http.StatusUnprocessableEntity
	err = c.Redistribute(context.Background(), domain.FrozenBalance{ID: "f1"})
	assert.ErrorIs(t, err, ErrRejected)
}

func TestHTTPClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 20*time.Millisecond)
	err := c.SubmitDecision(context.Background(), "t1", domain.Reject("t1", domain.ReasonPegMismatch, t0))
	assert.Error(t, err)
}
