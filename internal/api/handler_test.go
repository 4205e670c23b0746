package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/purity/internal/compliance/filter"
	"github.com/vietddude/purity/internal/compliance/freeze"
	"github.com/vietddude/purity/internal/compliance/watchlist"
	"github.com/vietddude/purity/internal/core/domain"
	"github.com/vietddude/purity/internal/infra/storage"
	"github.com/vietddude/purity/internal/infra/storage/memory"
)

type fakeEnforcer struct {
	seen []domain.TransactionRecord
}

func (f *fakeEnforcer) Enforce(_ context.Context, tx domain.TransactionRecord) (domain.Decision, error) {
	if err := tx.Validate(); err != nil {
		return domain.Decision{}, err
	}
	f.seen = append(f.seen, tx)
	if tx.Amount != 314159 {
		return domain.Reject(tx.ID, domain.ReasonPegMismatch, tx.Timestamp), nil
	}
	return domain.Accept(tx.ID, tx.Timestamp), nil
}

type fixture struct {
	server    *httptest.Server
	enforcer  *fakeEnforcer
	decisions storage.DecisionRepository
	freezes   *freeze.Ledger
	exchanges *filter.Directory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		enforcer:  &fakeEnforcer{},
		decisions: memory.NewMemoryStorage().Store().Decisions,
		freezes:   freeze.NewLedger(),
		exchanges: filter.NewDirectory([]string{"binance-hot"}),
	}
	wl := watchlist.New([]domain.PrivilegedAccount{
		{Account: "founder", Role: domain.RoleFounder, Balance: 42},
	}, 0)
	h := NewHandler(f.enforcer, f.decisions, f.freezes, wl, f.exchanges, nil)
	f.server = httptest.NewServer(NewRouter(h, nil))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHandleEnforce(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, "/v1/transactions",
		`{"id":"tx-1","amount":314159,"origin":"Mining","sender":"alice","recipient":"bob"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var d domain.Decision
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	assert.Equal(t, domain.DecisionAccept, d.Kind)

	require.Len(t, f.enforcer.seen, 1)
	assert.Equal(t, domain.OriginMining, f.enforcer.seen[0].Origin)
	assert.False(t, f.enforcer.seen[0].Timestamp.IsZero(), "missing timestamp defaults to now")
}

func TestHandleEnforce_OriginAliases(t *testing.T) {
	f := newFixture(t)

	f.post(t, "/v1/transactions",
		`{"id":"tx-2","amount":314159,"origin":"bought_exchange","sender":"alice","recipient":"bob"}`)

	require.Len(t, f.enforcer.seen, 1)
	assert.Equal(t, domain.OriginExchange, f.enforcer.seen[0].Origin)
}

func TestHandleEnforce_Malformed(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, "/v1/transactions", `{"id":"tx-3","amount":314159,"origin":"mining","recipient":"bob"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "malformed_transaction", body.Code)
	assert.NotEmpty(t, body.RequestID)
}

func TestHandleEnforce_InvalidJSON(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, "/v1/transactions", `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleEnforceBatch(t *testing.T) {
	f := newFixture(t)

	body := `[
		{"id":"a","amount":314159,"origin":"p2p","sender":"x","recipient":"y"},
		{"id":"b","amount":1,"origin":"p2p","sender":"x","recipient":"y"},
		{"id":"c","amount":314159,"origin":"p2p","sender":"x"}
	]`
	resp := f.post(t, "/v1/transactions/batch", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var results []BatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	require.Len(t, results, 3)
	assert.Equal(t, domain.DecisionAccept, results[0].Decision.Kind)
	assert.Equal(t, domain.ReasonPegMismatch, results[1].Decision.Reason)
	assert.Nil(t, results[2].Decision)
	assert.Contains(t, results[2].Error, "malformed")
}

func TestHandleGetDecision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, f.decisions.Save(ctx, storage.DecisionRecord{
		Decision: domain.Reject("tx-9", domain.ReasonTaintedExposure, at),
	}))

	resp := f.get(t, "/v1/decisions/tx-9")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec storage.DecisionRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	assert.Equal(t, domain.ReasonTaintedExposure, rec.Decision.Reason)

	resp = f.get(t, "/v1/decisions/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleListDecisions_BadLimit(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/v1/decisions?limit=-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleFrozen(t *testing.T) {
	f := newFixture(t)
	at := time.Now().UTC()
	fb, err := f.freezes.Freeze("founder", 42, domain.PoolCommunity, domain.ReasonPegMismatch, at)
	require.NoError(t, err)
	require.NoError(t, f.freezes.MarkRedistributed(fb.ID, at))
	_, err = f.freezes.Freeze("team", 8, domain.PoolSupply, domain.ReasonAnomalyScore, at)
	require.NoError(t, err)

	resp := f.get(t, "/v1/frozen")
	var list []domain.FrozenBalance
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Len(t, list, 2)

	resp = f.get(t, "/v1/frozen/total")
	var totals FrozenTotals
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&totals))
	assert.Equal(t, FrozenTotals{TotalFrozen: 50, TotalRedistributed: 42, Pending: 8}, totals)
}

func TestHandleWatchlist(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/v1/watchlist/founder")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entry domain.WatchlistEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entry))
	assert.Equal(t, domain.AccountStateClean, entry.State)
	assert.Equal(t, int64(42), entry.Balance)

	resp = f.get(t, "/v1/watchlist/nobody")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func (f *fixture) do(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHandleExchanges(t *testing.T) {
	f := newFixture(t)

	var status ExchangeStatus
	resp := f.get(t, "/v1/exchanges/Binance-Hot")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.True(t, status.Known)

	resp = f.do(t, http.MethodPut, "/v1/exchanges/okx-hot")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.True(t, f.exchanges.Contains("okx-hot"))

	resp = f.do(t, http.MethodDelete, "/v1/exchanges/binance-hot")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, f.exchanges.Contains("binance-hot"))

	var count map[string]int
	resp = f.get(t, "/v1/exchanges")
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&count))
	assert.Equal(t, 1, count["count"])
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	resp := f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTransactionRequest_Record(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{
		"id": "x", "amount": 1, "origin": "contribution_rewards", "sender": "a", "recipient": "b",
	}))
	var req TransactionRequest
	require.NoError(t, json.NewDecoder(&buf).Decode(&req))

	tx := req.Record(at)
	assert.Equal(t, domain.OriginReward, tx.Origin)
	assert.Equal(t, at, tx.Timestamp)
}
