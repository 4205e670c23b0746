package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vietddude/purity/internal/compliance/filter"
	"github.com/vietddude/purity/internal/core/domain"
	"github.com/vietddude/purity/internal/infra/storage"
)

const maxBatch = 1000

// Enforcer decides transactions.
type Enforcer interface {
	Enforce(ctx context.Context, tx domain.TransactionRecord) (domain.Decision, error)
}

// FreezeView is the read side of the freeze ledger.
type FreezeView interface {
	List() []domain.FrozenBalance
	TotalFrozen() int64
	TotalRedistributed() int64
}

// WatchlistView is the read side of the watchlist.
type WatchlistView interface {
	Get(account string) (domain.WatchlistEntry, error)
	List() []domain.WatchlistEntry
}

// Handler wires compliance endpoints to the enforcer and its stores.
type Handler struct {
	enforcer  Enforcer
	decisions storage.DecisionRepository
	freezes   FreezeView
	watchlist WatchlistView
	exchanges filter.Filter
	logger    *slog.Logger
}

// NewHandler constructs a handler with its dependencies.
func NewHandler(
	enforcer Enforcer,
	decisions storage.DecisionRepository,
	freezes FreezeView,
	watchlist WatchlistView,
	exchanges filter.Filter,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		enforcer:  enforcer,
		decisions: decisions,
		freezes:   freezes,
		watchlist: watchlist,
		exchanges: exchanges,
		logger:    logger,
	}
}

// Register mounts the v1 endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/transactions", h.HandleEnforce)
		r.Post("/transactions/batch", h.HandleEnforceBatch)
		r.Get("/decisions", h.HandleListDecisions)
		r.Get("/decisions/{txID}", h.HandleGetDecision)
		r.Get("/frozen", h.HandleListFrozen)
		r.Get("/frozen/total", h.HandleFrozenTotal)
		r.Get("/watchlist", h.HandleListWatchlist)
		r.Get("/watchlist/{account}", h.HandleGetWatchlist)
		r.Get("/exchanges", h.HandleExchangeCount)
		r.Get("/exchanges/{account}", h.HandleGetExchange)
		r.Put("/exchanges/{account}", h.HandlePutExchange)
		r.Delete("/exchanges/{account}", h.HandleDeleteExchange)
	})
}

// TransactionRequest is the JSON body of POST /v1/transactions.
type TransactionRequest struct {
	ID        string    `json:"id"`
	Amount    int64     `json:"amount"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Memo      string    `json:"memo,omitempty"`
}

// Record converts the request into a transaction record. A missing
// timestamp defaults to now.
func (req TransactionRequest) Record(now time.Time) domain.TransactionRecord {
	tx := domain.TransactionRecord{
		ID:        req.ID,
		Amount:    req.Amount,
		Timestamp: req.Timestamp,
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Memo:      req.Memo,
	}
	if req.Origin != "" {
		tx.Origin = domain.ParseOrigin(req.Origin)
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = now
	}
	return tx
}

// BatchResult is one entry of a batch response.
type BatchResult struct {
	TxID     string           `json:"tx_id"`
	Decision *domain.Decision `json:"decision,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// FrozenTotals is the body of GET /v1/frozen/total.
type FrozenTotals struct {
	TotalFrozen        int64 `json:"total_frozen"`
	TotalRedistributed int64 `json:"total_redistributed"`
	Pending            int64 `json:"pending"`
}

// HandleEnforce handles POST /v1/transactions.
func (h *Handler) HandleEnforce(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	tx := req.Record(time.Now().UTC())
	decision, err := h.enforcer.Enforce(ctx, tx)
	if err != nil {
		h.writeEnforceError(w, r, tx, err)
		return
	}

	h.logger.InfoContext(ctx, "transaction enforced",
		"tx_id", tx.ID,
		"decision", decision.Kind,
		"reason", decision.Reason,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	WriteJSON(w, http.StatusOK, decision)
}

// HandleEnforceBatch handles POST /v1/transactions/batch. Records are
// decided in order; a malformed record does not stop the rest.
func (h *Handler) HandleEnforceBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if len(reqs) > maxBatch {
		WriteError(w, r, http.StatusRequestEntityTooLarge, "batch_too_large",
			"batch exceeds "+strconv.Itoa(maxBatch)+" transactions")
		return
	}

	now := time.Now().UTC()
	results := make([]BatchResult, len(reqs))
	for i, req := range reqs {
		tx := req.Record(now)
		results[i].TxID = tx.ID
		decision, err := h.enforcer.Enforce(r.Context(), tx)
		if err != nil {
			results[i].Error = err.Error()
			continue
		}
		results[i].Decision = &decision
	}
	WriteJSON(w, http.StatusOK, results)
}

// HandleGetDecision handles GET /v1/decisions/{txID}.
func (h *Handler) HandleGetDecision(w http.ResponseWriter, r *http.Request) {
	txID := chi.URLParam(r, "txID")
	rec, err := h.decisions.Get(r.Context(), txID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, r, http.StatusNotFound, "not_found", "no decision for "+txID)
			return
		}
		h.logger.ErrorContext(r.Context(), "decision lookup failed", "tx_id", txID, "error", err)
		WriteError(w, r, http.StatusInternalServerError, "internal", "decision lookup failed")
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// HandleListDecisions handles GET /v1/decisions?limit=N.
func (h *Handler) HandleListDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			WriteError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxBatch)
	}
	recs, err := h.decisions.List(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "decision list failed", "error", err)
		WriteError(w, r, http.StatusInternalServerError, "internal", "decision list failed")
		return
	}
	WriteJSON(w, http.StatusOK, recs)
}

// HandleListFrozen handles GET /v1/frozen.
func (h *Handler) HandleListFrozen(w http.ResponseWriter, r *http.Request) {
	list := h.freezes.List()
	if list == nil {
		list = []domain.FrozenBalance{}
	}
	WriteJSON(w, http.StatusOK, list)
}

// HandleFrozenTotal handles GET /v1/frozen/total.
func (h *Handler) HandleFrozenTotal(w http.ResponseWriter, r *http.Request) {
	total := h.freezes.TotalFrozen()
	moved := h.freezes.TotalRedistributed()
	WriteJSON(w, http.StatusOK, FrozenTotals{
		TotalFrozen:        total,
		TotalRedistributed: moved,
		Pending:            total - moved,
	})
}

// HandleListWatchlist handles GET /v1/watchlist.
func (h *Handler) HandleListWatchlist(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.watchlist.List())
}

// HandleGetWatchlist handles GET /v1/watchlist/{account}.
func (h *Handler) HandleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	entry, err := h.watchlist.Get(account)
	if err != nil {
		WriteError(w, r, http.StatusNotFound, "not_privileged", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, entry)
}

// ExchangeStatus is the body of GET /v1/exchanges/{account}.
type ExchangeStatus struct {
	Account string `json:"account"`
	Known   bool   `json:"known"`
}

// HandleExchangeCount handles GET /v1/exchanges.
func (h *Handler) HandleExchangeCount(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]int{"count": h.exchanges.Size()})
}

// HandleGetExchange handles GET /v1/exchanges/{account}.
func (h *Handler) HandleGetExchange(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	WriteJSON(w, http.StatusOK, ExchangeStatus{Account: account, Known: h.exchanges.Contains(account)})
}

// HandlePutExchange handles PUT /v1/exchanges/{account}. Known exchange
// accounts are taint sources for every later trace.
func (h *Handler) HandlePutExchange(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if err := h.exchanges.Add(account); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	h.logger.InfoContext(r.Context(), "Exchange account added", "account", account)
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteExchange handles DELETE /v1/exchanges/{account}.
func (h *Handler) HandleDeleteExchange(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if err := h.exchanges.Remove(account); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	h.logger.InfoContext(r.Context(), "Exchange account removed", "account", account)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeEnforceError(w http.ResponseWriter, r *http.Request, tx domain.TransactionRecord, err error) {
	if errors.Is(err, domain.ErrMalformedTransaction) {
		WriteError(w, r, http.StatusBadRequest, "malformed_transaction", err.Error())
		return
	}
	h.logger.ErrorContext(r.Context(), "enforcement failed", "tx_id", tx.ID, "error", err)
	WriteError(w, r, http.StatusInternalServerError, "internal", "enforcement failed")
}
