// Package enforcer is the single entry point that turns a transaction into
// an Accept, Reject or Frozen decision and owns every freeze it causes.
package enforcer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vietddude/purity/internal/compliance/emitter"
	"github.com/vietddude/purity/internal/compliance/exposure"
	"github.com/vietddude/purity/internal/compliance/freeze"
	"github.com/vietddude/purity/internal/compliance/metrics"
	"github.com/vietddude/purity/internal/compliance/quorum"
	"github.com/vietddude/purity/internal/compliance/recovery"
	"github.com/vietddude/purity/internal/compliance/scoring"
	"github.com/vietddude/purity/internal/compliance/validator"
	"github.com/vietddude/purity/internal/compliance/watchlist"
	"github.com/vietddude/purity/internal/core/config"
	"github.com/vietddude/purity/internal/core/domain"
	"github.com/vietddude/purity/internal/infra/ledger"
	"github.com/vietddude/purity/internal/infra/storage"
)

const tracerName = "github.com/vietddude/purity/enforcer"

// Deps are the collaborators and stores an Enforcer is built from. Nothing
// here is a process-wide singleton; tests build their own.
type Deps struct {
	Validator *validator.Validator
	Tracer    *exposure.Tracer
	Graph     *exposure.Graph
	Scorer    scoring.Scorer
	Voters    []quorum.Voter
	Watchlist *watchlist.Watchlist
	Freezes   *freeze.Ledger
	Ledger    ledger.Ledger
	Store     storage.Store
	Audit     emitter.Emitter

	// Redistributor is optional; without it frozen balances wait for the sweeper.
	Redistributor *recovery.Redistributor

	// HistoryWindow bounds how far back sender history is fetched.
	HistoryWindow time.Duration

	Logger *slog.Logger
	Clock  func() time.Time
}

// Enforcer runs the compliance pipeline for one transaction at a time per
// account.
type Enforcer struct {
	policy config.PolicyConfig
	deps   Deps

	locks  *stripedLocks
	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer

	background sync.WaitGroup
}

// New validates deps and creates an enforcer.
func New(policy config.PolicyConfig, deps Deps) (*Enforcer, error) {
	switch {
	case deps.Validator == nil:
		return nil, errors.New("enforcer: validator is required")
	case deps.Tracer == nil || deps.Graph == nil:
		return nil, errors.New("enforcer: exposure tracer and graph are required")
	case deps.Scorer == nil:
		return nil, errors.New("enforcer: scorer is required")
	case deps.Watchlist == nil || deps.Freezes == nil:
		return nil, errors.New("enforcer: watchlist and freeze ledger are required")
	case deps.Ledger == nil:
		return nil, errors.New("enforcer: ledger is required")
	case deps.Audit == nil:
		return nil, errors.New("enforcer: audit emitter is required")
	case deps.Store.Decisions == nil || deps.Store.Frozen == nil || deps.Store.Watchlist == nil:
		return nil, errors.New("enforcer: store is incomplete")
	}
	if policy.ViolationTolerance < 1 {
		policy.ViolationTolerance = 1
	}

	e := &Enforcer{
		policy: policy,
		deps:   deps,
		locks:  newStripedLocks(defaultStripes),
		logger: deps.Logger,
		now:    deps.Clock,
		tracer: otel.Tracer(tracerName),
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e, nil
}

// Enforce decides tx. A malformed record is the only error; every policy
// outcome, collaborator failure included, comes back as a Decision.
func (e *Enforcer) Enforce(ctx context.Context, tx domain.TransactionRecord) (domain.Decision, error) {
	if err := tx.Validate(); err != nil {
		return domain.Decision{}, err
	}

	ctx, span := e.tracer.Start(ctx, "Enforce", trace.WithAttributes(
		attribute.String("tx.id", tx.ID),
		attribute.String("tx.origin", tx.Origin.String()),
	))
	defer span.End()
	start := time.Now()

	if prev, ok := e.previous(ctx, tx.ID); ok {
		span.SetAttributes(attribute.Bool("tx.replayed", true))
		return prev, nil
	}

	// A redelivery racing the first attempt shares its participants, so it
	// waits on the same locks and finds the stored decision here.
	unlock := e.locks.Lock(tx.Sender, tx.Recipient)
	if prev, ok := e.previous(ctx, tx.ID); ok {
		unlock()
		span.SetAttributes(attribute.Bool("tx.replayed", true))
		return prev, nil
	}
	decision, frozen := e.enforceLocked(ctx, tx)
	unlock()

	for _, fb := range frozen {
		e.scheduleRedistribution(ctx, fb)
	}

	metrics.DecisionsTotal.WithLabelValues(string(decision.Kind), string(decision.Reason)).Inc()
	metrics.EnforceLatency.Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("decision", string(decision.Kind)),
		attribute.String("reason", string(decision.Reason)),
	)
	if !decision.Accepted() {
		span.SetStatus(codes.Error, string(decision.Reason))
	}
	return decision, nil
}

// EnforceBatch decides each record in order. Malformed records yield a
// zero Decision and their error at the same index.
func (e *Enforcer) EnforceBatch(ctx context.Context, txs []domain.TransactionRecord) ([]domain.Decision, []error) {
	decisions := make([]domain.Decision, len(txs))
	errs := make([]error, len(txs))
	for i, tx := range txs {
		decisions[i], errs[i] = e.Enforce(ctx, tx)
	}
	return decisions, errs
}

// Wait blocks until background redistributions started by Enforce finish.
func (e *Enforcer) Wait() {
	e.background.Wait()
}

// previous returns an already stored decision so redelivered records do
// not produce a second decision or audit event.
func (e *Enforcer) previous(ctx context.Context, txID string) (domain.Decision, bool) {
	rec, err := e.deps.Store.Decisions.Get(ctx, txID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Warn("Failed to look up previous decision", "tx_id", txID, "error", err)
		}
		return domain.Decision{}, false
	}
	return rec.Decision, true
}

func (e *Enforcer) enforceLocked(ctx context.Context, tx domain.TransactionRecord) (domain.Decision, []domain.FrozenBalance) {
	now := e.now()
	decision := e.evaluate(ctx, tx, now)

	if decision.Accepted() {
		if err := e.submit(ctx, decision); err != nil {
			e.logger.Warn("Ledger refused accept, rejecting", "tx_id", tx.ID, "error", err)
			decision = domain.Reject(tx.ID, domain.ReasonLedgerUnavailable, now)
		}
	}

	var frozen []domain.FrozenBalance
	if !decision.Accepted() {
		if countsAsViolation(decision.Reason) {
			frozen = e.recordViolations(ctx, tx, decision.Reason, now)
		}
		if len(frozen) > 0 {
			decision = frozenDecision(decision, frozen)
		}
		if err := e.submit(ctx, decision); err != nil {
			e.logger.Warn("Failed to report rejection to ledger", "tx_id", tx.ID, "error", err)
		}
	} else {
		e.apply(ctx, tx)
	}

	e.record(ctx, tx, decision)
	return decision, frozen
}

// evaluate runs the checks in order and stops at the first rejection.
func (e *Enforcer) evaluate(ctx context.Context, tx domain.TransactionRecord, now time.Time) domain.Decision {
	for _, account := range tx.Participants() {
		if e.deps.Watchlist.IsFrozen(account) {
			return domain.Reject(tx.ID, domain.ReasonAccountFrozen, now)
		}
	}

	if out := e.deps.Validator.Validate(tx); !out.Passed {
		return domain.Reject(tx.ID, out.Reason, now)
	}

	if err := e.hydrate(ctx, tx.Sender, now); err != nil {
		e.logger.Warn("Failed to fetch sender history", "tx_id", tx.ID, "account", tx.Sender, "error", err)
		return domain.Reject(tx.ID, domain.ReasonLedgerUnavailable, now)
	}

	if verdict := e.deps.Tracer.Trace(e.deps.Graph, tx); verdict.Tainted {
		d := domain.Reject(tx.ID, domain.ReasonTaintedExposure, now)
		d.TaintPath = verdict.Path
		e.logger.Info("Tainted exposure",
			"tx_id", tx.ID,
			"cause", verdict.Cause,
			"path", verdict.Path,
			"visited", verdict.Visited,
		)
		return d
	}

	fv := e.features(tx)
	score, err := e.score(ctx, fv)
	if err != nil {
		e.logger.Warn("Scorer unavailable", "tx_id", tx.ID, "error", err)
		return domain.Reject(tx.ID, domain.ReasonScorerUnavailable, now)
	}
	if score > e.policy.RejectThreshold {
		d := domain.Reject(tx.ID, domain.ReasonAnomalyScore, now)
		d.Score = score
		return d
	}

	privileged := fv.SenderPrivileged || e.deps.Watchlist.IsPrivileged(tx.Recipient)
	if threshold, ok := e.quorumThreshold(privileged, score); ok {
		res, err := e.vote(ctx, tx, fv, score, privileged, threshold)
		switch {
		case err != nil:
			e.logger.Warn("Consensus unavailable", "tx_id", tx.ID, "error", err)
			d := domain.Reject(tx.ID, domain.ReasonConsensusUnavailable, now)
			d.Score = score
			return d
		case !res.Approved:
			d := domain.Reject(tx.ID, domain.ReasonConsensusRejected, now)
			d.Score = score
			return d
		}
	}

	d := domain.Accept(tx.ID, now)
	d.Score = score
	return d
}

// quorumThreshold picks the threshold for a vote, if one is needed.
// Privileged participants always vote; others only above the escalation score.
func (e *Enforcer) quorumThreshold(privileged bool, score float64) (float64, bool) {
	if privileged {
		return e.policy.ConsensusThresholdPrivileged, true
	}
	if e.policy.EscalationScore > 0 && score >= e.policy.EscalationScore {
		return e.policy.ConsensusThresholdNormal, true
	}
	return 0, false
}

func (e *Enforcer) hydrate(ctx context.Context, account string, now time.Time) error {
	var since time.Time
	if e.deps.HistoryWindow > 0 {
		since = now.Add(-e.deps.HistoryWindow)
	}
	ctx, cancel := e.withTimeout(ctx, e.policy.LedgerTimeout)
	defer cancel()

	start := time.Now()
	history, err := e.deps.Ledger.FetchRecent(ctx, account, since)
	metrics.CollaboratorLatency.WithLabelValues("ledger_fetch").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("ledger_fetch").Inc()
		return fmt.Errorf("failed to fetch history for %s: %w", account, err)
	}
	if added := e.deps.Graph.AddBatch(history); added > 0 {
		metrics.ExposureWindowEdges.Set(float64(e.deps.Graph.Len()))
	}
	return nil
}

func (e *Enforcer) features(tx domain.TransactionRecord) domain.FeatureVector {
	sender := e.deps.Graph.Stats(tx.Sender)
	recipient := e.deps.Graph.Stats(tx.Recipient)

	since := -1.0
	if !sender.LastSeen.IsZero() {
		since = tx.Timestamp.Sub(sender.LastSeen).Seconds()
	}
	return domain.FeatureVector{
		TxID:             tx.ID,
		Amount:           tx.Amount,
		PegValue:         e.deps.Validator.PegValue(),
		Origin:           tx.Origin,
		Memo:             tx.Memo,
		SenderRecentTxs:  sender.In + sender.Out,
		SenderFanOut:     sender.Out,
		RecipientFanIn:   recipient.In,
		SecondsSinceLast: since,
		SenderPrivileged: e.deps.Watchlist.IsPrivileged(tx.Sender),
		RecipientFlagged: e.deps.Watchlist.IsFlagged(tx.Recipient),
	}
}

func (e *Enforcer) score(ctx context.Context, fv domain.FeatureVector) (float64, error) {
	start := time.Now()
	score, err := scoring.ScoreWithTimeout(ctx, e.deps.Scorer, fv, e.policy.ScorerTimeout)
	metrics.CollaboratorLatency.WithLabelValues("scorer").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("scorer").Inc()
	}
	return score, err
}

func (e *Enforcer) vote(
	ctx context.Context,
	tx domain.TransactionRecord,
	fv domain.FeatureVector,
	score float64,
	privileged bool,
	threshold float64,
) (quorum.Result, error) {
	if len(e.deps.Voters) == 0 {
		metrics.QuorumRounds.WithLabelValues("error").Inc()
		return quorum.Result{}, errors.New("no voters configured")
	}
	topic := quorum.Topic{
		TxID:       tx.ID,
		Accounts:   tx.Participants(),
		Score:      score,
		Privileged: privileged,
		Features:   fv,
	}

	start := time.Now()
	res, err := quorum.Decide(ctx, topic, e.deps.Voters, threshold, e.policy.VoteTimeout)
	metrics.CollaboratorLatency.WithLabelValues("quorum").Observe(time.Since(start).Seconds())
	switch {
	case err != nil:
		metrics.QuorumRounds.WithLabelValues("error").Inc()
	case res.Approved:
		metrics.QuorumRounds.WithLabelValues("approved").Inc()
	default:
		metrics.QuorumRounds.WithLabelValues("rejected").Inc()
	}
	if err == nil {
		e.logger.Debug("Quorum decided",
			"tx_id", tx.ID,
			"approvals", res.Approvals,
			"rejections", res.Rejections,
			"abstentions", res.Abstentions,
			"fraction", res.Fraction,
			"threshold", res.Threshold,
		)
	}
	return res, err
}

func (e *Enforcer) submit(ctx context.Context, d domain.Decision) error {
	ctx, cancel := e.withTimeout(ctx, e.policy.LedgerTimeout)
	defer cancel()

	start := time.Now()
	err := e.deps.Ledger.SubmitDecision(ctx, d.TxID, d)
	metrics.CollaboratorLatency.WithLabelValues("ledger_submit").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CollaboratorErrors.WithLabelValues("ledger_submit").Inc()
	}
	return err
}

// apply folds an accepted transfer into the exposure window and the
// tracked balances of privileged participants.
func (e *Enforcer) apply(ctx context.Context, tx domain.TransactionRecord) {
	if e.deps.Graph.Add(tx) {
		metrics.ExposureWindowEdges.Set(float64(e.deps.Graph.Len()))
	}
	if tx.Sender == tx.Recipient {
		return
	}
	e.deps.Watchlist.AdjustBalance(tx.Sender, -tx.Amount)
	e.deps.Watchlist.AdjustBalance(tx.Recipient, tx.Amount)
	for _, account := range tx.Participants() {
		e.persistState(ctx, account)
	}
}

// record stores the decision and emits exactly one decision event for it.
func (e *Enforcer) record(ctx context.Context, tx domain.TransactionRecord, d domain.Decision) {
	if err := e.deps.Store.Decisions.Save(ctx, storage.DecisionRecord{Transaction: tx, Decision: d}); err != nil {
		e.logger.Error("Failed to save decision", "tx_id", tx.ID, "error", err)
	}

	ev := domain.AuditEvent{
		ID:        uuid.NewString(),
		Type:      domain.EventTypeDecision,
		Timestamp: d.DecidedAt,
		TxID:      d.TxID,
		Decision:  d.Kind,
		Reason:    string(d.Reason),
		Account:   d.Account,
	}
	if err := e.deps.Audit.Emit(ctx, ev); err != nil {
		metrics.AuditEmitErrors.WithLabelValues("decision").Inc()
		e.logger.Error("Failed to emit decision event", "tx_id", tx.ID, "error", err)
	}
}

func (e *Enforcer) scheduleRedistribution(ctx context.Context, fb domain.FrozenBalance) {
	r := e.deps.Redistributor
	if r == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	e.background.Go(func() {
		err := r.Redistribute(ctx, fb)
		if err != nil && !errors.Is(err, recovery.ErrInFlight) {
			e.logger.Warn("Redistribution deferred to sweeper", "frozen_id", fb.ID, "account", fb.Account, "error", err)
		}
	})
}

func (e *Enforcer) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// countsAsViolation separates confirmed policy breaches from rejections
// caused by unavailable collaborators or an already frozen account.
func countsAsViolation(reason domain.Reason) bool {
	switch reason {
	case domain.ReasonPegMismatch,
		domain.ReasonDisallowedOrigin,
		domain.ReasonTaintedExposure,
		domain.ReasonAnomalyScore,
		domain.ReasonConsensusRejected:
		return true
	}
	return false
}

func frozenDecision(reject domain.Decision, frozen []domain.FrozenBalance) domain.Decision {
	d := reject
	d.Kind = domain.DecisionFrozen
	d.Account = frozen[0].Account
	d.FrozenIDs = make([]string, len(frozen))
	for i, fb := range frozen {
		d.FrozenIDs[i] = fb.ID
	}
	return d
}
