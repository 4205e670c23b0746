package domain

import "time"

// DecisionKind is the outcome of enforcing a transaction.
type DecisionKind string

const (
	DecisionAccept DecisionKind = "accept"
	DecisionReject DecisionKind = "reject"
	DecisionFrozen DecisionKind = "frozen"
)

// Reason codes attached to rejections.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonPegMismatch          Reason = "peg_mismatch"
	ReasonDisallowedOrigin     Reason = "disallowed_origin"
	ReasonTaintedExposure      Reason = "tainted_exposure"
	ReasonAnomalyScore         Reason = "anomaly_score"
	ReasonScorerUnavailable    Reason = "scorer_unavailable"
	ReasonConsensusRejected    Reason = "consensus_rejected"
	ReasonConsensusUnavailable Reason = "consensus_unavailable"
	ReasonLedgerUnavailable    Reason = "ledger_unavailable"
	ReasonAccountFrozen        Reason = "account_frozen"
)

// Decision is the result of Enforce. A rejection is a Decision, never an error.
type Decision struct {
	TxID      string       `json:"tx_id"`
	Kind      DecisionKind `json:"decision"`
	Reason    Reason       `json:"reason,omitempty"`
	Account   string       `json:"account,omitempty"` // set for Frozen
	FrozenIDs []string     `json:"frozen_ids,omitempty"`
	Score     float64      `json:"score"`
	TaintPath []string     `json:"taint_path,omitempty"`
	DecidedAt time.Time    `json:"decided_at"`
}

// Accepted reports whether the transaction was accepted.
func (d Decision) Accepted() bool { return d.Kind == DecisionAccept }

// Accept builds an accepting decision.
func Accept(txID string, at time.Time) Decision {
	return Decision{TxID: txID, Kind: DecisionAccept, DecidedAt: at}
}

// Reject builds a rejecting decision.
func Reject(txID string, reason Reason, at time.Time) Decision {
	return Decision{TxID: txID, Kind: DecisionReject, Reason: reason, DecidedAt: at}
}
