package domain

import "time"

// EventType classifies audit events.
type EventType string

const (
	EventTypeDecision       EventType = "decision"
	EventTypeFreeze         EventType = "freeze"
	EventTypeRedistribution EventType = "redistribution"
	EventTypeAlert          EventType = "alert"
)

// AuditEvent is emitted for every decision, freeze and redistribution.
// Hash and PrevHash are filled by the chaining emitter and excluded from
// the canonical encoding they are computed over.
type AuditEvent struct {
	ID        string       `json:"id"                      cbor:"1,keyasint"`
	Type      EventType    `json:"type"                    cbor:"2,keyasint"`
	Timestamp time.Time    `json:"timestamp"               cbor:"3,keyasint"`
	TxID      string       `json:"tx_id,omitempty"         cbor:"4,keyasint,omitempty"`
	Decision  DecisionKind `json:"decision,omitempty"      cbor:"5,keyasint,omitempty"`
	Reason    string       `json:"reason,omitempty"        cbor:"6,keyasint,omitempty"`
	Account   string       `json:"account,omitempty"       cbor:"7,keyasint,omitempty"`
	Amount    int64        `json:"frozen_amount,omitempty" cbor:"8,keyasint,omitempty"`
	Target    PoolTarget   `json:"target,omitempty"        cbor:"9,keyasint,omitempty"`
	PrevHash  string       `json:"prev_hash,omitempty"     cbor:"-"`
	Hash      string       `json:"hash,omitempty"          cbor:"-"`
}
