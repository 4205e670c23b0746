package domain

import (
	"fmt"
	"time"
)

// TransactionRecord is a single asset transfer as seen by the enforcer.
// Records are treated as immutable values once they enter the pipeline.
type TransactionRecord struct {
	ID        string    `json:"id"             cbor:"id"`
	Amount    int64     `json:"amount"         cbor:"amount"`
	Origin    Origin    `json:"origin"         cbor:"origin"`
	Timestamp time.Time `json:"timestamp"      cbor:"timestamp"`
	Sender    string    `json:"sender"         cbor:"sender"`
	Recipient string    `json:"recipient"      cbor:"recipient"`
	Memo      string    `json:"memo,omitempty" cbor:"memo,omitempty"`
}

// Validate checks that all required fields are present. It is the ingress
// gate: a record that fails here never reaches the enforcement pipeline.
func (t TransactionRecord) Validate() error {
	switch {
	case t.ID == "":
		return fmt.Errorf("%w: missing id", ErrMalformedTransaction)
	case t.Sender == "":
		return fmt.Errorf("%w: tx %s missing sender", ErrMalformedTransaction, t.ID)
	case t.Recipient == "":
		return fmt.Errorf("%w: tx %s missing recipient", ErrMalformedTransaction, t.ID)
	case t.Origin == "":
		return fmt.Errorf("%w: tx %s missing origin", ErrMalformedTransaction, t.ID)
	case t.Timestamp.IsZero():
		return fmt.Errorf("%w: tx %s missing timestamp", ErrMalformedTransaction, t.ID)
	case t.Amount < 0:
		return fmt.Errorf("%w: tx %s negative amount %d", ErrMalformedTransaction, t.ID, t.Amount)
	}
	return nil
}

// Participants returns sender and recipient.
func (t TransactionRecord) Participants() []string {
	return []string{t.Sender, t.Recipient}
}
