// Package validator applies the fixed-value and fixed-origin rules.
package validator

import "github.com/vietddude/purity/internal/core/domain"

// Outcome is the result of validating a single transaction.
type Outcome struct {
	Passed bool
	Reason domain.Reason
}

// Pass is the outcome of a transaction that satisfies both rules.
var Pass = Outcome{Passed: true}

func fail(reason domain.Reason) Outcome {
	return Outcome{Reason: reason}
}

// Validator holds the peg value and origin allowlist.
type Validator struct {
	pegValue int64
	allowed  map[domain.Origin]struct{}
}

// New creates a validator. Exchange and Unclear are dropped from the
// allowlist so the blacklist cannot be configured away.
func New(pegValue int64, allowed []domain.Origin) *Validator {
	v := &Validator{
		pegValue: pegValue,
		allowed:  make(map[domain.Origin]struct{}, len(allowed)),
	}
	for _, o := range allowed {
		if o.IsDisallowed() {
			continue
		}
		v.allowed[o] = struct{}{}
	}
	return v
}

// Validate applies the rule chain, fail-fast:
//  1. Blacklisted origin (Exchange, Unclear) - regardless of amount
//  2. Peg value
//  3. Origin allowlist
func (v *Validator) Validate(tx domain.TransactionRecord) Outcome {
	if tx.Origin.IsDisallowed() {
		return fail(domain.ReasonDisallowedOrigin)
	}
	if tx.Amount != v.pegValue {
		return fail(domain.ReasonPegMismatch)
	}
	if _, ok := v.allowed[tx.Origin]; !ok {
		return fail(domain.ReasonDisallowedOrigin)
	}
	return Pass
}

// PegValue returns the configured peg.
func (v *Validator) PegValue() int64 {
	return v.pegValue
}
