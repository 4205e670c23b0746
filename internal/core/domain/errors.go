package domain

import "errors"

var (
	// ErrMalformedTransaction marks a record rejected at ingress (missing or invalid fields).
	ErrMalformedTransaction = errors.New("malformed transaction")

	// ErrNotFound is returned when a frozen balance or entry does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyRedistributed is returned when marking a record that is already redistributed.
	ErrAlreadyRedistributed = errors.New("already redistributed")

	// ErrAccountNotPrivileged is returned by watchlist operations on unknown accounts.
	ErrAccountNotPrivileged = errors.New("account not privileged")
)
