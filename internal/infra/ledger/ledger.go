// Package ledger talks to the external ledger that settles transfers.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/purity/internal/core/domain"
)

//go:generate mockgen -source=ledger.go -destination=mocks/ledger_mock.go -package=mocks Ledger

// ErrRejected is returned when the ledger refuses a request outright.
// Retrying the same request will not help.
var ErrRejected = errors.New("ledger rejected request")

// Ledger is the external collaborator the enforcer reports to.
type Ledger interface {
	// FetchRecent returns transfers touching account since the given time.
	FetchRecent(ctx context.Context, account string, since time.Time) ([]domain.TransactionRecord, error)

	// SubmitDecision reports the enforcement outcome for a transaction.
	SubmitDecision(ctx context.Context, txID string, decision domain.Decision) error

	// Redistribute moves a frozen balance into its target pool.
	Redistribute(ctx context.Context, frozen domain.FrozenBalance) error
}
