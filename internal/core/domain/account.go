package domain

import "time"

// AccountState tracks a privileged account under scrutiny.
type AccountState string

const (
	AccountStateClean         AccountState = "clean"
	AccountStateUnderReview   AccountState = "under_review"
	AccountStateFrozen        AccountState = "frozen"
	AccountStateRedistributed AccountState = "redistributed"
)

// CanTransition reports whether the state machine allows moving from s to next.
// There is no path back from Frozen.
func (s AccountState) CanTransition(next AccountState) bool {
	switch s {
	case AccountStateClean:
		return next == AccountStateUnderReview || next == AccountStateFrozen
	case AccountStateUnderReview:
		return next == AccountStateFrozen
	case AccountStateFrozen:
		return next == AccountStateRedistributed
	}
	return false
}

// Role of a privileged account.
type Role string

const (
	RoleFounder Role = "founder"
	RoleTeam    Role = "team"
)

// PrivilegedAccount is a static watchlist seed.
type PrivilegedAccount struct {
	Account string `yaml:"account"`
	Role    Role   `yaml:"role"`
	Balance int64  `yaml:"balance"`
}

// Violation is one confirmed rejection attributed to a privileged account.
type Violation struct {
	TxID       string    `json:"tx_id"       db:"tx_id"`
	Account    string    `json:"account"     db:"account"`
	Reason     Reason    `json:"reason"      db:"reason"`
	DetectedAt time.Time `json:"detected_at" db:"detected_at"`
}

// WatchlistEntry is a privileged account with its ordered violation history.
type WatchlistEntry struct {
	Account    string       `json:"account"`
	Role       Role         `json:"role"`
	State      AccountState `json:"state"`
	Balance    int64        `json:"balance"`
	Violations []Violation  `json:"violations"`
}
