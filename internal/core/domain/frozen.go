package domain

import "time"

// PoolTarget is where frozen value is redistributed to.
type PoolTarget string

const (
	PoolCommunity PoolTarget = "community_pool"
	PoolSupply    PoolTarget = "supply_pool"
)

// TargetFor picks the redistribution pool for a role.
func TargetFor(role Role) PoolTarget {
	if role == RoleFounder {
		return PoolCommunity
	}
	return PoolSupply
}

// FrozenBalance is an append-only audit record of a freeze. The only
// mutation allowed after creation is setting RedistributedAt.
type FrozenBalance struct {
	ID              string     `json:"id"               db:"id"`
	Account         string     `json:"account"          db:"account"`
	Amount          int64      `json:"amount"           db:"amount"`
	Reason          Reason     `json:"reason"           db:"reason"`
	Target          PoolTarget `json:"target"           db:"target"`
	CreatedAt       time.Time  `json:"created_at"       db:"created_at"`
	RedistributedAt *time.Time `json:"redistributed_at" db:"redistributed_at"`
}

// Redistributed reports whether value has been moved to the target pool.
func (f FrozenBalance) Redistributed() bool { return f.RedistributedAt != nil }
