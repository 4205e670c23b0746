package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParseOrigin(t *testing.T) {
	cases := map[string]Origin{
		"Mining":               OriginMining,
		" rewards ":            OriginReward,
		"contribution_rewards": OriginReward,
		"P2P":                  OriginP2P,
		"bought_exchange":      OriginExchange,
		"dex-exchange-hot":     OriginExchange,
		"unclear_party":        OriginUnclear,
		"airdrop":              OriginOther,
	}
	for raw, want := range cases {
		if got := ParseOrigin(raw); got != want {
			t.Errorf("ParseOrigin(%q): expected %s, got %s", raw, want, got)
		}
	}
}

func TestTransactionRecord_Validate(t *testing.T) {
	ok := TransactionRecord{
		ID: "tx1", Amount: 314159, Origin: OriginMining,
		Timestamp: time.Now(), Sender: "a", Recipient: "b",
	}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid record, got %v", err)
	}

	missing := ok
	missing.Sender = ""
	if err := missing.Validate(); !errors.Is(err, ErrMalformedTransaction) {
		t.Errorf("expected ErrMalformedTransaction, got %v", err)
	}

	noTime := ok
	noTime.Timestamp = time.Time{}
	if err := noTime.Validate(); !errors.Is(err, ErrMalformedTransaction) {
		t.Errorf("expected ErrMalformedTransaction for zero timestamp, got %v", err)
	}
}

func TestAccountState_NoPathBackFromFrozen(t *testing.T) {
	if !AccountStateClean.CanTransition(AccountStateFrozen) {
		t.Error("clean -> frozen should be allowed")
	}
	if AccountStateFrozen.CanTransition(AccountStateClean) {
		t.Error("frozen -> clean must not be allowed")
	}
	if AccountStateFrozen.CanTransition(AccountStateUnderReview) {
		t.Error("frozen -> under_review must not be allowed")
	}
	if !AccountStateFrozen.CanTransition(AccountStateRedistributed) {
		t.Error("frozen -> redistributed should be allowed")
	}
	if AccountStateRedistributed.CanTransition(AccountStateFrozen) {
		t.Error("redistributed is terminal")
	}
}

func TestTargetFor(t *testing.T) {
	if TargetFor(RoleFounder) != PoolCommunity {
		t.Error("founders redistribute to the community pool")
	}
	if TargetFor(RoleTeam) != PoolSupply {
		t.Error("team accounts redistribute to the supply pool")
	}
}
