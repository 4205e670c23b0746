package quorum

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/vietddude/purity/internal/core/config"
	"github.com/vietddude/purity/internal/core/domain"
)

// ScoreVoter approves when the anomaly score does not exceed its ceiling.
type ScoreVoter struct {
	id       string
	maxScore float64
}

func NewScoreVoter(id string, maxScore float64) *ScoreVoter {
	return &ScoreVoter{id: id, maxScore: maxScore}
}

func (v *ScoreVoter) ID() string { return v.id }

func (v *ScoreVoter) Vote(ctx context.Context, topic Topic) (domain.Vote, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if topic.Score > v.maxScore {
		return domain.VoteReject, nil
	}
	return domain.VoteApprove, nil
}

// ViolationHistory exposes recorded violations per account.
type ViolationHistory interface {
	ViolationCount(account string) int
}

// HistoryVoter rejects when any participant already has violations and
// abstains when it knows none of the participants.
type HistoryVoter struct {
	id      string
	history ViolationHistory
}

func NewHistoryVoter(id string, history ViolationHistory) *HistoryVoter {
	return &HistoryVoter{id: id, history: history}
}

func (v *HistoryVoter) ID() string { return v.id }

func (v *HistoryVoter) Vote(ctx context.Context, topic Topic) (domain.Vote, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if v.history == nil {
		return domain.VoteAbstain, nil
	}
	for _, acc := range topic.Accounts {
		if v.history.ViolationCount(acc) > 0 {
			return domain.VoteReject, nil
		}
	}
	return domain.VoteApprove, nil
}

// RandomVoter approves with a fixed probability from a seeded source.
type RandomVoter struct {
	id     string
	chance float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomVoter(id string, chance float64, seed uint64) *RandomVoter {
	return &RandomVoter{
		id:     id,
		chance: chance,
		rng:    rand.New(rand.NewPCG(seed, uint64(len(id)))),
	}
}

func (v *RandomVoter) ID() string { return v.id }

func (v *RandomVoter) Vote(ctx context.Context, _ Topic) (domain.Vote, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v.mu.Lock()
	roll := v.rng.Float64()
	v.mu.Unlock()
	if roll < v.chance {
		return domain.VoteApprove, nil
	}
	return domain.VoteReject, nil
}

// NewVoters builds the configured voter panel.
func NewVoters(cfgs []config.VoterConfig, history ViolationHistory) ([]Voter, error) {
	voters := make([]Voter, 0, len(cfgs))
	for _, c := range cfgs {
		switch c.Kind {
		case "score":
			voters = append(voters, NewScoreVoter(c.ID, c.MaxScore))
		case "history":
			voters = append(voters, NewHistoryVoter(c.ID, history))
		case "random":
			voters = append(voters, NewRandomVoter(c.ID, c.ApproveChance, c.Seed))
		default:
			return nil, fmt.Errorf("unknown voter kind %q for %s", c.Kind, c.ID)
		}
	}
	return voters, nil
}
