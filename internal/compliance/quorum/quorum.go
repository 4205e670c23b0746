// Package quorum reduces independent votes to a single approval under a
// threshold.
package quorum

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/purity/internal/core/domain"
)

// Topic is what voters are asked to approve. Voters only ever see the topic,
// never each other's ballots.
type Topic struct {
	TxID       string
	Accounts   []string
	Score      float64
	Privileged bool
	Features   domain.FeatureVector
}

// Voter casts one ballot on a topic.
type Voter interface {
	ID() string
	Vote(ctx context.Context, topic Topic) (domain.Vote, error)
}

// Result is the aggregated outcome.
type Result struct {
	Approvals   int
	Rejections  int
	Abstentions int
	Fraction    float64
	Threshold   float64
	Approved    bool
}

// Aggregate computes approvals / non-abstaining votes and approves only when
// that fraction is strictly above threshold. All-abstain yields 0.
func Aggregate(votes []domain.Vote, threshold float64) Result {
	r := Result{Threshold: threshold}
	for _, v := range votes {
		switch v {
		case domain.VoteApprove:
			r.Approvals++
		case domain.VoteReject:
			r.Rejections++
		default:
			r.Abstentions++
		}
	}
	if cast := r.Approvals + r.Rejections; cast > 0 {
		r.Fraction = float64(r.Approvals) / float64(cast)
	}
	r.Approved = r.Fraction > threshold
	return r
}

// Decide polls every voter concurrently, each bounded by timeout, and
// aggregates once all have answered. Any voter error or timeout fails the
// whole round; a partial ballot set is never aggregated.
func Decide(
	ctx context.Context,
	topic Topic,
	voters []Voter,
	threshold float64,
	timeout time.Duration,
) (Result, error) {
	votes := make([]domain.Vote, len(voters))
	g, gctx := errgroup.WithContext(ctx)

	for i, v := range voters {
		g.Go(func() error {
			vctx := gctx
			if timeout > 0 {
				var cancel context.CancelFunc
				vctx, cancel = context.WithTimeout(gctx, timeout)
				defer cancel()
			}
			vote, err := castVote(vctx, v, topic)
			if err != nil {
				return fmt.Errorf("voter %s: %w", v.ID(), err)
			}
			votes[i] = vote
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{Threshold: threshold}, err
	}
	return Aggregate(votes, threshold), nil
}

// castVote runs a single voter and stops waiting once ctx expires.
func castVote(ctx context.Context, v Voter, topic Topic) (domain.Vote, error) {
	type ballot struct {
		vote domain.Vote
		err  error
	}
	ch := make(chan ballot, 1)
	go func() {
		vote, err := v.Vote(ctx, topic)
		ch <- ballot{vote, err}
	}()

	select {
	case b := <-ch:
		if b.err != nil {
			return "", b.err
		}
		switch b.vote {
		case domain.VoteApprove, domain.VoteReject, domain.VoteAbstain:
			return b.vote, nil
		}
		return "", fmt.Errorf("invalid vote %q", b.vote)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
