// Package scoring provides anomaly scorers behind a single interface.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/vietddude/purity/internal/core/config"
	"github.com/vietddude/purity/internal/core/domain"
)

// ErrTimeout is returned when a scorer does not answer within its budget.
var ErrTimeout = errors.New("scorer timed out")

// ErrInvalidScore is returned for a score that is not a number in [0,1].
var ErrInvalidScore = errors.New("score out of range")

// Scorer returns a risk score in [0,1] for a transaction's features.
type Scorer interface {
	Score(ctx context.Context, fv domain.FeatureVector) (float64, error)
}

// Func adapts a plain function to Scorer.
type Func func(ctx context.Context, fv domain.FeatureVector) (float64, error)

func (f Func) Score(ctx context.Context, fv domain.FeatureVector) (float64, error) {
	return f(ctx, fv)
}

// ScoreWithTimeout calls s and gives up after timeout. Scorers that ignore
// their context are abandoned; the result channel is buffered so the
// goroutine never blocks.
func ScoreWithTimeout(
	ctx context.Context,
	s Scorer,
	fv domain.FeatureVector,
	timeout time.Duration,
) (float64, error) {
	if timeout <= 0 {
		return checked(s.Score(ctx, fv))
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		score float64
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		score, err := s.Score(ctx, fv)
		ch <- result{score, err}
	}()

	select {
	case r := <-ch:
		return checked(r.score, r.err)
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}

// checked rejects scores outside [0,1], NaN and infinities included.
func checked(score float64, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScore, score)
	}
	return score, nil
}

// New builds the scorer selected by cfg.
func New(cfg config.ScorerConfig) (Scorer, error) {
	var s Scorer
	switch cfg.Strategy {
	case "", "rule":
		s = NewRuleScorer(cfg.Keywords)
	case "stub":
		s = Stub(cfg.StubScore)
	case "statistical":
		s = NewStatisticalScorer()
	default:
		return nil, fmt.Errorf("unknown scorer strategy %q", cfg.Strategy)
	}
	if cfg.Noise > 0 {
		s = WithNoise(s, cfg.Noise, cfg.Seed)
	}
	return s, nil
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
