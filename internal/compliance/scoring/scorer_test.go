package scoring

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/purity/internal/core/config"
	"github.com/vietddude/purity/internal/core/domain"
)

func quiet() domain.FeatureVector {
	return domain.FeatureVector{
		TxID:             "tx-1",
		Amount:           314159,
		PegValue:         314159,
		Origin:           domain.OriginMining,
		SecondsSinceLast: -1,
	}
}

func TestScoreWithTimeout_SlowScorerFailsClosed(t *testing.T) {
	slow := Func(func(ctx context.Context, _ domain.FeatureVector) (float64, error) {
		time.Sleep(200 * time.Millisecond)
		return 0, nil
	})

	start := time.Now()
	_, err := ScoreWithTimeout(context.Background(), slow, quiet(), 20*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestScoreWithTimeout_PropagatesError(t *testing.T) {
	boom := errors.New("model offline")
	failing := Func(func(context.Context, domain.FeatureVector) (float64, error) {
		return 0, boom
	})

	_, err := ScoreWithTimeout(context.Background(), failing, quiet(), time.Second)
	assert.ErrorIs(t, err, boom)
}

func TestScoreWithTimeout_RejectsOutOfRange(t *testing.T) {
	_, err := ScoreWithTimeout(context.Background(), Func(func(context.Context, domain.FeatureVector) (float64, error) {
		return 1.5, nil
	}), quiet(), time.Second)
	assert.Error(t, err)
}

func TestScoreWithTimeout_RejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -0.1} {
		s := Func(func(context.Context, domain.FeatureVector) (float64, error) { return v, nil })

		_, err := ScoreWithTimeout(context.Background(), s, quiet(), time.Second)
		assert.ErrorIs(t, err, ErrInvalidScore, "timeout branch, score %v", v)

		_, err = ScoreWithTimeout(context.Background(), s, quiet(), 0)
		assert.ErrorIs(t, err, ErrInvalidScore, "no-timeout branch, score %v", v)
	}
}

func TestRuleScorer(t *testing.T) {
	s := NewRuleScorer(nil)
	ctx := context.Background()

	score, err := s.Score(ctx, quiet())
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)

	fv := quiet()
	fv.Memo = "Casino night payout"
	score, err = s.Score(ctx, fv)
	require.NoError(t, err)
	assert.InDelta(t, keywordWeight, score, 1e-9)

	fv.SenderRecentTxs = 12
	fv.SecondsSinceLast = 5
	fv.RecipientFlagged = true
	score, err = s.Score(ctx, fv)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score, "score must be clamped")
}

func TestStatisticalScorer_Monotonic(t *testing.T) {
	s := NewStatisticalScorer()
	ctx := context.Background()

	low, err := s.Score(ctx, quiet())
	require.NoError(t, err)

	busy := quiet()
	busy.SenderRecentTxs = 30
	busy.SenderFanOut = 40
	busy.SecondsSinceLast = 1
	high, err := s.Score(ctx, busy)
	require.NoError(t, err)

	assert.Less(t, low, 0.1)
	assert.Greater(t, high, low)
	assert.LessOrEqual(t, high, 1.0)
}

func TestWithNoise_ReproducibleAndBounded(t *testing.T) {
	ctx := context.Background()
	a := WithNoise(Stub(0.5), 0.1, 7)
	b := WithNoise(Stub(0.5), 0.1, 7)

	for i := 0; i < 20; i++ {
		x, err := a.Score(ctx, quiet())
		require.NoError(t, err)
		y, _ := b.Score(ctx, quiet())
		assert.Equal(t, x, y)
		assert.InDelta(t, 0.5, x, 0.1)
	}
}

func TestNew(t *testing.T) {
	for _, strategy := range []string{"rule", "stub", "statistical"} {
		s, err := New(config.ScorerConfig{Strategy: strategy, StubScore: 0.2})
		require.NoError(t, err, strategy)
		assert.NotNil(t, s)
	}

	stub, err := New(config.ScorerConfig{Strategy: "stub", StubScore: 0.2})
	require.NoError(t, err)
	score, _ := stub.Score(context.Background(), quiet())
	assert.Equal(t, 0.2, score)

	_, err = New(config.ScorerConfig{Strategy: "oracle"})
	assert.Error(t, err)
}
