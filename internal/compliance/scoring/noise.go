package scoring

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/vietddude/purity/internal/core/domain"
)

// noisy perturbs an inner scorer's output by up to ±amplitude using a
// seeded generator.
type noisy struct {
	inner     Scorer
	amplitude float64

	mu  sync.Mutex
	rng *rand.Rand
}

// WithNoise wraps s with a pseudo-random augmentation source. A fixed seed
// makes the sequence reproducible.
func WithNoise(s Scorer, amplitude float64, seed uint64) Scorer {
	return &noisy{
		inner:     s,
		amplitude: amplitude,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (n *noisy) Score(ctx context.Context, fv domain.FeatureVector) (float64, error) {
	score, err := n.inner.Score(ctx, fv)
	if err != nil {
		return 0, err
	}
	n.mu.Lock()
	delta := (n.rng.Float64()*2 - 1) * n.amplitude
	n.mu.Unlock()
	return clamp(score + delta), nil
}
