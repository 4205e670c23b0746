package scoring

import (
	"context"
	"math"

	"github.com/vietddude/purity/internal/core/domain"
)

// StatisticalScorer maps activity features through a logistic curve.
type StatisticalScorer struct {
	bias      float64
	velocity  float64
	fanOut    float64
	fanIn     float64
	recency   float64
	privilege float64
}

// NewStatisticalScorer returns a scorer with fixed coefficients.
func NewStatisticalScorer() *StatisticalScorer {
	return &StatisticalScorer{
		bias:      -4.0,
		velocity:  0.15,
		fanOut:    0.08,
		fanIn:     0.05,
		recency:   1.5,
		privilege: 0.5,
	}
}

func (s *StatisticalScorer) Score(ctx context.Context, fv domain.FeatureVector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	z := s.bias +
		s.velocity*float64(fv.SenderRecentTxs) +
		s.fanOut*float64(fv.SenderFanOut) +
		s.fanIn*float64(fv.RecipientFanIn)
	if fv.SecondsSinceLast >= 0 && fv.SecondsSinceLast < 60 {
		z += s.recency
	}
	if fv.SenderPrivileged {
		z += s.privilege
	}
	if fv.PegValue != 0 && fv.Amount != fv.PegValue {
		z += 10
	}
	return clamp(1 / (1 + math.Exp(-z))), nil
}
