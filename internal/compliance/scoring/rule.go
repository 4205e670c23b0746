package scoring

import (
	"context"
	"strings"

	"github.com/vietddude/purity/internal/core/domain"
)

// DefaultKeywords are memo terms tied to rejected activity.
var DefaultKeywords = []string{
	"defi",
	"pow_blockchain",
	"altcoin",
	"erc20",
	"gambling",
	"casino",
	"lottery",
	"betting",
}

// Rule weights.
const (
	keywordWeight   = 0.8
	burstWeight     = 0.3
	fanOutWeight    = 0.2
	flaggedWeight   = 0.4
	burstTxs        = 10
	burstWindowSecs = 60
	fanOutLimit     = 25
)

// RuleScorer adds fixed weights for each rule that fires.
type RuleScorer struct {
	keywords []string
}

// NewRuleScorer creates a rule scorer. Empty keywords select DefaultKeywords.
func NewRuleScorer(keywords []string) *RuleScorer {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	lower := make([]string, len(keywords))
	for i, k := range keywords {
		lower[i] = strings.ToLower(k)
	}
	return &RuleScorer{keywords: lower}
}

func (r *RuleScorer) Score(ctx context.Context, fv domain.FeatureVector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	score := 0.0
	memo := strings.ToLower(fv.Memo)
	for _, k := range r.keywords {
		if strings.Contains(memo, k) {
			score += keywordWeight
			break
		}
	}
	if fv.SenderRecentTxs >= burstTxs && fv.SecondsSinceLast >= 0 && fv.SecondsSinceLast < burstWindowSecs {
		score += burstWeight
	}
	if fv.SenderFanOut > fanOutLimit {
		score += fanOutWeight
	}
	if fv.RecipientFlagged {
		score += flaggedWeight
	}
	return clamp(score), nil
}

// Stub always returns the same score.
type Stub float64

func (s Stub) Score(ctx context.Context, _ domain.FeatureVector) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return clamp(float64(s)), nil
}
