package recovery

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/vietddude/purity/internal/core/config"
)

// FailureCategory classifies ledger write failures.
type FailureCategory int

const (
	CategoryTransient FailureCategory = iota
	CategoryPermanent
)

// Classifier maps an error to a failure category.
type Classifier func(err error) FailureCategory

// ErrPermanent marks a ledger error that retrying cannot fix.
var ErrPermanent = errors.New("permanent ledger failure")

// DefaultClassifier treats ErrPermanent and context cancellation as
// permanent and everything else as transient.
func DefaultClassifier(err error) FailureCategory {
	if errors.Is(err, ErrPermanent) || errors.Is(err, context.Canceled) {
		return CategoryPermanent
	}
	return CategoryTransient
}

// RetryStrategy defines how retries should be handled.
type RetryStrategy interface {
	// GetDelay returns the delay after the given attempt (0-indexed).
	GetDelay(attempt int) time.Duration

	// ShouldRetry checks if another attempt is allowed after attempt
	// attempts have failed with err.
	ShouldRetry(err error, attempt int) bool
}

// ExponentialBackoff implements a standard backoff strategy.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Classifier   Classifier
}

// DefaultBackoff returns 2s, 4s, 8s, 16s, 32s (max 60s) over 5 attempts.
func DefaultBackoff(classifier Classifier) *ExponentialBackoff {
	if classifier == nil {
		classifier = DefaultClassifier
	}
	return &ExponentialBackoff{
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		MaxAttempts:  5,
		Classifier:   classifier,
	}
}

// BackoffFromConfig builds a strategy from redistribution settings.
func BackoffFromConfig(cfg config.RedistributionConfig, classifier Classifier) *ExponentialBackoff {
	b := DefaultBackoff(classifier)
	if cfg.InitialDelay > 0 {
		b.InitialDelay = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		b.MaxDelay = cfg.MaxDelay
	}
	if cfg.MaxAttempts > 0 {
		b.MaxAttempts = cfg.MaxAttempts
	}
	return b
}

// GetDelay calculates delay: InitialDelay * 2^attempt
func (s *ExponentialBackoff) GetDelay(attempt int) time.Duration {
	delay := float64(s.InitialDelay) * math.Pow(2, float64(attempt))
	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry checks if error is transient and max attempts not exceeded.
func (s *ExponentialBackoff) ShouldRetry(err error, attempt int) bool {
	if attempt >= s.MaxAttempts {
		return false
	}
	classify := s.Classifier
	if classify == nil {
		classify = DefaultClassifier
	}
	return classify(err) == CategoryTransient
}
