package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/purity/internal/compliance/metrics"
)

// Window is the part of the exposure graph the pruner drives.
type Window interface {
	Evict(now time.Time) int
	Len() int
}

// Pruner drops exposure window edges that have aged out.
type Pruner struct {
	window   Window
	interval time.Duration
	now      func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(window Window, interval time.Duration) *Pruner {
	return &Pruner{
		window:   window,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.interval <= 0 {
		return // Pruning disabled
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune()
		}
	}
}

// Prune evicts once and returns how many edges were dropped.
func (p *Pruner) Prune() int {
	evicted := p.window.Evict(p.now())
	metrics.ExposureWindowEdges.Set(float64(p.window.Len()))
	if evicted > 0 {
		slog.Debug("[Pruner] evicted exposure edges", "count", evicted, "remaining", p.window.Len())
	}
	return evicted
}
