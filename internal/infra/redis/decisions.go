package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/purity/internal/infra/storage"
)

const defaultDecisionTTL = 24 * time.Hour

func decisionKey(txID string) string {
	return fmt.Sprintf("purity:decision:%s", txID)
}

// CachedDecisions is a read-through cache in front of a decision repository.
// The repository stays the source of truth; cache failures only cost a
// round trip.
type CachedDecisions struct {
	inner  storage.DecisionRepository
	client *Client
	ttl    time.Duration
}

// NewCachedDecisions wraps inner with a Redis cache.
func NewCachedDecisions(inner storage.DecisionRepository, client *Client, ttl time.Duration) *CachedDecisions {
	if ttl <= 0 {
		ttl = defaultDecisionTTL
	}
	return &CachedDecisions{inner: inner, client: client, ttl: ttl}
}

// Save writes through to the repository, then refreshes the cache.
func (c *CachedDecisions) Save(ctx context.Context, rec storage.DecisionRecord) error {
	if err := c.inner.Save(ctx, rec); err != nil {
		return err
	}
	c.put(ctx, rec)
	return nil
}

// Get serves from cache when possible.
func (c *CachedDecisions) Get(ctx context.Context, txID string) (*storage.DecisionRecord, error) {
	raw, err := c.client.rdb.Get(ctx, decisionKey(txID)).Bytes()
	switch {
	case err == nil:
		var rec storage.DecisionRecord
		if jerr := json.Unmarshal(raw, &rec); jerr == nil {
			return &rec, nil
		}
	case !errors.Is(err, redis.Nil):
		slog.Warn("Decision cache read failed", "tx_id", txID, "error", err)
	}

	rec, err := c.inner.Get(ctx, txID)
	if err != nil {
		return nil, err
	}
	c.put(ctx, *rec)
	return rec, nil
}

// List bypasses the cache.
func (c *CachedDecisions) List(ctx context.Context, limit int) ([]storage.DecisionRecord, error) {
	return c.inner.List(ctx, limit)
}

func (c *CachedDecisions) put(ctx context.Context, rec storage.DecisionRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.client.rdb.Set(ctx, decisionKey(rec.Decision.TxID), data, c.ttl).Err(); err != nil {
		slog.Warn("Decision cache write failed", "tx_id", rec.Decision.TxID, "error", err)
	}
}
