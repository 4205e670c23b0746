package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/vietddude/purity/internal/compliance/metrics"
	"github.com/vietddude/purity/internal/core/domain"
)

// ErrClosed is returned by Poll once the consumer is closed.
var ErrClosed = errors.New("feed closed")

// Config holds Kafka consumer settings.
type Config struct {
	Brokers  []string
	Topic    string
	Group    string
	Encoding Encoding
}

// Consumer reads transaction records from a Kafka topic as part of a
// consumer group. Offsets are committed only after a batch is handled.
type Consumer struct {
	client *kgo.Client
	decode Decoder
	logger *slog.Logger
}

// NewConsumer connects to the brokers.
func NewConsumer(cfg Config, opts ...kgo.Opt) (*Consumer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("feed: brokers and topic are required")
	}
	decode, err := NewDecoder(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	base := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumerGroup(cfg.Group),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &Consumer{client: client, decode: decode, logger: slog.Default()}, nil
}

// Poll blocks for the next batch. Records that fail to decode are logged
// and skipped; they are committed with the rest of the batch.
func (c *Consumer) Poll(ctx context.Context) ([]domain.TransactionRecord, error) {
	fetches := c.client.PollFetches(ctx)
	if fetches.IsClientClosed() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fetches.EachError(func(topic string, partition int32, err error) {
		c.logger.Warn("Feed fetch error", "topic", topic, "partition", partition, "error", err)
	})

	var out []domain.TransactionRecord
	fetches.EachRecord(func(r *kgo.Record) {
		tx, err := c.decode(r.Value)
		if err != nil {
			metrics.FeedRecords.WithLabelValues("undecodable").Inc()
			c.logger.Error("Dropping undecodable feed record",
				"topic", r.Topic,
				"partition", r.Partition,
				"offset", r.Offset,
				"error", err,
			)
			return
		}
		metrics.FeedRecords.WithLabelValues("received").Inc()
		out = append(out, tx)
	})
	return out, nil
}

// Commit marks everything returned by Poll so far as handled.
func (c *Consumer) Commit(ctx context.Context) error {
	if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
		return fmt.Errorf("failed to commit offsets: %w", err)
	}
	return nil
}

// Close leaves the group and closes the client.
func (c *Consumer) Close() error {
	c.client.Close()
	return nil
}
