package emitter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vietddude/purity/internal/core/domain"
)

// Envelope wraps every audit record published to Kafka.
type Envelope struct {
	Type domain.EventType `json:"type"`
	TS   int64            `json:"ts"`
	Data json.RawMessage  `json:"data"`
}

// KafkaEmitter publishes audit events with a synchronous producer so a
// returned nil means the broker acknowledged the write.
type KafkaEmitter struct {
	topic string
	p     sarama.SyncProducer
}

// NewKafkaEmitter dials brokers. cfg may be nil.
func NewKafkaEmitter(brokers []string, topic string, cfg *sarama.Config) (*KafkaEmitter, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll

	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaEmitterWithProducer(p, topic), nil
}

// NewKafkaEmitterWithProducer wraps an existing producer.
func NewKafkaEmitterWithProducer(p sarama.SyncProducer, topic string) *KafkaEmitter {
	return &KafkaEmitter{topic: topic, p: p}
}

func (k *KafkaEmitter) Emit(ctx context.Context, ev domain.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := k.message(ev)
	if err != nil {
		return err
	}
	if _, _, err := k.p.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka emit failed: %w", err)
	}
	return nil
}

func (k *KafkaEmitter) EmitBatch(ctx context.Context, events []domain.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msgs := make([]*sarama.ProducerMessage, 0, len(events))
	for _, ev := range events {
		msg, err := k.message(ev)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := k.p.SendMessages(msgs); err != nil {
		return fmt.Errorf("kafka batch emit failed: %w", err)
	}
	return nil
}

func (k *KafkaEmitter) message(ev domain.AuditEvent) (*sarama.ProducerMessage, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit event: %w", err)
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	b, err := json.Marshal(Envelope{Type: ev.Type, TS: ts.UnixMilli(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}

	// Keep one account's (or one transaction's) events on one partition.
	key := ev.Account
	if key == "" {
		key = ev.TxID
	}
	return &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(b),
	}, nil
}

func (k *KafkaEmitter) Close() error {
	if k.p != nil {
		return k.p.Close()
	}
	return nil
}
