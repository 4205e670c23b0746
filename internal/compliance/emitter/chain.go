package emitter

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/vietddude/purity/internal/core/domain"
)

// ChainEmitter links events into a tamper-evident chain before handing them
// to the inner emitter. Each event's Hash is BLAKE3(prev hash || canonical
// CBOR of the event).
type ChainEmitter struct {
	inner Emitter
	enc   cbor.EncMode

	mu   sync.Mutex
	head string
}

// NewChainEmitter starts a chain at genesis (empty previous hash), or at head
// when resuming.
func NewChainEmitter(inner Emitter, head string) (*ChainEmitter, error) {
	enc, err := canonicalEncoder()
	if err != nil {
		return nil, err
	}
	return &ChainEmitter{inner: inner, enc: enc, head: head}, nil
}

func canonicalEncoder() (cbor.EncMode, error) {
	opts := cbor.CanonicalEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	enc, err := opts.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to build cbor encoder: %w", err)
	}
	return enc, nil
}

// Emit links and forwards ev. The lock spans the forward so the inner sink
// observes events in chain order; the head only advances on success.
func (c *ChainEmitter) Emit(ctx context.Context, ev domain.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	linked, err := c.link(ev, c.head)
	if err != nil {
		return err
	}
	if err := c.inner.Emit(ctx, linked); err != nil {
		return err
	}
	c.head = linked.Hash
	return nil
}

func (c *ChainEmitter) EmitBatch(ctx context.Context, events []domain.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	head := c.head
	linked := make([]domain.AuditEvent, len(events))
	for i, ev := range events {
		l, err := c.link(ev, head)
		if err != nil {
			return err
		}
		linked[i] = l
		head = l.Hash
	}
	if err := c.inner.EmitBatch(ctx, linked); err != nil {
		return err
	}
	c.head = head
	return nil
}

// Head returns the hash of the last emitted event.
func (c *ChainEmitter) Head() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head
}

func (c *ChainEmitter) Close() error {
	return c.inner.Close()
}

func (c *ChainEmitter) link(ev domain.AuditEvent, prev string) (domain.AuditEvent, error) {
	h, err := digest(c.enc, ev, prev)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	ev.PrevHash = prev
	ev.Hash = h
	return ev, nil
}

func digest(enc cbor.EncMode, ev domain.AuditEvent, prev string) (string, error) {
	body, err := enc.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to encode audit event %s: %w", ev.ID, err)
	}
	h := blake3.New()
	h.Write([]byte(prev))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChain recomputes every link starting from genesis and returns the
// index of the first broken event, or -1 if the chain is intact.
func VerifyChain(events []domain.AuditEvent, genesis string) (int, error) {
	enc, err := canonicalEncoder()
	if err != nil {
		return 0, err
	}
	prev := genesis
	for i, ev := range events {
		if ev.PrevHash != prev {
			return i, nil
		}
		h, err := digest(enc, ev, prev)
		if err != nil {
			return i, err
		}
		if h != ev.Hash {
			return i, nil
		}
		prev = ev.Hash
	}
	return -1, nil
}
