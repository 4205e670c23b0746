package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/purity/internal/core/domain"
)

var ts = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

func decisionEvent(id string) domain.AuditEvent {
	return domain.AuditEvent{
		ID:        id,
		Type:      domain.EventTypeDecision,
		Timestamp: ts,
		TxID:      "tx-" + id,
		Decision:  domain.DecisionReject,
		Reason:    string(domain.ReasonPegMismatch),
	}
}

func TestChainEmitter_LinksAndVerifies(t *testing.T) {
	sink := NewMemoryEmitter()
	chain, err := NewChainEmitter(sink, "")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, chain.Emit(ctx, decisionEvent("1")))
	require.NoError(t, chain.EmitBatch(ctx, []domain.AuditEvent{decisionEvent("2"), decisionEvent("3")}))

	events := sink.Events()
	require.Len(t, events, 3)
	assert.Empty(t, events[0].PrevHash)
	assert.Equal(t, events[0].Hash, events[1].PrevHash)
	assert.Equal(t, events[2].Hash, chain.Head())

	idx, err := VerifyChain(events, "")
	require.NoError(t, err)
	assert.Equal(t, -1, idx)

	events[1].Reason = string(domain.ReasonNone)
	idx, err = VerifyChain(events, "")
	require.NoError(t, err)
	assert.Equal(t, 1, idx, "tampering must be detected at the edited event")
}

type failingEmitter struct{ MemoryEmitter }

func (f *failingEmitter) Emit(context.Context, domain.AuditEvent) error {
	return errors.New("sink down")
}

func TestChainEmitter_HeadOnlyAdvancesOnSuccess(t *testing.T) {
	chain, err := NewChainEmitter(&failingEmitter{}, "genesis")
	require.NoError(t, err)

	assert.Error(t, chain.Emit(context.Background(), decisionEvent("1")))
	assert.Equal(t, "genesis", chain.Head())
}

func TestKafkaEmitter_Envelope(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var env Envelope
		if err := json.Unmarshal(val, &env); err != nil {
			return err
		}
		if env.Type != domain.EventTypeFreeze {
			return errors.New("unexpected envelope type " + string(env.Type))
		}
		var ev domain.AuditEvent
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return err
		}
		if ev.Account != "founder_wallet_1" || ev.Amount != 1000 {
			return errors.New("unexpected payload")
		}
		return nil
	})

	k := NewKafkaEmitterWithProducer(producer, "purity.audit")
	err := k.Emit(context.Background(), domain.AuditEvent{
		ID:        "f1",
		Type:      domain.EventTypeFreeze,
		Timestamp: ts,
		Account:   "founder_wallet_1",
		Amount:    1000,
		Target:    domain.PoolCommunity,
	})
	require.NoError(t, err)
	require.NoError(t, k.Close())
}

func TestKafkaEmitter_SendFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	k := NewKafkaEmitterWithProducer(producer, "purity.audit")
	err := k.Emit(context.Background(), decisionEvent("1"))
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, k.Close())
}

func TestMemoryEmitter_ByType(t *testing.T) {
	m := NewMemoryEmitter()
	ctx := context.Background()
	_ = m.Emit(ctx, decisionEvent("1"))
	_ = m.Emit(ctx, domain.AuditEvent{ID: "2", Type: domain.EventTypeFreeze})

	assert.Len(t, m.ByType(domain.EventTypeDecision), 1)
	assert.Len(t, m.ByType(domain.EventTypeFreeze), 1)
	assert.Empty(t, m.ByType(domain.EventTypeAlert))
}
