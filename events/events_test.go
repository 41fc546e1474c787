package events

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mezonai/sequencer/block"
	"github.com/mezonai/sequencer/transaction/txtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan SequencerEvent) SequencerEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return nil
	}
}

func TestEventBusSubscribePublishUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	id, ch := bus.Subscribe()
	assert.Equal(t, 1, bus.GetTotalSubscriptions())
	assert.True(t, bus.HasSubscriber(id))

	sig := solana.Signature{1, 2, 3}
	bus.Publish(NewTransactionAddedToPool(sig, "jsonrpc"))

	ev := receive(t, ch)
	assert.Equal(t, EventTransactionAddedToPool, ev.Type())
	assert.Equal(t, sig.String(), ev.Subject())
	assert.False(t, ev.Timestamp().IsZero())

	assert.True(t, bus.Unsubscribe(id))
	assert.False(t, bus.Unsubscribe(id))
	assert.Equal(t, 0, bus.GetTotalSubscriptions())

	_, ok := <-ch
	assert.False(t, ok)
}

func TestPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewEventBus()
	_, ch := bus.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish(NewBlockProduced(uint64(i), solana.Hash{}, 0))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestRouterFansOutBlock(t *testing.T) {
	router := NewEventRouter(NewEventBus())
	_, ch := router.Subscribe()

	txs := txtest.NewTransfers(t, 2)
	b := block.AssembleBlock(0, block.GenesisHash, time.Now().UTC(), txs)
	router.PublishBlockProduced(b)

	first := receive(t, ch)
	require.Equal(t, EventBlockProduced, first.Type())
	assert.Equal(t, 2, first.(*BlockProduced).TxCount)

	for _, tx := range txs {
		ev := receive(t, ch)
		require.Equal(t, EventTransactionIncludedInBlock, ev.Type())
		included := ev.(*TransactionIncludedInBlock)
		assert.Equal(t, tx.Signature, included.Signature)
		assert.Equal(t, uint64(1), included.Slot)
		assert.Equal(t, b.BlockHash, included.BlockHash)
	}
}

func TestNilRouterIsNoop(t *testing.T) {
	var router *EventRouter
	router.PublishBlockProduced(&block.Block{})
	router.PublishBlockReplayed(&block.Block{}, true)
	router.PublishTransactionEvent(NewTransactionDropped(solana.Signature{}, 3, "failed"))
}
