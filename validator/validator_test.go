package validator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mezonai/sequencer/block"
	"github.com/mezonai/sequencer/blockengine"
	"github.com/mezonai/sequencer/commit"
	"github.com/mezonai/sequencer/engineclient/enginetest"
	"github.com/mezonai/sequencer/events"
	"github.com/mezonai/sequencer/mempool"
	"github.com/mezonai/sequencer/store"
	"github.com/mezonai/sequencer/transaction/txtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

type fixture struct {
	fake   *enginetest.Engine
	engine *blockengine.Engine
	pool   *mempool.Pool
	store  *store.GenericBlockStore
	router *events.EventRouter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := enginetest.New()
	p := commit.DefaultPolicy()
	p.MaxRetries = 3
	coord, err := commit.New(fake, fake, commit.WithPolicy(p), commit.WithSleep(noSleep))
	require.NoError(t, err)

	s, err := store.CreateBlockStore(&store.StoreConfig{Type: store.MemoryStoreType})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return &fixture{
		fake:   fake,
		engine: blockengine.New(coord),
		pool:   mempool.NewPool(),
		store:  s,
		router: events.NewEventRouter(events.NewEventBus()),
	}
}

func (f *fixture) validator(opts ...Option) *Validator {
	opts = append([]Option{WithBlockStore(f.store), WithEventRouter(f.router)}, opts...)
	return NewValidator(f.pool, f.engine, opts...)
}

func TestProduceOnceEmptyPool(t *testing.T) {
	f := newFixture(t)
	blk, err := f.validator().ProduceOnce(context.Background())
	require.NoError(t, err)
	assert.Nil(t, blk)
	assert.Equal(t, uint64(0), f.engine.State().CurrentSlot)
}

func TestProduceOnceCommitsAndStores(t *testing.T) {
	f := newFixture(t)
	txs := txtest.NewTransfers(t, 3)
	for _, tx := range txs {
		require.NoError(t, f.pool.Push(tx))
	}
	_, ch := f.router.Subscribe()

	blk, err := f.validator().ProduceOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, blk)
	assert.Equal(t, uint64(1), blk.Slot)
	assert.Len(t, blk.Transactions, 3)
	assert.Equal(t, 0, f.pool.Len())

	stored, err := f.store.Block(1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, blk.BlockHash, stored.BlockHash)
	assert.Equal(t, uint64(1), f.store.LatestSlot())

	ev := <-ch
	assert.Equal(t, events.EventBlockProduced, ev.Type())
}

type flakyStore struct {
	*store.GenericBlockStore
	failures int
}

func (s *flakyStore) Put(b *block.Block) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("disk full")
	}
	return s.GenericBlockStore.Put(b)
}

func TestStoreFailurePausesProductionUntilWritten(t *testing.T) {
	f := newFixture(t)
	bs := &flakyStore{GenericBlockStore: f.store, failures: 2}
	v := NewValidator(f.pool, f.engine, WithBlockStore(bs), WithEventRouter(f.router))

	txs := txtest.NewTransfers(t, 2)
	require.NoError(t, f.pool.Push(txs[0]))

	blk, err := v.ProduceOnce(context.Background())
	require.ErrorIs(t, err, ErrBlockNotPersisted)
	require.NotNil(t, blk)
	assert.Equal(t, uint64(1), blk.Slot)
	assert.False(t, f.pool.Contains(txs[0].Signature))
	assert.Equal(t, uint64(0), f.store.LatestSlot())

	// the retry fails again: nothing new is sealed
	require.NoError(t, f.pool.Push(txs[1]))
	blk, err = v.ProduceOnce(context.Background())
	require.ErrorIs(t, err, ErrBlockNotPersisted)
	assert.Nil(t, blk)
	assert.Equal(t, uint64(1), f.engine.State().CurrentSlot)
	assert.True(t, f.pool.Contains(txs[1].Signature))

	blk, err = v.ProduceOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, blk)
	assert.Equal(t, uint64(2), blk.Slot)
	assert.Equal(t, uint64(2), f.store.LatestSlot())

	stored, err := f.store.Block(1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, txs[0].Signature, stored.Transactions[0].Signature)
}

func TestProduceOnceRespectsBatchSize(t *testing.T) {
	f := newFixture(t)
	txs := txtest.NewTransfers(t, 5)
	for _, tx := range txs {
		require.NoError(t, f.pool.Push(tx))
	}
	v := f.validator(WithBatchSize(2))

	blk, err := v.ProduceOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, txs[0].Signature, blk.Transactions[0].Signature)
	assert.Equal(t, txs[1].Signature, blk.Transactions[1].Signature)
	assert.Equal(t, 3, f.pool.Len())
	assert.True(t, f.pool.Contains(txs[2].Signature))
}

func TestFailedTransactionDroppedAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	good := txtest.NewTransfers(t, 2)
	bad := txtest.NewTransfer(t, 99)
	f.fake.FailExecution(bad.Signature, "insufficient funds")

	require.NoError(t, f.pool.Push(bad))
	require.NoError(t, f.pool.Push(good[0]))
	_, ch := f.router.Subscribe()

	v := f.validator(WithMaxTxAttempts(2))
	blk, err := v.ProduceOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, blk.Transactions, 1)
	assert.Equal(t, good[0].Signature, blk.Transactions[0].Signature)
	assert.True(t, f.pool.Contains(bad.Signature))
	assert.Equal(t, 1, v.Attempts(bad.Signature))

	require.NoError(t, f.pool.Push(good[1]))
	blk, err = v.ProduceOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, blk.Transactions, 1)
	assert.Equal(t, good[1].Signature, blk.Transactions[0].Signature)
	assert.False(t, f.pool.Contains(bad.Signature))
	assert.Equal(t, 0, v.Attempts(bad.Signature))
	assert.Equal(t, 0, f.pool.Len())

	var dropped *events.TransactionDropped
	for dropped == nil {
		select {
		case ev := <-ch:
			if d, ok := ev.(*events.TransactionDropped); ok {
				dropped = d
			}
		case <-time.After(time.Second):
			t.Fatal("no drop event")
		}
	}
	assert.Equal(t, bad.Signature, dropped.Signature)
	assert.Equal(t, 2, dropped.Attempts)
	assert.Equal(t, "execution_failed", dropped.Reason)
}

func TestRunProducesUntilStopped(t *testing.T) {
	f := newFixture(t)
	for _, tx := range txtest.NewTransfers(t, 2) {
		require.NoError(t, f.pool.Push(tx))
	}

	v := f.validator(WithBlockInterval(5 * time.Millisecond))
	v.Run()
	v.Run()
	assert.Eventually(t, func() bool { return f.pool.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	v.Stop()
	v.Stop()

	assert.Equal(t, uint64(1), f.store.LatestSlot())
	assert.Equal(t, uint64(1), f.engine.State().CurrentSlot)
}

func TestTickRunsOneRound(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.pool.Push(txtest.NewTransfer(t, 1)))

	v := f.validator()
	require.NoError(t, v.Tick(context.Background()))
	assert.Equal(t, uint64(1), f.engine.State().CurrentSlot)
	require.NoError(t, v.Tick(context.Background()))
	assert.Equal(t, uint64(1), f.engine.State().CurrentSlot)
}
