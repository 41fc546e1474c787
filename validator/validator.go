package validator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mezonai/sequencer/block"
	"github.com/mezonai/sequencer/commit"
	"github.com/mezonai/sequencer/events"
	"github.com/mezonai/sequencer/exception"
	"github.com/mezonai/sequencer/logx"
	"github.com/mezonai/sequencer/mempool"
	"github.com/mezonai/sequencer/monitoring"
	"github.com/mezonai/sequencer/store"
	"github.com/mezonai/sequencer/transaction"
)

const (
	DefaultBatchSize     = 64
	DefaultBlockInterval = 400 * time.Millisecond
	DefaultMaxTxAttempts = 3
)

// ErrBlockNotPersisted means a sealed block could not be written to the block
// store. Production stays paused until the write succeeds.
var ErrBlockNotPersisted = errors.New("block not persisted")

// BlockProducer seals committed transactions into the next block.
// *blockengine.Engine implements it.
type BlockProducer interface {
	CreateBlockWithOutcomes(ctx context.Context, txs []*transaction.Transaction) (*block.Block, []commit.Outcome, error)
}

// Validator drives block production: it drains the pool head into the
// block engine on a fixed interval and keeps the pool consistent with the
// outcome of every round.
type Validator struct {
	Pool *mempool.Pool

	producer   BlockProducer
	blockStore store.BlockStore
	router     *events.EventRouter

	batchSize     int
	blockInterval time.Duration
	maxTxAttempts int

	mu       sync.Mutex
	attempts map[solana.Signature]int
	unsaved  *block.Block

	runMu  sync.Mutex
	cancel context.CancelFunc
	doneCh chan struct{}
}

type Option func(*Validator)

func WithBatchSize(n int) Option {
	return func(v *Validator) { v.batchSize = n }
}

func WithBlockInterval(d time.Duration) Option {
	return func(v *Validator) { v.blockInterval = d }
}

func WithMaxTxAttempts(n int) Option {
	return func(v *Validator) { v.maxTxAttempts = n }
}

// WithBlockStore persists every produced block.
func WithBlockStore(s store.BlockStore) Option {
	return func(v *Validator) { v.blockStore = s }
}

func WithEventRouter(r *events.EventRouter) Option {
	return func(v *Validator) { v.router = r }
}

func NewValidator(pool *mempool.Pool, producer BlockProducer, opts ...Option) *Validator {
	v := &Validator{
		Pool:          pool,
		producer:      producer,
		batchSize:     DefaultBatchSize,
		blockInterval: DefaultBlockInterval,
		maxTxAttempts: DefaultMaxTxAttempts,
		attempts:      make(map[solana.Signature]int),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ProduceOnce runs one production round. It returns a nil block when the
// pool is empty. A block that was sealed but not stored is returned together
// with ErrBlockNotPersisted, and no further block is produced until a later
// round manages to store it.
func (v *Validator) ProduceOnce(ctx context.Context) (*block.Block, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.flushUnsaved(); err != nil {
		return nil, err
	}

	entries := v.Pool.GetFront(v.batchSize)
	if len(entries) == 0 {
		return nil, nil
	}

	txs := make([]*transaction.Transaction, len(entries))
	for i, e := range entries {
		txs[i] = e.Tx
	}

	blk, outcomes, err := v.producer.CreateBlockWithOutcomes(ctx, txs)
	if err != nil {
		return nil, err
	}

	// the block is stored before its transactions leave the pool
	var storeErr error
	if v.blockStore != nil {
		if err := v.blockStore.Put(blk); err != nil {
			v.unsaved = blk
			storeErr = fmt.Errorf("%w: slot %d: %v", ErrBlockNotPersisted, blk.Slot, err)
			logx.Error("VALIDATOR", fmt.Sprintf("Failed to store block %d, pausing production: %v", blk.Slot, err))
		}
	}

	committed := make([]solana.Signature, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Committed() {
			committed = append(committed, o.Tx.Signature)
			delete(v.attempts, o.Tx.Signature)
			continue
		}
		v.recordFailure(o)
	}
	v.Pool.RemoveBatch(committed)
	v.router.PublishBlockProduced(blk)

	logx.Info("VALIDATOR", fmt.Sprintf("Produced block | slot=%d | committed=%d/%d | pool=%d", blk.Slot, len(committed), len(entries), v.Pool.Len()))
	return blk, storeErr
}

// flushUnsaved retries the store write of the last sealed block. The engine
// has already moved past that slot, so new blocks would leave a gap.
func (v *Validator) flushUnsaved() error {
	if v.unsaved == nil {
		return nil
	}
	if err := v.blockStore.Put(v.unsaved); err != nil {
		return fmt.Errorf("%w: slot %d: %v", ErrBlockNotPersisted, v.unsaved.Slot, err)
	}
	logx.Info("VALIDATOR", fmt.Sprintf("Stored pending block | slot=%d", v.unsaved.Slot))
	v.unsaved = nil
	return nil
}

func (v *Validator) recordFailure(o commit.Outcome) {
	sig := o.Tx.Signature
	v.attempts[sig]++
	n := v.attempts[sig]
	if n < v.maxTxAttempts {
		logx.Debug("VALIDATOR", fmt.Sprintf("Tx attempt failed | sig=%s | attempt=%d/%d | err=%v", sig, n, v.maxTxAttempts, o.Err))
		return
	}

	delete(v.attempts, sig)
	v.Pool.Remove(sig)
	monitoring.RecordRejectedTx(monitoring.TxAttemptsExpired)
	v.router.PublishTransactionEvent(events.NewTransactionDropped(sig, n, string(dropReason(o.Err))))
	logx.Warn("VALIDATOR", fmt.Sprintf("Dropping tx after %d attempts | sig=%s | err=%v", n, sig, o.Err))
}

// dropReason names the failure of the last attempt.
func dropReason(err error) monitoring.TxRejectedReason {
	switch {
	case errors.Is(err, commit.ErrTransactionFailed):
		return monitoring.TxExecutionFailed
	case errors.Is(err, commit.ErrConfirmationTimeout):
		return monitoring.TxConfirmTimeout
	case errors.Is(err, commit.ErrSubmissionFailed):
		return monitoring.TxSubmitFailed
	default:
		return monitoring.TxRejectedUnknown
	}
}

// Attempts reports how many rounds sig has failed so far.
func (v *Validator) Attempts(sig solana.Signature) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.attempts[sig]
}

// Tick runs one production round and discards the block. It matches the
// callback shape of ipc.NewPoolHandler.
func (v *Validator) Tick(ctx context.Context) error {
	_, err := v.ProduceOnce(ctx)
	return err
}

// Run starts the production loop. It is a no-op when already running.
func (v *Validator) Run() {
	v.runMu.Lock()
	defer v.runMu.Unlock()
	if v.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	v.doneCh = make(chan struct{})
	done := v.doneCh

	exception.SafeGoWithPanic("blockProductionLoop", func() {
		defer close(done)
		v.productionLoop(ctx)
	})
}

// Stop cancels the loop and waits for the current round to finish.
func (v *Validator) Stop() {
	v.runMu.Lock()
	cancel, done := v.cancel, v.doneCh
	v.cancel, v.doneCh = nil, nil
	v.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	logx.Info("VALIDATOR", "Block production stopped")
}

func (v *Validator) productionLoop(ctx context.Context) {
	batchTicker := time.NewTicker(v.blockInterval)
	defer batchTicker.Stop()

	logx.Info("VALIDATOR", fmt.Sprintf("Block production started | interval=%s | batch=%d", v.blockInterval, v.batchSize))
	for {
		select {
		case <-ctx.Done():
			return
		case <-batchTicker.C:
			if _, err := v.ProduceOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				logx.Error("VALIDATOR", fmt.Sprintf("Production round failed: %v", err))
			}
		}
	}
}
