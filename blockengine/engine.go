// Package blockengine owns the chain tip. It assembles committed transactions
// into hash chained blocks and replays blocks produced earlier.
package blockengine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mezonai/sequencer/block"
	"github.com/mezonai/sequencer/commit"
	"github.com/mezonai/sequencer/logx"
	"github.com/mezonai/sequencer/monitoring"
	"github.com/mezonai/sequencer/transaction"
)

// State is the chain tip.
type State struct {
	CurrentSlot      uint64      `json:"current_slot"`
	CurrentBlockhash solana.Hash `json:"current_blockhash"`
}

func Genesis() State {
	return State{CurrentSlot: block.GenesisSlot, CurrentBlockhash: block.GenesisHash}
}

// Committer submits transactions to the engine and reports per transaction
// results. *commit.Coordinator implements it.
type Committer interface {
	SubmitAndConfirmBatch(ctx context.Context, txs []*transaction.Transaction) ([]commit.Outcome, error)
}

// Engine serializes CreateBlock and ReplayBlock on one lock.
type Engine struct {
	mu        sync.Mutex
	state     State
	committer Committer
	now       func() time.Time
}

type Option func(*Engine)

// WithState starts the engine from a recovered tip instead of genesis.
func WithState(s State) Option {
	return func(e *Engine) { e.state = s }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine at genesis. A nil committer leaves the engine
// unavailable until Attach is called.
func New(committer Committer, opts ...Option) *Engine {
	e := &Engine{
		state:     Genesis(),
		committer: committer,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Attach sets or replaces the engine request channel.
func (e *Engine) Attach(committer Committer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.committer = committer
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CreateBlock commits txs in order and seals the ones that landed into the
// next block. Failed transactions are logged and left out.
func (e *Engine) CreateBlock(ctx context.Context, txs []*transaction.Transaction) (*block.Block, error) {
	b, _, err := e.CreateBlockWithOutcomes(ctx, txs)
	return b, err
}

// CreateBlockWithOutcomes is CreateBlock that also returns the per
// transaction outcomes, in input order.
func (e *Engine) CreateBlockWithOutcomes(ctx context.Context, txs []*transaction.Transaction) (*block.Block, []commit.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.committer == nil {
		return nil, nil, ErrUnavailable
	}
	start := time.Now()

	outcomes, err := e.committer.SubmitAndConfirmBatch(ctx, txs)
	if err != nil {
		return nil, nil, fmt.Errorf("commit batch for slot %d: %w", e.state.CurrentSlot+1, err)
	}

	committed := make([]*transaction.Transaction, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			logx.Warn("ENGINE", fmt.Sprintf("Excluding tx from slot %d | sig=%s | err=%v", e.state.CurrentSlot+1, o.Signature, o.Err))
			continue
		}
		committed = append(committed, o.Tx)
	}

	b := block.AssembleBlock(e.state.CurrentSlot, e.state.CurrentBlockhash, e.now(), committed)
	e.state = State{CurrentSlot: b.Slot, CurrentBlockhash: b.BlockHash}

	monitoring.SetSlotHeight(b.Slot)
	monitoring.RecordTxInBlock(len(committed))
	monitoring.RecordBlockTime(time.Since(start))
	logx.Info("ENGINE", fmt.Sprintf("Created block | slot=%d | txs=%d/%d | hash=%s", b.Slot, len(committed), len(txs), b.BlockHash))
	return b, outcomes, nil
}

// ReplayBlock re-executes b on top of the current tip. Slot and hash checks
// are fatal errors. If any transaction fails it returns false and the tip
// does not move.
func (e *Engine) ReplayBlock(ctx context.Context, b *block.Block) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if b == nil {
		return false, fmt.Errorf("replay: nil block")
	}
	if err := b.CheckTransactions(); err != nil {
		return false, fmt.Errorf("replay: %w", err)
	}
	if expected := e.state.CurrentSlot + 1; b.Slot != expected {
		monitoring.RecordReplay(monitoring.ReplaySequenceMismatch)
		return false, &SequenceViolationError{Expected: expected, Actual: b.Slot}
	}
	if computed := b.ComputedHash(); computed != b.BlockHash {
		monitoring.RecordReplay(monitoring.ReplayHashMismatch)
		return false, &HashMismatchError{Slot: b.Slot, Field: "block_hash", Expected: computed, Actual: b.BlockHash}
	}
	if b.PreviousBlockhash != e.state.CurrentBlockhash {
		monitoring.RecordReplay(monitoring.ReplayHashMismatch)
		return false, &ParentMismatchError{Slot: b.Slot, Expected: e.state.CurrentBlockhash, Actual: b.PreviousBlockhash}
	}
	if e.committer == nil {
		return false, ErrUnavailable
	}

	outcomes, err := e.committer.SubmitAndConfirmBatch(ctx, b.Transactions)
	if err != nil {
		return false, fmt.Errorf("replay slot %d: %w", b.Slot, err)
	}
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			logx.Warn("REPLAY", fmt.Sprintf("Replayed tx failed | slot=%d | sig=%s | err=%v", b.Slot, o.Signature, o.Err))
		}
	}
	if failed > 0 {
		monitoring.RecordReplay(monitoring.ReplayTxFailed)
		logx.Error("REPLAY", fmt.Sprintf("Block %d replay incomplete | failed=%d/%d", b.Slot, failed, len(outcomes)))
		return false, nil
	}

	e.state = State{CurrentSlot: b.Slot, CurrentBlockhash: b.BlockHash}
	monitoring.RecordReplay(monitoring.ReplayApplied)
	monitoring.SetSlotHeight(b.Slot)
	logx.Info("REPLAY", fmt.Sprintf("Replayed block | slot=%d | txs=%d | hash=%s", b.Slot, len(b.Transactions), b.BlockHash))
	return true, nil
}
