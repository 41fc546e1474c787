// Package enginetest provides an in-memory ledger engine that lands submitted
// transactions after a number of clock ticks. It implements
// engineclient.Client, tick.Ticker and ipc.Handler.
package enginetest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/mezonai/sequencer/engineclient"
	"github.com/mezonai/sequencer/ipc"
	"github.com/mezonai/sequencer/transaction"
)

var (
	ErrStatusUnavailable = errors.New("enginetest: status lookup failed")
	ErrTickRefused       = errors.New("enginetest: tick refused")
)

type record struct {
	tick   uint64
	failed string
}

// Engine is safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	landAfter    uint64
	ticks        uint64
	ticksPerSlot uint64

	submitted []solana.Signature
	records   map[solana.Signature]*record

	rejectSubmit map[solana.Signature]string
	failExec     map[solana.Signature]string
	neverLand    map[solana.Signature]bool
	statusErrs   int
	refuseTicks  bool

	calls []string
}

type Option func(*Engine)

// WithLandAfter sets how many ticks after submission a transaction becomes
// visible as processed. Default 1.
func WithLandAfter(ticks uint64) Option {
	return func(e *Engine) { e.landAfter = ticks }
}

// WithTicksPerSlot sets the slot length used by Slot.
func WithTicksPerSlot(ticks uint64) Option {
	return func(e *Engine) { e.ticksPerSlot = ticks }
}

func New(opts ...Option) *Engine {
	e := &Engine{
		landAfter:    1,
		ticksPerSlot: 64,
		records:      make(map[solana.Signature]*record),
		rejectSubmit: make(map[solana.Signature]string),
		failExec:     make(map[solana.Signature]string),
		neverLand:    make(map[solana.Signature]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RejectSubmit makes Submit fail for sig.
func (e *Engine) RejectSubmit(sig solana.Signature, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rejectSubmit[sig] = reason
}

// FailExecution makes sig land with an execution error.
func (e *Engine) FailExecution(sig solana.Signature, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failExec[sig] = reason
}

// NeverLand keeps sig unknown forever after submission.
func (e *Engine) NeverLand(sig solana.Signature) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.neverLand[sig] = true
}

// FailStatusCalls makes the next n GetStatus calls return an error.
func (e *Engine) FailStatusCalls(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statusErrs = n
}

// RefuseTicks makes Tick fail until called again with false.
func (e *Engine) RefuseTicks(refuse bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refuseTicks = refuse
}

func (e *Engine) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refuseTicks {
		e.calls = append(e.calls, "tick!")
		return ErrTickRefused
	}
	e.ticks++
	e.calls = append(e.calls, "tick")
	return nil
}

func (e *Engine) Submit(ctx context.Context, tx *transaction.Transaction) (solana.Signature, error) {
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, "submit:"+tx.Signature.String())
	if reason, ok := e.rejectSubmit[tx.Signature]; ok {
		return solana.Signature{}, fmt.Errorf("%w: %s", engineclient.ErrSubmitRejected, reason)
	}
	if _, ok := e.records[tx.Signature]; ok {
		return tx.Signature, nil
	}
	e.records[tx.Signature] = &record{tick: e.ticks, failed: e.failExec[tx.Signature]}
	e.submitted = append(e.submitted, tx.Signature)
	return tx.Signature, nil
}

func (e *Engine) GetStatus(ctx context.Context, sig solana.Signature) (engineclient.SignatureStatus, error) {
	if err := ctx.Err(); err != nil {
		return engineclient.SignatureStatus{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, "status:"+sig.String())
	if e.statusErrs > 0 {
		e.statusErrs--
		return engineclient.SignatureStatus{}, ErrStatusUnavailable
	}
	rec, ok := e.records[sig]
	if !ok || e.neverLand[sig] || e.ticks-rec.tick < e.landAfter {
		return engineclient.SignatureStatus{Status: engineclient.StatusUnknown}, nil
	}
	st := engineclient.SignatureStatus{Status: engineclient.StatusProcessed, Slot: e.slotLocked()}
	if rec.failed != "" {
		st.Status = engineclient.StatusFailed
		st.Err = rec.failed
	}
	return st, nil
}

// HandleMessage lets the engine sit behind an ipc.Server.
func (e *Engine) HandleMessage(ctx context.Context, msg ipc.Message) *ipc.Response {
	switch m := msg.(type) {
	case *ipc.AdvanceTick:
		if err := e.Tick(ctx); err != nil {
			return &ipc.Response{Success: false, Message: err.Error()}
		}
		return &ipc.Response{Success: true, Message: "ok"}
	case *ipc.BatchSubmit:
		for _, tx := range m.Transactions {
			if _, err := e.Submit(ctx, tx); err != nil {
				return &ipc.Response{Success: false, Message: err.Error()}
			}
		}
		return &ipc.Response{Success: true, Message: fmt.Sprintf("submitted %d", len(m.Transactions))}
	default:
		return &ipc.Response{Success: false, Message: fmt.Sprintf("unsupported message %T", msg)}
	}
}

func (e *Engine) slotLocked() uint64 {
	if e.ticksPerSlot == 0 {
		return 0
	}
	return e.ticks / e.ticksPerSlot
}

// Ticks returns the number of acknowledged ticks.
func (e *Engine) Ticks() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks
}

// Submitted returns accepted signatures in submission order.
func (e *Engine) Submitted() []solana.Signature {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]solana.Signature(nil), e.submitted...)
}

// Calls returns the call log: "tick", "submit:<sig>", "status:<sig>".
func (e *Engine) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// ResetCalls clears the call log.
func (e *Engine) ResetCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = nil
}
