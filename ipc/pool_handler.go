package ipc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mezonai/sequencer/events"
	"github.com/mezonai/sequencer/logx"
	"github.com/mezonai/sequencer/mempool"
	"github.com/mezonai/sequencer/monitoring"
)

// PoolHandler is the sequencer side of the socket: batches are staged in the
// pool, AdvanceTick runs one production round through onTick.
type PoolHandler struct {
	pool   *mempool.Pool
	onTick func(ctx context.Context) error
	router *events.EventRouter
}

func NewPoolHandler(pool *mempool.Pool, onTick func(ctx context.Context) error) *PoolHandler {
	return &PoolHandler{pool: pool, onTick: onTick}
}

// SetEventRouter publishes TransactionAddedToPool for every staged transaction.
func (h *PoolHandler) SetEventRouter(r *events.EventRouter) {
	h.router = r
}

func (h *PoolHandler) HandleMessage(ctx context.Context, msg Message) *Response {
	switch m := msg.(type) {
	case *BatchSubmit:
		return h.stage(m)
	case *AdvanceTick:
		if h.onTick == nil {
			return &Response{Success: false, Message: "tick not supported"}
		}
		if err := h.onTick(ctx); err != nil {
			return &Response{Success: false, Message: err.Error()}
		}
		return &Response{Success: true, Message: "ok"}
	default:
		return &Response{Success: false, Message: fmt.Sprintf("unsupported message %T", msg)}
	}
}

// stage only takes transactions that are already signed. The pool commits
// them byte for byte, so signer blobs for re-signing are refused.
func (h *PoolHandler) stage(batch *BatchSubmit) *Response {
	if len(batch.Signers) > 0 {
		monitoring.RecordRejectedTx(monitoring.TxMalformed)
		return &Response{Success: false, Message: "signers not supported: submit signed transactions"}
	}

	var accepted int
	var duplicates []string
	for _, tx := range batch.Transactions {
		monitoring.IncreaseIngressTxCount("ipc")
		err := h.pool.Push(tx)
		switch {
		case err == nil:
			accepted++
			h.router.PublishTransactionEvent(events.NewTransactionAddedToPool(tx.Signature, "ipc"))
		case errors.Is(err, mempool.ErrDuplicate):
			monitoring.RecordRejectedTx(monitoring.TxDuplicated)
			duplicates = append(duplicates, tx.Signature.String())
		default:
			monitoring.RecordRejectedTx(monitoring.TxRejectedUnknown)
			return &Response{Success: false, Message: err.Error()}
		}
	}
	logx.Info("IPC", fmt.Sprintf("Staged batch | accepted=%d | duplicates=%d", accepted, len(duplicates)))

	message := fmt.Sprintf("accepted %d of %d transactions", accepted, len(batch.Transactions))
	if len(duplicates) > 0 {
		message += "; duplicates: " + strings.Join(duplicates, ",")
	}
	return &Response{Success: true, Message: message}
}
