// Package engineclient is the request side of the external ledger engine:
// transaction submission and signature status lookups.
package engineclient

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/mezonai/sequencer/transaction"
)

var (
	// ErrUnavailable means no request channel to the engine is open.
	ErrUnavailable = errors.New("engine unavailable")
	// ErrSubmitRejected wraps any failure returned by the engine on submit.
	ErrSubmitRejected = errors.New("engine rejected transaction")
)

type Status int

const (
	StatusUnknown Status = iota
	StatusProcessed
	StatusConfirmed
	StatusFinalized
	// StatusFailed is a processed transaction whose execution returned an error.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusProcessed:
		return "processed"
	case StatusConfirmed:
		return "confirmed"
	case StatusFinalized:
		return "finalized"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Landed reports whether the engine executed the transaction successfully at
// processed commitment or better.
func (s Status) Landed() bool {
	return s == StatusProcessed || s == StatusConfirmed || s == StatusFinalized
}

// SignatureStatus is the engine's view of one signature.
type SignatureStatus struct {
	Status Status
	Slot   uint64
	Err    string
}

// Client is the engine request channel.
type Client interface {
	Submit(ctx context.Context, tx *transaction.Transaction) (solana.Signature, error)
	GetStatus(ctx context.Context, sig solana.Signature) (SignatureStatus, error)
}
