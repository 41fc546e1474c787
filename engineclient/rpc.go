package engineclient

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mezonai/sequencer/transaction"
)

const DefaultRequestTimeout = 5 * time.Second

// RPCClient talks to the engine's JSON-RPC endpoint.
type RPCClient struct {
	rpc           *rpc.Client
	timeout       time.Duration
	skipPreflight bool
}

type RPCOption func(*RPCClient)

// WithSkipPreflight disables the engine's simulation before submit.
func WithSkipPreflight(skip bool) RPCOption {
	return func(c *RPCClient) { c.skipPreflight = skip }
}

func NewRPCClient(endpoint string, timeout time.Duration, opts ...RPCOption) *RPCClient {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	c := &RPCClient{rpc: rpc.New(endpoint), timeout: timeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RPCClient) Submit(ctx context.Context, tx *transaction.Transaction) (solana.Signature, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx.Solana(), rpc.TransactionOpts{
		SkipPreflight:       c.skipPreflight,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %v", ErrSubmitRejected, err)
	}
	return sig, nil
}

func (c *RPCClient) GetStatus(ctx context.Context, sig solana.Signature) (SignatureStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.rpc.GetSignatureStatuses(ctx, false, sig)
	if err != nil {
		return SignatureStatus{}, fmt.Errorf("get signature status: %w", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return SignatureStatus{Status: StatusUnknown}, nil
	}
	return toSignatureStatus(out.Value[0]), nil
}

func toSignatureStatus(v *rpc.SignatureStatusesResult) SignatureStatus {
	st := SignatureStatus{Slot: v.Slot}
	if v.Err != nil {
		st.Status = StatusFailed
		st.Err = fmt.Sprint(v.Err)
		return st
	}
	switch v.ConfirmationStatus {
	case rpc.ConfirmationStatusProcessed:
		st.Status = StatusProcessed
	case rpc.ConfirmationStatusConfirmed:
		st.Status = StatusConfirmed
	case rpc.ConfirmationStatusFinalized:
		st.Status = StatusFinalized
	default:
		st.Status = StatusUnknown
	}
	return st
}

// Health returns nil when the engine reports itself healthy.
func (c *RPCClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.rpc.GetHealth(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (c *RPCClient) Close() error {
	return c.rpc.Close()
}
