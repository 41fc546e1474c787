// Package commit turns the engine's submit and tick primitives into a
// confirmed commit: tick, submit, tick, then poll until processed.
package commit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mezonai/sequencer/engineclient"
	"github.com/mezonai/sequencer/logx"
	"github.com/mezonai/sequencer/monitoring"
	"github.com/mezonai/sequencer/tick"
	"github.com/mezonai/sequencer/transaction"
)

var (
	ErrSubmissionFailed    = errors.New("submission failed")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrTransactionFailed   = errors.New("transaction failed")
)

// FailedError reports a transaction the engine processed with an error.
type FailedError struct {
	Signature solana.Signature
	Reason    string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrTransactionFailed.Error(), e.Signature, e.Reason)
}

func (e *FailedError) Unwrap() error { return ErrTransactionFailed }

// Outcome is the result of one transaction in a batch.
type Outcome struct {
	Tx        *transaction.Transaction
	Signature solana.Signature
	Err       error
}

func (o Outcome) Committed() bool { return o.Err == nil }

// SleepFunc waits d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Coordinator struct {
	client engineclient.Client
	ticker tick.Ticker
	policy Policy
	sleep  SleepFunc
	now    func() time.Time
}

type Option func(*Coordinator)

func WithPolicy(p Policy) Option {
	return func(c *Coordinator) { c.policy = p }
}

func WithSleep(fn SleepFunc) Option {
	return func(c *Coordinator) { c.sleep = fn }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func New(client engineclient.Client, ticker tick.Ticker, opts ...Option) (*Coordinator, error) {
	if client == nil || ticker == nil {
		return nil, engineclient.ErrUnavailable
	}
	c := &Coordinator{
		client: client,
		ticker: ticker,
		policy: DefaultPolicy(),
		sleep:  sleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid commit policy: %w", err)
	}
	return c, nil
}

func (c *Coordinator) Policy() Policy { return c.policy }

// Ticker exposes the clock driver so callers can tick outside a commit.
func (c *Coordinator) Ticker() tick.Ticker { return c.ticker }

// SubmitAndConfirm commits one transaction. A submission error is returned
// immediately without retry; status lookup errors only consume the budget.
func (c *Coordinator) SubmitAndConfirm(ctx context.Context, tx *transaction.Transaction) (solana.Signature, error) {
	c.ticks(ctx, c.policy.PreTicks, "pre-submit")
	if err := ctx.Err(); err != nil {
		return solana.Signature{}, err
	}

	start := c.now()
	sig, err := c.submit(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	c.ticks(ctx, c.policy.PostTicks, "post-submit")
	return sig, c.Confirm(ctx, sig, start)
}

// SubmitAndConfirmBatch submits txs in order with one round of pre and post
// ticks, then confirms each. Failures are reported per transaction; the
// returned error is non-nil only when ctx ends.
func (c *Coordinator) SubmitAndConfirmBatch(ctx context.Context, txs []*transaction.Transaction) ([]Outcome, error) {
	outcomes := make([]Outcome, len(txs))
	if len(txs) == 0 {
		return outcomes, nil
	}

	c.ticks(ctx, c.policy.PreTicks, "pre-submit")
	start := c.now()
	for i, tx := range txs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		outcomes[i] = Outcome{Tx: tx, Signature: tx.Signature}
		sig, err := c.submit(ctx, tx)
		if err != nil {
			outcomes[i].Err = err
			continue
		}
		outcomes[i].Signature = sig
	}
	c.ticks(ctx, c.policy.PostTicks, "post-submit")

	for i := range outcomes {
		if outcomes[i].Err != nil {
			continue
		}
		if err := c.Confirm(ctx, outcomes[i].Signature, start); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			outcomes[i].Err = err
		}
	}
	return outcomes, nil
}

func (c *Coordinator) submit(ctx context.Context, tx *transaction.Transaction) (solana.Signature, error) {
	sig, err := c.client.Submit(ctx, tx)
	if err != nil {
		monitoring.RecordRejectedTx(monitoring.TxSubmitFailed)
		logx.Warn("COMMIT", fmt.Sprintf("Submit failed | sig=%s | err=%v", tx.Signature, err))
		return solana.Signature{}, fmt.Errorf("%w: %s: %v", ErrSubmissionFailed, tx.Signature, err)
	}
	return sig, nil
}

// Confirm polls the status of sig until it reaches processed commitment, the
// engine reports an execution error, or the poll budget is spent.
func (c *Coordinator) Confirm(ctx context.Context, sig solana.Signature, submittedAt time.Time) error {
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxRetries; attempt++ {
		st, err := c.client.GetStatus(ctx, sig)
		switch {
		case err != nil:
			lastErr = err
			logx.Debug("COMMIT", fmt.Sprintf("Status poll %d failed | sig=%s | err=%v", attempt, sig, err))
		case st.Status.Landed():
			monitoring.RecordCommitLatency(c.now().Sub(submittedAt))
			return nil
		case st.Status == engineclient.StatusFailed:
			monitoring.RecordRejectedTx(monitoring.TxExecutionFailed)
			return &FailedError{Signature: sig, Reason: st.Err}
		}

		if attempt == c.policy.MaxRetries {
			break
		}
		if c.policy.TickOnPoll {
			c.ticks(ctx, 1, "poll")
		}
		if err := c.sleep(ctx, c.policy.PollInterval); err != nil {
			return err
		}
	}

	monitoring.RecordRejectedTx(monitoring.TxConfirmTimeout)
	if lastErr != nil {
		return fmt.Errorf("%w: %s after %d polls (last error: %v)", ErrConfirmationTimeout, sig, c.policy.MaxRetries, lastErr)
	}
	return fmt.Errorf("%w: %s after %d polls", ErrConfirmationTimeout, sig, c.policy.MaxRetries)
}

// ticks always attempts all n ticks. A failed tick is logged and the rest
// are still sent; whether the transaction landed is decided by the status poll.
func (c *Coordinator) ticks(ctx context.Context, n int, phase string) {
	tick.Each(ctx, c.ticker, n, func(i int, err error) {
		logx.Warn("COMMIT", fmt.Sprintf("Tick %d/%d failed during %s | err=%v", i+1, n, phase, err))
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
