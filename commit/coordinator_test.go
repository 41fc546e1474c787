package commit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mezonai/sequencer/engineclient"
	"github.com/mezonai/sequencer/engineclient/enginetest"
	"github.com/mezonai/sequencer/tick"
	"github.com/mezonai/sequencer/transaction/txtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return ctx.Err()
}

func newCoordinator(t *testing.T, eng *enginetest.Engine, p Policy) (*Coordinator, *sleepRecorder) {
	t.Helper()
	rec := &sleepRecorder{}
	c, err := New(eng, eng, WithPolicy(p), WithSleep(rec.sleep))
	require.NoError(t, err)
	return c, rec
}

func TestSubmitAndConfirmTickSequence(t *testing.T) {
	eng := enginetest.New(enginetest.WithLandAfter(1))
	c, rec := newCoordinator(t, eng, DefaultPolicy())
	tx := txtest.NewTransfer(t, 1)

	sig, err := c.SubmitAndConfirm(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, tx.Signature, sig)

	assert.Equal(t, []string{
		"tick",
		"submit:" + tx.Signature.String(),
		"tick", "tick", "tick",
		"status:" + tx.Signature.String(),
	}, eng.Calls())
	assert.GreaterOrEqual(t, eng.Ticks(), uint64(4))
	assert.Empty(t, rec.calls)
}

func TestSubmissionFailureIsNotRetried(t *testing.T) {
	eng := enginetest.New()
	c, _ := newCoordinator(t, eng, DefaultPolicy())
	tx := txtest.NewTransfer(t, 1)
	eng.RejectSubmit(tx.Signature, "blockhash not found")

	_, err := c.SubmitAndConfirm(context.Background(), tx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSubmissionFailed))
	assert.Equal(t, []string{"tick", "submit:" + tx.Signature.String()}, eng.Calls())
}

func TestConfirmationTimeoutAfterBudget(t *testing.T) {
	eng := enginetest.New()
	p := DefaultPolicy()
	p.MaxRetries = 5
	p.PollInterval = 10 * time.Millisecond
	c, rec := newCoordinator(t, eng, p)
	tx := txtest.NewTransfer(t, 1)
	eng.NeverLand(tx.Signature)

	_, err := c.SubmitAndConfirm(context.Background(), tx)
	assert.ErrorIs(t, err, ErrConfirmationTimeout)

	polls := 0
	for _, call := range eng.Calls() {
		if call == "status:"+tx.Signature.String() {
			polls++
		}
	}
	assert.Equal(t, 5, polls)
	assert.Len(t, rec.calls, 4)
	for _, d := range rec.calls {
		assert.Equal(t, 10*time.Millisecond, d)
	}
	// 1 pre + 3 post + one per gap between polls
	assert.Equal(t, uint64(8), eng.Ticks())
}

func TestPollErrorsConsumeBudget(t *testing.T) {
	tx := txtest.NewTransfer(t, 1)

	eng := enginetest.New()
	eng.FailStatusCalls(2)
	p := DefaultPolicy()
	p.MaxRetries = 3
	c, _ := newCoordinator(t, eng, p)
	_, err := c.SubmitAndConfirm(context.Background(), tx)
	require.NoError(t, err)

	eng = enginetest.New()
	eng.FailStatusCalls(3)
	c, _ = newCoordinator(t, eng, p)
	_, err = c.SubmitAndConfirm(context.Background(), tx)
	require.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.Contains(t, err.Error(), enginetest.ErrStatusUnavailable.Error())
}

func TestExecutionFailureReported(t *testing.T) {
	eng := enginetest.New()
	c, _ := newCoordinator(t, eng, DefaultPolicy())
	tx := txtest.NewTransfer(t, 1)
	eng.FailExecution(tx.Signature, "insufficient funds")

	_, err := c.SubmitAndConfirm(context.Background(), tx)
	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, tx.Signature, failed.Signature)
	assert.True(t, errors.Is(err, ErrTransactionFailed))
}

func TestTickPolicyIsConfigurable(t *testing.T) {
	eng := enginetest.New(enginetest.WithLandAfter(1))
	p := Policy{PreTicks: 0, PostTicks: 1, MaxRetries: 3, TickOnPoll: false}
	c, _ := newCoordinator(t, eng, p)
	tx := txtest.NewTransfer(t, 1)

	_, err := c.SubmitAndConfirm(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"submit:" + tx.Signature.String(),
		"tick",
		"status:" + tx.Signature.String(),
	}, eng.Calls())
}

func TestTickFailuresDoNotAbortCommit(t *testing.T) {
	eng := enginetest.New(enginetest.WithLandAfter(0))
	eng.RefuseTicks(true)
	c, _ := newCoordinator(t, eng, DefaultPolicy())
	tx := txtest.NewTransfer(t, 1)

	_, err := c.SubmitAndConfirm(context.Background(), tx)
	assert.NoError(t, err)
	assert.Zero(t, eng.Ticks())
	assert.Equal(t, []string{
		"tick!",
		"submit:" + tx.Signature.String(),
		"tick!", "tick!", "tick!",
		"status:" + tx.Signature.String(),
	}, eng.Calls())
}

func TestIntermittentTickFailureStillSendsEveryTick(t *testing.T) {
	eng := enginetest.New(enginetest.WithLandAfter(0))
	attempts := 0
	flaky := tick.TickerFunc(func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			return tick.ErrTimeout
		}
		return nil
	})
	c, err := New(eng, flaky, WithPolicy(Policy{PreTicks: 1, PostTicks: 3, MaxRetries: 3}), WithSleep((&sleepRecorder{}).sleep))
	require.NoError(t, err)

	_, err = c.SubmitAndConfirm(context.Background(), txtest.NewTransfer(t, 1))
	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
}

func TestBatchTickRoundsSurviveFailures(t *testing.T) {
	eng := enginetest.New(enginetest.WithLandAfter(0))
	attempts := 0
	flaky := tick.TickerFunc(func(ctx context.Context) error {
		attempts++
		if attempts%2 == 1 {
			return tick.ErrRejected
		}
		return nil
	})
	c, err := New(eng, flaky, WithPolicy(Policy{PreTicks: 2, PostTicks: 3, MaxRetries: 3}), WithSleep((&sleepRecorder{}).sleep))
	require.NoError(t, err)

	outcomes, err := c.SubmitAndConfirmBatch(context.Background(), txtest.NewTransfers(t, 2))
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Committed())
	assert.True(t, outcomes[1].Committed())
	assert.Equal(t, 5, attempts)
}

func TestBatchAmortizesTicksAndReportsPerTransaction(t *testing.T) {
	eng := enginetest.New(enginetest.WithLandAfter(1))
	c, _ := newCoordinator(t, eng, DefaultPolicy())
	txs := txtest.NewTransfers(t, 3)
	eng.RejectSubmit(txs[1].Signature, "bad")

	outcomes, err := c.SubmitAndConfirmBatch(context.Background(), txs)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Committed())
	assert.ErrorIs(t, outcomes[1].Err, ErrSubmissionFailed)
	assert.True(t, outcomes[2].Committed())
	assert.Equal(t, uint64(4), eng.Ticks())
	assert.Equal(t, []string{
		"tick",
		"submit:" + txs[0].Signature.String(),
		"submit:" + txs[1].Signature.String(),
		"submit:" + txs[2].Signature.String(),
		"tick", "tick", "tick",
		"status:" + txs[0].Signature.String(),
		"status:" + txs[2].Signature.String(),
	}, eng.Calls())
}

func TestBatchEmpty(t *testing.T) {
	eng := enginetest.New()
	c, _ := newCoordinator(t, eng, DefaultPolicy())

	outcomes, err := c.SubmitAndConfirmBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	assert.Empty(t, eng.Calls())
}

func TestCancelledContextStopsPolling(t *testing.T) {
	eng := enginetest.New()
	tx := txtest.NewTransfer(t, 1)
	eng.NeverLand(tx.Signature)

	ctx, cancel := context.WithCancel(context.Background())
	c, err := New(eng, eng, WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))
	require.NoError(t, err)

	_, err = c.SubmitAndConfirm(ctx, tx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsMissingCollaboratorsAndBadPolicy(t *testing.T) {
	eng := enginetest.New()
	_, err := New(nil, eng)
	assert.ErrorIs(t, err, engineclient.ErrUnavailable)

	_, err = New(eng, eng, WithPolicy(Policy{MaxRetries: 0}))
	assert.Error(t, err)

	assert.NoError(t, DefaultPolicy().Validate())
	assert.Error(t, Policy{MaxRetries: 1, PreTicks: -1}.Validate())
}
