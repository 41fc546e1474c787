// Package tick advances the external engine's clock one unit at a time and
// waits for the engine to acknowledge each unit.
package tick

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const DefaultTimeout = 5 * time.Second

var (
	// ErrTimeout means the engine did not acknowledge the tick in time.
	ErrTimeout = errors.New("tick acknowledgement timed out")
	// ErrChannelClosed means the tick channel is gone or was never opened.
	ErrChannelClosed = errors.New("tick channel closed")
	// ErrRejected means the engine answered but refused to advance.
	ErrRejected = errors.New("tick rejected by engine")
)

// Ticker is implemented by every tick transport.
type Ticker interface {
	Tick(ctx context.Context) error
}

type TickerFunc func(ctx context.Context) error

func (f TickerFunc) Tick(ctx context.Context) error { return f(ctx) }

// Times ticks n times, stopping at the first failure.
func Times(ctx context.Context, t Ticker, n int) error {
	for i := 0; i < n; i++ {
		if err := t.Tick(ctx); err != nil {
			return fmt.Errorf("tick %d/%d: %w", i+1, n, err)
		}
	}
	return nil
}

// Each sends all n ticks whatever the outcome of the individual ones, handing
// every failure to onErr. It stops early only when ctx ends and returns the
// number of ticks the engine acknowledged.
func Each(ctx context.Context, t Ticker, n int, onErr func(i int, err error)) int {
	acked := 0
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			return acked
		}
		if err := t.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return acked
			}
			if onErr != nil {
				onErr(i, err)
			}
			continue
		}
		acked++
	}
	return acked
}
