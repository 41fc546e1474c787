package tick

import (
	"context"
	"sync"
	"time"

	"github.com/mezonai/sequencer/monitoring"
)

// ChannelTicker drives an engine running in the same process through a pair
// of channels: one numbered tick out, the same number echoed back as the
// completion signal.
type ChannelTicker struct {
	mu      sync.Mutex
	seq     uint64
	ticks   chan<- uint64
	done    <-chan uint64
	closed  <-chan struct{}
	timeout time.Duration
}

// Endpoint is the engine's half of a channel pair.
type Endpoint struct {
	ticks     chan uint64
	done      chan uint64
	closed    chan struct{}
	closeOnce sync.Once
}

// NewChannelPair wires a ChannelTicker to an Endpoint.
func NewChannelPair(timeout time.Duration) (*ChannelTicker, *Endpoint) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ep := &Endpoint{
		ticks: make(chan uint64),
		// one slot so an acknowledgement that arrives after its tick timed
		// out never blocks the engine
		done:   make(chan uint64, 1),
		closed: make(chan struct{}),
	}
	return &ChannelTicker{
		ticks:   ep.ticks,
		done:    ep.done,
		closed:  ep.closed,
		timeout: timeout,
	}, ep
}

// Ticks delivers the sequence number of each requested tick.
func (e *Endpoint) Ticks() <-chan uint64 { return e.ticks }

// Ack reports that tick seq finished. It returns false once closed.
func (e *Endpoint) Ack(seq uint64) bool {
	select {
	case <-e.closed:
		return false
	default:
	}
	select {
	case e.done <- seq:
		return true
	case <-e.closed:
		return false
	}
}

// Closed is closed by Close.
func (e *Endpoint) Closed() <-chan struct{} { return e.closed }

// Close makes every pending and future Tick fail with ErrChannelClosed.
func (e *Endpoint) Close() {
	e.closeOnce.Do(func() { close(e.closed) })
}

// Serve acknowledges each tick after calling onTick, until ctx ends or the
// endpoint is closed.
func (e *Endpoint) Serve(ctx context.Context, onTick func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.closed:
			return
		case seq := <-e.ticks:
			if onTick != nil {
				onTick()
			}
			if !e.Ack(seq) {
				return
			}
		}
	}
}

// Tick sends one signal and waits for its acknowledgement. Ticks are
// serialized; acknowledgements of earlier ticks that timed out are discarded.
func (c *ChannelTicker) Tick(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	c.seq++
	err := c.exchange(ctx, c.seq, timer.C)
	if err != nil {
		monitoring.IncreaseTickError("channel", reason(err))
		return err
	}
	monitoring.IncreaseTickCount("channel")
	return nil
}

func (c *ChannelTicker) exchange(ctx context.Context, seq uint64, expired <-chan time.Time) error {
	c.drainStale()

	select {
	case c.ticks <- seq:
	case <-c.closed:
		return ErrChannelClosed
	case <-expired:
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		select {
		case got := <-c.done:
			if got == seq {
				return nil
			}
		case <-c.closed:
			return ErrChannelClosed
		case <-expired:
			return ErrTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *ChannelTicker) drainStale() {
	for {
		select {
		case <-c.done:
		default:
			return
		}
	}
}
