package tick

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/mezonai/sequencer/monitoring"
)

const (
	MethodEngineTick     = "engine_tick"
	MethodEngineStepSlot = "engine_step_slot"
)

// RPCTicker calls the engine control server's engine_tick over HTTP JSON-RPC.
type RPCTicker struct {
	url     string
	timeout time.Duration

	mu     sync.Mutex
	client *jrpc2.Client
}

func NewRPCTicker(url string, timeout time.Duration) *RPCTicker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &RPCTicker{url: url, timeout: timeout}
}

func (t *RPCTicker) rpcClient() *jrpc2.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		ch := jhttp.NewChannel(t.url, &jhttp.ChannelOptions{
			Client: &http.Client{Timeout: t.timeout},
		})
		t.client = jrpc2.NewClient(ch, nil)
	}
	return t.client
}

func (t *RPCTicker) reset(c *jrpc2.Client) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == c {
		_ = c.Close()
		t.client = nil
	}
}

func (t *RPCTicker) call(ctx context.Context, method string) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	c := t.rpcClient()
	var result string
	err := c.CallResult(ctx, method, nil, &result)
	if err == nil {
		monitoring.IncreaseTickCount("rpc")
		return nil
	}

	var rpcErr *jrpc2.Error
	switch {
	case errors.As(err, &rpcErr):
		err = fmt.Errorf("%w: %s", ErrRejected, rpcErr.Message)
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("%w: %s", ErrTimeout, method)
	case errors.Is(err, context.Canceled):
	default:
		t.reset(c)
		err = fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}
	monitoring.IncreaseTickError("rpc", reason(err))
	return err
}

func (t *RPCTicker) Tick(ctx context.Context) error {
	return t.call(ctx, MethodEngineTick)
}

// StepSlot asks the engine to run a full slot worth of ticks in one call.
func (t *RPCTicker) StepSlot(ctx context.Context) error {
	return t.call(ctx, MethodEngineStepSlot)
}

func (t *RPCTicker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}
