package tick

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/mezonai/sequencer/ipc"
	"github.com/mezonai/sequencer/monitoring"
)

// IPCTicker sends AdvanceTick frames over the engine's unix socket.
type IPCTicker struct {
	client *ipc.Client
}

func NewIPCTicker(socketPath string, timeout time.Duration) *IPCTicker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &IPCTicker{client: ipc.NewClient(socketPath, timeout)}
}

func (t *IPCTicker) Tick(ctx context.Context) error {
	err := t.client.Tick(ctx)
	if err != nil {
		err = classifyIPC(ctx, err)
		monitoring.IncreaseTickError("ipc", reason(err))
		return err
	}
	monitoring.IncreaseTickCount("ipc")
	return nil
}

func classifyIPC(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var refused *ipc.ResponseError
	if errors.As(err, &refused) {
		return fmt.Errorf("%w: %s", ErrRejected, refused.Message)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) || errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}
	return err
}
