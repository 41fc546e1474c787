package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mezonai/sequencer/transaction"
)

const DefaultTimeout = 5 * time.Second

var ErrUnexpectedMessage = errors.New("unexpected ipc message")

// ResponseError is returned when the peer answered with success=false.
type ResponseError struct {
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("ipc request refused: %s", e.Message)
}

// Client opens one unix socket connection per request.
type Client struct {
	socketPath string
	timeout    time.Duration
	dialer     net.Dialer
}

func NewClient(socketPath string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{socketPath: socketPath, timeout: timeout}
}

func (c *Client) SocketPath() string {
	return c.socketPath
}

// Send writes msg and waits for the peer's Response. Deadlines come from ctx
// or the client timeout, whichever is sooner.
func (c *Client) Send(ctx context.Context, msg Message) (*Response, error) {
	payload, err := Encode(msg)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := WriteFrame(conn, payload); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	frame, err := ReadFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	reply, err := Decode(frame)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	resp, ok := reply.(*Response)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedMessage, reply)
	}
	return resp, nil
}

// Tick sends AdvanceTick and fails unless the peer acknowledged it.
func (c *Client) Tick(ctx context.Context) error {
	resp, err := c.Send(ctx, &AdvanceTick{})
	if err != nil {
		return err
	}
	if !resp.Success {
		return &ResponseError{Message: resp.Message}
	}
	return nil
}

// SubmitBatch sends txs as one BatchSubmit frame.
func (c *Client) SubmitBatch(ctx context.Context, txs []*transaction.Transaction, signers [][]byte) (*Response, error) {
	return c.Send(ctx, &BatchSubmit{Transactions: txs, Signers: signers})
}
