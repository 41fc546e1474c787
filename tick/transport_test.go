package tick

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/mezonai/sequencer/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPCTickerAdvancesEngine(t *testing.T) {
	var ticks atomic.Int32
	path := filepath.Join(t.TempDir(), "engine.sock")
	srv := ipc.NewServer(path, ipc.HandlerFunc(func(ctx context.Context, msg ipc.Message) *ipc.Response {
		ticks.Add(1)
		return &ipc.Response{Success: true, Message: "ok"}
	}))
	require.NoError(t, srv.Start())
	defer srv.Close()

	ticker := NewIPCTicker(path, time.Second)
	require.NoError(t, Times(context.Background(), ticker, 2))
	assert.Equal(t, int32(2), ticks.Load())
}

func TestIPCTickerErrors(t *testing.T) {
	missing := NewIPCTicker(filepath.Join(t.TempDir(), "absent.sock"), 100*time.Millisecond)
	assert.ErrorIs(t, missing.Tick(context.Background()), ErrChannelClosed)

	path := filepath.Join(t.TempDir(), "refusing.sock")
	srv := ipc.NewServer(path, ipc.HandlerFunc(func(ctx context.Context, msg ipc.Message) *ipc.Response {
		return &ipc.Response{Success: false, Message: "halted"}
	}))
	require.NoError(t, srv.Start())
	defer srv.Close()

	assert.ErrorIs(t, NewIPCTicker(path, time.Second).Tick(context.Background()), ErrRejected)
}

func newControlServer(t *testing.T, tick func(ctx context.Context) (string, error)) *httptest.Server {
	t.Helper()
	bridge := jhttp.NewBridge(handler.Map{
		MethodEngineTick:     handler.New(tick),
		MethodEngineStepSlot: handler.New(tick),
	}, nil)
	srv := httptest.NewServer(http.HandlerFunc(bridge.ServeHTTP))
	t.Cleanup(func() {
		srv.Close()
		_ = bridge.Close()
	})
	return srv
}

func TestRPCTickerCallsEngineTick(t *testing.T) {
	var ticks atomic.Int32
	srv := newControlServer(t, func(ctx context.Context) (string, error) {
		ticks.Add(1)
		return "ok", nil
	})

	ticker := NewRPCTicker(srv.URL, time.Second)
	defer ticker.Close()

	require.NoError(t, ticker.Tick(context.Background()))
	require.NoError(t, ticker.StepSlot(context.Background()))
	assert.Equal(t, int32(2), ticks.Load())
}

func TestRPCTickerRejected(t *testing.T) {
	srv := newControlServer(t, func(ctx context.Context) (string, error) {
		return "", jrpc2.Errorf(jrpc2.Code(-32003), "clock halted")
	})

	ticker := NewRPCTicker(srv.URL, time.Second)
	defer ticker.Close()

	assert.ErrorIs(t, ticker.Tick(context.Background()), ErrRejected)
}

func TestRPCTickerUnreachable(t *testing.T) {
	srv := newControlServer(t, func(ctx context.Context) (string, error) { return "ok", nil })
	url := srv.URL
	srv.Close()

	ticker := NewRPCTicker(url, 200*time.Millisecond)
	defer ticker.Close()

	err := ticker.Tick(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}
