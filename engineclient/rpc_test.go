package engineclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mezonai/sequencer/jsonx"
	"github.com/mezonai/sequencer/transaction/txtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     interface{}   `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// fakeRPC answers each method with a canned JSON result document.
func fakeRPC(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req rpcRequest
		require.NoError(t, jsonx.Unmarshal(body, &req))
		id, err := jsonx.Marshal(req.ID)
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		result, ok := results[req.Method]
		if !ok {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"method not found"}}`, id)
			return
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, id, result)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRPCClientSubmit(t *testing.T) {
	tx := txtest.NewTransfer(t, 5)
	srv := fakeRPC(t, map[string]string{
		"sendTransaction": fmt.Sprintf("%q", tx.Signature.String()),
	})

	client := NewRPCClient(srv.URL, time.Second, WithSkipPreflight(true))
	sig, err := client.Submit(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, tx.Signature, sig)
}

func TestRPCClientSubmitRejected(t *testing.T) {
	srv := fakeRPC(t, map[string]string{})

	client := NewRPCClient(srv.URL, time.Second)
	_, err := client.Submit(context.Background(), txtest.NewTransfer(t, 5))
	assert.ErrorIs(t, err, ErrSubmitRejected)
}

func TestRPCClientStatuses(t *testing.T) {
	cases := []struct {
		name   string
		result string
		want   Status
	}{
		{"unknown", `{"context":{"slot":3},"value":[null]}`, StatusUnknown},
		{"processed", `{"context":{"slot":3},"value":[{"slot":3,"confirmations":0,"err":null,"confirmationStatus":"processed"}]}`, StatusProcessed},
		{"confirmed", `{"context":{"slot":3},"value":[{"slot":3,"confirmations":1,"err":null,"confirmationStatus":"confirmed"}]}`, StatusConfirmed},
		{"finalized", `{"context":{"slot":3},"value":[{"slot":3,"confirmations":null,"err":null,"confirmationStatus":"finalized"}]}`, StatusFinalized},
		{"failed", `{"context":{"slot":3},"value":[{"slot":3,"confirmations":0,"err":{"InstructionError":[0,"InvalidArgument"]},"confirmationStatus":"processed"}]}`, StatusFailed},
	}
	tx := txtest.NewTransfer(t, 1)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := fakeRPC(t, map[string]string{"getSignatureStatuses": tc.result})
			st, err := NewRPCClient(srv.URL, time.Second).GetStatus(context.Background(), tx.Signature)
			require.NoError(t, err)
			assert.Equal(t, tc.want, st.Status)
			if tc.want == StatusFailed {
				assert.NotEmpty(t, st.Err)
			}
		})
	}
}

func TestRPCClientHealth(t *testing.T) {
	srv := fakeRPC(t, map[string]string{"getHealth": `"ok"`})
	assert.NoError(t, NewRPCClient(srv.URL, time.Second).Health(context.Background()))

	down := fakeRPC(t, map[string]string{})
	assert.ErrorIs(t, NewRPCClient(down.URL, time.Second).Health(context.Background()), ErrUnavailable)
}

func TestStatusLanded(t *testing.T) {
	assert.False(t, StatusUnknown.Landed())
	assert.True(t, StatusProcessed.Landed())
	assert.True(t, StatusFinalized.Landed())
	assert.False(t, StatusFailed.Landed())
	assert.Equal(t, "confirmed", StatusConfirmed.String())
}
