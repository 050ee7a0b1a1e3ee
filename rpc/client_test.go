package rpc_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/powsim/nodesim/rpc"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  []string        `json:"params"`
}

func newServer(t *testing.T, handler func(req rpcRequest) string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(req)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, endpoint string, opts ...rpc.ClientOptionFunc) *rpc.Client {
	t.Helper()
	client, err := rpc.NewClient(context.Background(), endpoint, zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestClientCall(t *testing.T) {
	t.Parallel()
	var got rpcRequest
	srv := newServer(t, func(req rpcRequest) string {
		got = req
		return `{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":true}`
	})

	client := newClient(t, srv.URL)
	res := client.Call(context.Background(), "zil_requestWork", []string{"0x01", "0x02"})
	require.Equal(t, rpc.StatusOK, res.Status)
	require.NoError(t, res.Err)

	require.Equal(t, "2.0", got.JSONRPC)
	require.Equal(t, "zil_requestWork", got.Method)
	require.Equal(t, []string{"0x01", "0x02"}, got.Params)
	require.NotEmpty(t, got.ID)
}

func TestClientNullResult(t *testing.T) {
	t.Parallel()
	srv := newServer(t, func(req rpcRequest) string {
		return `{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":null}`
	})

	client := newClient(t, srv.URL)
	res := client.Call(context.Background(), "zil_requestWork", []string{"0x01"})
	require.Equal(t, rpc.StatusEmpty, res.Status)
	require.NoError(t, res.Err)
}

func TestClientEmptyResult(t *testing.T) {
	t.Parallel()
	srv := newServer(t, func(req rpcRequest) string {
		return `{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":[false,"",""]}`
	})

	client := newClient(t, srv.URL)
	res := client.Call(context.Background(), "zil_checkWorkStatus", nil)
	require.Equal(t, rpc.StatusOK, res.Status)
	require.Equal(t, rpc.StatusEmpty, res.First().Status)
}

func TestClientRemoteError(t *testing.T) {
	t.Parallel()
	srv := newServer(t, func(req rpcRequest) string {
		return `{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":{"code":-32601,"message":"method not found"}}`
	})

	client := newClient(t, srv.URL)
	res := client.Call(context.Background(), "unknown", nil)
	require.Equal(t, rpc.StatusError, res.Status)
	require.ErrorIs(t, res.Err, rpc.ErrRemote)

	var rpcErr *rpc.Error
	require.ErrorAs(t, res.Err, &rpcErr)
	require.Equal(t, -32601, rpcErr.Code)
}

func TestClientHTTPError(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	client := newClient(t, srv.URL, rpc.WithTransportRetries(2, time.Millisecond, time.Millisecond))
	res := client.Call(context.Background(), "zil_requestWork", nil)
	require.Equal(t, rpc.StatusError, res.Status)
	require.Error(t, res.Err)
	require.Equal(t, int32(3), calls.Load())
}

func TestClientNotFound(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	client := newClient(t, srv.URL)
	res := client.Call(context.Background(), "zil_requestWork", nil)
	require.Equal(t, rpc.StatusError, res.Status)
	require.ErrorIs(t, res.Err, rpc.ErrUnexpectedStatus)
}

func TestClientCancelledContext(t *testing.T) {
	t.Parallel()
	srv := newServer(t, func(req rpcRequest) string {
		return `{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":true}`
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := newClient(t, srv.URL)
	res := client.Call(ctx, "zil_requestWork", nil)
	require.Equal(t, rpc.StatusError, res.Status)
	require.Error(t, res.Err)
}
