// Package rpc provides the calling capability nodes use to talk to the
// mining proxy: a JSON-RPC 2.0 client over HTTP.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/powsim/nodesim/logging"
)

//go:generate mockgen -package mocks -destination mocks/caller.go . Caller

// Caller performs remote calls. Implementations must be safe for concurrent use.
type Caller interface {
	Call(ctx context.Context, method string, params []string) Response
}

var (
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrRemote           = errors.New("remote error")
)

// Error is a JSON-RPC error object returned by the proxy.
type Error struct {
	Code    int
	Message string
	Data    any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

type clientOptions struct {
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	timeout      time.Duration
}

type ClientOptionFunc func(*clientOptions)

// WithTransportRetries sets how many times a request is retried on
// connection errors and 5xx responses.
func WithTransportRetries(max int, waitMin, waitMax time.Duration) ClientOptionFunc {
	return func(o *clientOptions) {
		o.retryMax = max
		o.retryWaitMin = waitMin
		o.retryWaitMax = waitMax
	}
}

// WithTimeout sets the timeout of a single HTTP request.
func WithTimeout(timeout time.Duration) ClientOptionFunc {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

// Client is a JSON-RPC 2.0 client over HTTP.
type Client struct {
	rpc    *gethrpc.Client
	logger *zap.Logger
}

// NewClient returns a Client sending requests to endpoint.
func NewClient(ctx context.Context, endpoint string, logger *zap.Logger, opts ...ClientOptionFunc) (*Client, error) {
	options := clientOptions{
		retryMax:     2,
		retryWaitMin: 100 * time.Millisecond,
		retryWaitMax: time.Second,
		timeout:      30 * time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}

	transport := retryablehttp.NewClient()
	transport.RetryMax = options.retryMax
	transport.RetryWaitMin = options.retryWaitMin
	transport.RetryWaitMax = options.retryWaitMax
	transport.HTTPClient.Timeout = options.timeout
	transport.Logger = &leveledLogger{logger.Named("http").Sugar()}

	client, err := gethrpc.DialOptions(ctx, endpoint, gethrpc.WithHTTPClient(transport.StandardClient()))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}
	return &Client{
		rpc:    client,
		logger: logger,
	}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// Call implements Caller.
func (c *Client) Call(ctx context.Context, method string, params []string) Response {
	logger := logging.FromContext(ctx).With(zap.String("method", method), zap.String("request_id", uuid.NewString()))
	logger.Debug("request", zap.Strings("params", trimParams(params)))

	args := make([]any, len(params))
	for i, p := range params {
		args[i] = p
	}
	var raw json.RawMessage
	err := c.rpc.CallContext(ctx, &raw, method, args...)

	var (
		rpcErr  gethrpc.Error
		httpErr gethrpc.HTTPError
	)
	switch {
	case err == nil:
		logger.Debug("response", zap.ByteString("result", raw))
		return NewResult(raw)
	case errors.Is(err, gethrpc.ErrNoResult):
		logger.Debug("response without result")
		return NewResult(nil)
	case errors.As(err, &httpErr):
		logger.Debug("request failed", zap.Int("status", httpErr.StatusCode))
		return NewError(fmt.Errorf("%w: %s, body: %s", ErrUnexpectedStatus, httpErr.Status, string(httpErr.Body)))
	case errors.As(err, &rpcErr):
		remote := &Error{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
		var dataErr gethrpc.DataError
		if errors.As(err, &dataErr) {
			remote.Data = dataErr.ErrorData()
		}
		logger.Debug("remote error", zap.Error(remote))
		return NewError(fmt.Errorf("%w: %w", ErrRemote, remote))
	default:
		logger.Debug("request failed", zap.Error(err))
		return NewError(err)
	}
}

// trimParams shortens long hex params for logging.
func trimParams(params []string) []string {
	const max = 18
	trimmed := make([]string, len(params))
	for i, p := range params {
		if len(p) > max {
			p = p[:max] + "..."
		}
		trimmed[i] = p
	}
	return trimmed
}

// leveledLogger adapts zap to retryablehttp.LeveledLogger.
type leveledLogger struct {
	*zap.SugaredLogger
}

func (l *leveledLogger) Error(msg string, keysAndValues ...any) {
	l.Errorw(msg, keysAndValues...)
}

func (l *leveledLogger) Info(msg string, keysAndValues ...any) {
	l.Debugw(msg, keysAndValues...)
}

func (l *leveledLogger) Debug(msg string, keysAndValues ...any) {
	l.Debugw(msg, keysAndValues...)
}

func (l *leveledLogger) Warn(msg string, keysAndValues ...any) {
	l.Warnw(msg, keysAndValues...)
}
