// Package transport implements the single outbound JSON-RPC-2.0-over-
// HTTP call every agent uses to reach another agent's /mcp endpoint:
// timeout, bounded exponential-backoff retry, and a per-endpoint
// circuit breaker (spec §4.3).
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrKind classifies transport-level failures (spec §4.3, §9 "typed
// result objects instead of exceptions").
type ErrKind string

const (
	KindTimeout     ErrKind = "TIMEOUT"
	KindTransport   ErrKind = "TRANSPORT"
	KindRPCError    ErrKind = "RPC_ERROR"
	KindCircuitOpen ErrKind = "CIRCUIT_OPEN"
)

// Error is the typed result the client returns on any non-success call.
type Error struct {
	Kind    ErrKind
	Code    int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether the retry policy applies to this error
// kind (spec §4.3 — only TIMEOUT and TRANSPORT are retried).
func (e *Error) IsRetryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindTransport
}

type jsonrpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      string          `json:"id"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
	ID      string          `json:"id"`
}

// Client issues JSON-RPC calls with retry and a circuit breaker shared
// across callers in the same process, keyed by endpoint (spec §5
// "shared-resource policy").
type Client struct {
	httpClient *http.Client
	maxRetries int
	retryBase  time.Duration

	cbThreshold   int
	cbOpenTimeout time.Duration
	cbProbes      int

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

func NewClient(httpTimeout time.Duration, maxRetries int, retryBase time.Duration, cbThreshold int, cbOpenTimeout time.Duration, cbProbes int) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: httpTimeout},
		maxRetries:    maxRetries,
		retryBase:     retryBase,
		cbThreshold:   cbThreshold,
		cbOpenTimeout: cbOpenTimeout,
		cbProbes:      cbProbes,
		breakers:      make(map[string]*CircuitBreaker),
	}
}

func (c *Client) breakerFor(endpoint string) *CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.breakers[endpoint]
	if !ok {
		b = NewCircuitBreaker(c.cbThreshold, c.cbOpenTimeout, c.cbProbes)
		c.breakers[endpoint] = b
	}
	return b
}

// BreakerState reports the named endpoint's breaker state, for
// operational status surfaces.
func (c *Client) BreakerState(endpoint string) string {
	return c.breakerFor(endpoint).State()
}

// Call sends one JSON-RPC request to endpoint, retrying on TIMEOUT/
// TRANSPORT errors with exponential backoff (base * 2^attempt) up to
// maxRetries times after the first attempt, gated by the endpoint's
// circuit breaker.
func (c *Client) Call(ctx context.Context, endpoint, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	breaker := c.breakerFor(endpoint)

	var lastErr *Error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if !breaker.Allow() {
			return nil, &Error{Kind: KindCircuitOpen, Message: "circuit open for " + endpoint}
		}

		result, err := c.doOnce(ctx, endpoint, method, params, timeout)
		if err == nil {
			breaker.RecordSuccess()
			return result, nil
		}

		var te *Error
		if !errors.As(err, &te) {
			te = &Error{Kind: KindTransport, Err: err, Message: err.Error()}
		}
		lastErr = te

		if te.Kind == KindRPCError {
			// RPC-level errors are not transport failures; they do
			// not count against the breaker and are not retried.
			return nil, te
		}
		breaker.RecordFailure()

		if !te.IsRetryable() || attempt == c.maxRetries {
			break
		}
		delay := c.retryBase * time.Duration(1<<uint(attempt))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &Error{Kind: KindTimeout, Err: ctx.Err(), Message: "context done during retry backoff"}
		}
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, endpoint, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err, Message: "failed to marshal params"}
	}

	req := jsonrpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  paramsBytes,
		ID:      uuid.NewString(),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err, Message: "failed to marshal request"}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Err: err, Message: "failed to build request"}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if callCtx.Err() != nil {
			return nil, &Error{Kind: KindTimeout, Err: err, Message: "request timed out"}
		}
		return nil, &Error{Kind: KindTransport, Err: err, Message: "request failed"}
	}
	defer resp.Body.Close()

	var rpcResp jsonrpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, &Error{Kind: KindTransport, Err: err, Message: "failed to decode response"}
	}
	if rpcResp.Error != nil {
		return nil, &Error{Kind: KindRPCError, Code: rpcResp.Error.Code, Message: rpcResp.Error.Message}
	}
	return rpcResp.Result, nil
}
