package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCallSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{"ok":true},"id":"1"}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, 2, 10*time.Millisecond, 3, time.Second, 1)
	result, err := c.Call(context.Background(), srv.URL, "ping", map[string]string{}, time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
}

func TestClientRetriesOnTransportFailureThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			// close connection abruptly to force a transport error
			hj, ok := w.(http.Hijacker)
			if ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{"ok":true},"id":"1"}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, 3, 5*time.Millisecond, 5, time.Second, 1)
	result, err := c.Call(context.Background(), srv.URL, "ping", map[string]string{}, time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestClientDoesNotRetryRPCError(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32000,"message":"rejected"},"id":"1"}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, 3, 5*time.Millisecond, 5, time.Second, 1)
	_, err := c.Call(context.Background(), srv.URL, "ping", map[string]string{}, time.Second)
	require.Error(t, err)

	tErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindRPCError, tErr.Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestClientOpensBreakerAfterRepeatedFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, _ := w.(http.Hijacker)
		conn, _, _ := hj.Hijack()
		conn.Close()
	}))
	defer srv.Close()

	c := NewClient(50*time.Millisecond, 0, time.Millisecond, 1, time.Minute, 1)
	_, err := c.Call(context.Background(), srv.URL, "ping", map[string]string{}, 50*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, "OPEN", c.BreakerState(srv.URL))

	_, err = c.Call(context.Background(), srv.URL, "ping", map[string]string{}, 50*time.Millisecond)
	require.Error(t, err)
	tErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindCircuitOpen, tErr.Kind)
}

func TestClientTimesOutOnSlowServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{},"id":"1"}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, 0, time.Millisecond, 5, time.Second, 1)
	_, err := c.Call(context.Background(), srv.URL, "ping", map[string]string{}, 10*time.Millisecond)
	require.Error(t, err)
	tErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, tErr.Kind)
}

func TestClientMarshalsParams(t *testing.T) {
	var gotBody map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":{},"id":"1"}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, 0, time.Millisecond, 5, time.Second, 1)
	_, err := c.Call(context.Background(), srv.URL, "ping", map[string]string{"foo": "bar"}, time.Second)
	require.NoError(t, err)
	require.Contains(t, gotBody, "params")
	assert.JSONEq(t, `{"foo":"bar"}`, string(gotBody["params"]))
}
