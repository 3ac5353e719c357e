package http

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

func TestPostJSON_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer server.Close()

	c := NewClient(time.Second, WithHeader("X-API-Key", "secret"), WithRetries(2, time.Millisecond))
	var out struct{ Text string }
	require.NoError(t, c.PostJSON(context.Background(), server.URL, map[string]string{"a": "b"}, &out))
	assert.Equal(t, "ok", out.Text)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPostJSON_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewClient(time.Second, WithRetries(3, time.Millisecond))
	err := c.PostJSON(context.Background(), server.URL, nil, nil)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPostJSON_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := NewClient(0).PostJSON(ctx, server.URL, nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
