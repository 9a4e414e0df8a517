package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Do(t *testing.T) {
	t.Parallel()

	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := New(Config{})
	defer c.Close()

	var hookStatus atomic.Int32
	c.SetResponseHook(func(_ *http.Request, resp *http.Response, err error, _ time.Duration) {
		if err == nil {
			hookStatus.Store(int32(resp.StatusCode))
		}
	})

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, "ok", string(body))
	assert.Equal(t, DefaultUserAgent, gotUA.Load())
	assert.Equal(t, int32(http.StatusOK), hookStatus.Load())
}

func TestClient_KeepsUserAgent(t *testing.T) {
	t.Parallel()

	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	c := New(Config{UserAgent: "custom/1.0"})
	req, err := http.NewRequest(http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "caller/2.0")

	resp, err := c.Do(t.Context(), req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "caller/2.0", gotUA.Load())
}

func TestClient_DefaultTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{Timeout: 50 * time.Millisecond})
	var hookErr atomic.Bool
	c.SetResponseHook(func(_ *http.Request, _ *http.Response, err error, _ time.Duration) {
		hookErr.Store(err != nil)
	})

	req, err := http.NewRequest(http.MethodGet, srv.URL, http.NoBody)
	require.NoError(t, err)
	_, err = c.Do(t.Context(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, hookErr.Load())
}

func TestClient_Wrap(t *testing.T) {
	t.Parallel()

	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusTeapot,
			Body:       http.NoBody,
			Header:     http.Header{"X-Ua": {r.Header.Get("User-Agent")}},
		}, nil
	})

	c := Wrap(&http.Client{Transport: rt}, "")
	req, err := http.NewRequest(http.MethodGet, "http://example.invalid/", http.NoBody)
	require.NoError(t, err)
	resp, err := c.Do(t.Context(), req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, DefaultUserAgent, resp.Header.Get("X-Ua"))
}

func TestClient_NilRequest(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}).Do(t.Context(), nil)
	assert.Error(t, err)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }
