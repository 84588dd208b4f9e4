package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzurek/divtrack/pkg/logger"
)

type countingRecorder struct {
	calls int32
}

func (r *countingRecorder) Record(ctx context.Context, provider string) error {
	atomic.AddInt32(&r.calls, 1)
	return nil
}

func newTestClient(t *testing.T) (*Client, *[]time.Duration) {
	t.Helper()
	c := New(logger.NewNop(), RetryConfig{MaxAttempts: 3, DelayBase: 2})

	slept := &[]time.Duration{}
	c.sleep = func(d time.Duration) { *slept = append(*slept, d) }
	return c, slept
}

func TestGet_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, slept := newTestClient(t)

	resp, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, *slept)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, slept := newTestClient(t)

	resp, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
	// base^1 then base^2
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestGet_RateLimitDoublesDelay(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, slept := newTestClient(t)

	resp, err := c.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, *slept, 1)
	assert.Equal(t, 4*time.Second, (*slept)[0])
}

func TestGet_ClientErrorFailsImmediately(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c, slept := newTestClient(t)

	_, err := c.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Empty(t, *slept)
}

func TestGet_ExhaustsAttempts(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, _ := newTestClient(t)

	_, err := c.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestForProvider_RecordsEveryAttempt(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, _ := newTestClient(t)
	rec := &countingRecorder{}
	pc := c.ForProvider("fmp", rec)

	resp, err := pc.Get(context.Background(), server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	// both the failed and the successful attempt count against quota
	assert.Equal(t, int32(2), atomic.LoadInt32(&rec.calls))
}

func TestForProvider_DoesNotAffectBase(t *testing.T) {
	c, _ := newTestClient(t)
	rec := &countingRecorder{}

	pc := c.ForProvider("eodhd", rec)
	assert.Equal(t, "eodhd", pc.provider)
	assert.Empty(t, c.provider)
	assert.Nil(t, c.recorder)
}

func TestGetWithHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, _ := newTestClient(t)

	resp, err := c.GetWithHeaders(context.Background(), server.URL, map[string]string{"Accept": "application/json"})
	require.NoError(t, err)
	defer resp.Body.Close()
}

func TestIsRetryableStatus(t *testing.T) {
	assert.True(t, IsRetryableStatus(http.StatusInternalServerError))
	assert.True(t, IsRetryableStatus(http.StatusTooManyRequests))
	assert.False(t, IsRetryableStatus(http.StatusNotFound))
	assert.False(t, IsRetryableStatus(http.StatusOK))
}
