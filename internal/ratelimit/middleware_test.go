package ratelimit_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manabi-ai/manabi/internal/model"
	"github.com/manabi-ai/manabi/internal/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareNilLimiterPassesThrough(t *testing.T) {
	mw := ratelimit.Middleware(nil, ratelimit.IPKeyFunc, nil)
	srv := mw(okHandler())

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestMiddlewareDeniesOverBurst(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(1, 2)
	defer limiter.Close()

	mw := ratelimit.Middleware(limiter, ratelimit.IPKeyFunc, func(*http.Request) string {
		return "req-test-1"
	})
	srv := mw(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		srv.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)

		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			var apiErr model.APIError
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&apiErr))
			assert.Equal(t, model.ErrCodeRateLimited, apiErr.Error.Code)
			assert.Equal(t, "req-test-1", apiErr.Meta.RequestID)
		}
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestMiddlewareEmptyKeySkipsLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(1, 1)
	defer limiter.Close()

	mw := ratelimit.Middleware(limiter, func(*http.Request) string { return "" }, nil)
	srv := mw(okHandler())

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestMiddlewareKeysAreIndependent(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(1, 1)
	defer limiter.Close()

	mw := ratelimit.Middleware(limiter, ratelimit.IPKeyFunc, nil)
	srv := mw(okHandler())

	do := func(addr string) int {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		srv.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1:1111"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:2222"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2:3333"))
}

func TestIPKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.7:54321"
	assert.Equal(t, "192.168.1.7", ratelimit.IPKeyFunc(req))

	req.RemoteAddr = "192.168.1.7"
	assert.Equal(t, "192.168.1.7", ratelimit.IPKeyFunc(req))
}
