package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kasku/chat-gateway/internal/model"
)

type countingLimiter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
	reset  time.Time
}

func newCountingLimiter(limit int) *countingLimiter {
	return &countingLimiter{
		limit:  limit,
		counts: make(map[string]int),
		reset:  time.Now().Add(time.Minute),
	}
}

func (l *countingLimiter) Allow(ctx context.Context, key string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[key] >= l.limit {
		return false, l.reset
	}
	l.counts[key]++
	return true, l.reset
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	withAccount := func(req *http.Request, id string) *http.Request {
		ctx := context.WithValue(req.Context(), AccountContextKey, &model.Account{ID: id})
		return req.WithContext(ctx)
	}

	t.Run("sets headers and allows under limit", func(t *testing.T) {
		limiter := newCountingLimiter(2)
		handler := NewRateLimitMiddleware(limiter, 2, ByAccount).Handler(ok)

		req := withAccount(httptest.NewRequest("GET", "/status", nil), "acc-1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.FormatInt(limiter.reset.Unix(), 10), rec.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		limiter := newCountingLimiter(1)
		handler := NewRateLimitMiddleware(limiter, 1, ByAccount).Handler(ok)

		first := httptest.NewRecorder()
		handler.ServeHTTP(first, withAccount(httptest.NewRequest("GET", "/status", nil), "acc-1"))
		second := httptest.NewRecorder()
		handler.ServeHTTP(second, withAccount(httptest.NewRequest("GET", "/status", nil), "acc-1"))

		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.NotEmpty(t, second.Header().Get("Retry-After"))
	})

	t.Run("tracks accounts separately", func(t *testing.T) {
		limiter := newCountingLimiter(1)
		handler := NewRateLimitMiddleware(limiter, 1, ByAccount).Handler(ok)

		handler.ServeHTTP(httptest.NewRecorder(), withAccount(httptest.NewRequest("GET", "/", nil), "acc-a"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, withAccount(httptest.NewRequest("GET", "/", nil), "acc-b"))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, limiter.counts["account:acc-a"])
		assert.Equal(t, 1, limiter.counts["account:acc-b"])
	})

	t.Run("skips when key is empty", func(t *testing.T) {
		limiter := newCountingLimiter(0)
		handler := NewRateLimitMiddleware(limiter, 0, ByAccount).Handler(ok)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, limiter.counts)
	})

	t.Run("buckets by client ip", func(t *testing.T) {
		limiter := newCountingLimiter(5)
		handler := NewRateLimitMiddleware(limiter, 5, ByIP).Handler(ok)

		req := httptest.NewRequest("POST", "/activate", nil)
		req.Header.Set("X-Real-IP", "10.0.0.7")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, 1, limiter.counts["ip:10.0.0.7"])
	})
}
