package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kasku/chat-gateway/internal/audit"
)

// Limiter is satisfied by the Redis sliding window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, time.Time)
}

// KeyFunc picks the bucket a request is counted against. An empty key skips
// the limit.
type KeyFunc func(r *http.Request) string

// ByAccount buckets authenticated requests per account.
func ByAccount(r *http.Request) string {
	if account := GetAccount(r.Context()); account != nil {
		return "account:" + account.ID
	}
	return ""
}

// ByIP buckets requests per client address.
func ByIP(r *http.Request) string {
	return "ip:" + audit.ClientIP(r)
}

type RateLimitMiddleware struct {
	limiter Limiter
	limit   int
	keyFunc KeyFunc
}

func NewRateLimitMiddleware(limiter Limiter, limit int, keyFunc KeyFunc) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, limit: limit, keyFunc: keyFunc}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.keyFunc(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowed, resetAt := m.limiter.Allow(r.Context(), key)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			log.Warn().Str("key", key).Msg("rate limit exceeded")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventRateLimitExceed,
				Details: map[string]any{"bucket": key},
			})

			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{
				"error": "Rate limit exceeded",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
