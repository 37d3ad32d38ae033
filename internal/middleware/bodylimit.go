package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/kasku/chat-gateway/internal/errors"
	"github.com/kasku/chat-gateway/internal/httputil"
)

const DefaultMaxBodySize int64 = 1 << 20

// BodyLimitMiddleware rejects requests whose declared length exceeds the
// limit and caps reads for bodies sent without one.
type BodyLimitMiddleware struct {
	maxSize int64
}

func NewBodyLimitMiddleware(maxSize int64) *BodyLimitMiddleware {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	return &BodyLimitMiddleware{maxSize: maxSize}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > m.maxSize {
			log.Warn().
				Str("path", r.URL.Path).
				Int64("contentLength", r.ContentLength).
				Int64("limit", m.maxSize).
				Msg("request body too large")
			httputil.WriteError(w, apperrors.PayloadTooLarge(m.maxSize))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.maxSize)
		next.ServeHTTP(w, r)
	})
}
