package middleware

import (
	"net/http"

	"github.com/kasku/chat-gateway/internal/audit"
	"github.com/kasku/chat-gateway/internal/util"
)

const OperatorKeyHeader = "X-Operator-Key"

// OperatorMiddleware guards operator-only routes with a bcrypt-hashed key.
// With no hash configured every request is refused.
type OperatorMiddleware struct {
	keyHash string
}

func NewOperatorMiddleware(keyHash string) *OperatorMiddleware {
	return &OperatorMiddleware{keyHash: keyHash}
}

func (m *OperatorMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.keyHash == "" {
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error": "Operator access is not configured",
			})
			return
		}

		key := r.Header.Get(OperatorKeyHeader)
		if key == "" || !util.CheckOperatorKey(key, m.keyHash) {
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]any{"reason": "operator_key"},
			})
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": "Invalid operator key",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
