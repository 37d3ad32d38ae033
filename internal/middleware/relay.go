package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/kasku/chat-gateway/internal/audit"
	"github.com/kasku/chat-gateway/internal/util"
)

const RelaySignatureHeader = "X-Relay-Signature"

// RelaySignatureMiddleware verifies the HMAC-SHA256 of the raw body sent by
// trusted relays. The body is restored for the next handler.
type RelaySignatureMiddleware struct {
	secret string
}

func NewRelaySignatureMiddleware(secret string) *RelaySignatureMiddleware {
	return &RelaySignatureMiddleware{secret: secret}
}

func (m *RelaySignatureMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.secret == "" {
			log.Warn().Msg("relay signature verification bypassed: RELAY_SECRET is not configured")
			next.ServeHTTP(w, r)
			return
		}

		signature := r.Header.Get(RelaySignatureHeader)
		if signature == "" {
			m.reject(w, r, "missing_signature", "Missing signature")
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error().Err(err).Msg("relay signature middleware: failed to read body")
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Failed to read request body",
			})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		computed := util.HmacSHA256(m.secret, string(body))
		if !util.ConstantTimeEqual(computed, signature) {
			m.reject(w, r, "invalid_signature", "Invalid signature")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *RelaySignatureMiddleware) reject(w http.ResponseWriter, r *http.Request, reason, message string) {
	audit.LogFromRequest(r, audit.Event{
		Type:    audit.EventSignatureFailure,
		Details: map[string]any{"reason": reason},
	})
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error": message,
	})
}
