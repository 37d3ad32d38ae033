package audit

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type EventType string

const (
	EventCodeGenerate        EventType = "code_generate"
	EventActivationSuccess   EventType = "activation_success"
	EventActivationReject    EventType = "activation_reject"
	EventActivationThrottle  EventType = "activation_throttle"
	EventIntegrationRevoke   EventType = "integration_revoke"
	EventConnectionInit      EventType = "connection_init"
	EventConnectionReconnect EventType = "connection_reconnect"
	EventConnectionDrop      EventType = "connection_disconnect"
	EventAuthFailure         EventType = "auth_failure"
	EventSignatureFailure    EventType = "signature_failure"
	EventRateLimitExceed     EventType = "rate_limit_exceeded"
	EventTestSend            EventType = "test_send"
)

type Event struct {
	Type             EventType
	AccountID        string
	ExternalIdentity string
	IP               string
	UserAgent        string
	Details          map[string]any
}

func Log(ctx context.Context, event Event) {
	logger := log.With().
		Str("audit", "gateway").
		Str("event_type", string(event.Type)).
		Time("timestamp", time.Now()).
		Logger()

	if event.AccountID != "" {
		logger = logger.With().Str("account_id", event.AccountID).Logger()
	}
	if event.ExternalIdentity != "" {
		logger = logger.With().Str("external_identity", event.ExternalIdentity).Logger()
	}
	if event.IP != "" {
		logger = logger.With().Str("ip", event.IP).Logger()
	}
	if event.UserAgent != "" {
		logger = logger.With().Str("user_agent", event.UserAgent).Logger()
	}

	logEvent := logger.Info()
	for k, v := range event.Details {
		logEvent = addField(logEvent, k, v)
	}
	logEvent.Msg("audit event")
}

func addField(e *zerolog.Event, key string, value any) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return e.Str(key, v)
	case int:
		return e.Int(key, v)
	case int64:
		return e.Int64(key, v)
	case bool:
		return e.Bool(key, v)
	default:
		return e.Interface(key, v)
	}
}

func LogFromRequest(r *http.Request, event Event) {
	event.IP = ClientIP(r)
	event.UserAgent = r.UserAgent()
	Log(r.Context(), event)
}

// ClientIP prefers proxy headers over the socket address.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
