package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kasku/chat-gateway/internal/config"
	"github.com/kasku/chat-gateway/internal/gateway"
	"github.com/kasku/chat-gateway/internal/middleware"
	"github.com/kasku/chat-gateway/internal/sse"
)

type StatusSource interface {
	Status(key gateway.IdentityKey) (gateway.Connection, bool)
}

// Subscriber is the part of sse.Broker the stream needs.
type Subscriber interface {
	Subscribe(key string) *sse.Client
	Unsubscribe(client *sse.Client)
}

type EventsHandler struct {
	broker Subscriber
	status StatusSource
	mode   config.GatewayMode
}

func NewEventsHandler(broker Subscriber, status StatusSource, mode config.GatewayMode) *EventsHandler {
	return &EventsHandler{
		broker: broker,
		status: status,
		mode:   mode,
	}
}

// GET /events
// Streams connection transitions for the caller's identity key.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	key := gateway.KeyFor(h.mode, account.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(key.String())
	defer h.broker.Unsubscribe(client)

	log.Info().
		Str("identityKey", key.String()).
		Str("accountId", account.ID).
		Msg("sse connection established")

	snapshot, found := h.status.Status(key)
	if !found {
		snapshot = gateway.Connection{Key: key, State: gateway.StateDisconnected}
	}
	if err := h.sendEvent(w, flusher, sse.EventConnection, snapshot); err != nil {
		log.Debug().Err(err).Str("identityKey", key.String()).Msg("failed to send snapshot")
		return
	}

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("identityKey", key.String()).
				Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().
				Str("identityKey", key.String()).
				Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("identityKey", key.String()).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
