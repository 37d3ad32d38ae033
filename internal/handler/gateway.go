package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/kasku/chat-gateway/internal/audit"
	"github.com/kasku/chat-gateway/internal/config"
	apperrors "github.com/kasku/chat-gateway/internal/errors"
	"github.com/kasku/chat-gateway/internal/gateway"
	"github.com/kasku/chat-gateway/internal/httputil"
	"github.com/kasku/chat-gateway/internal/middleware"
	"github.com/kasku/chat-gateway/internal/model"
	"github.com/kasku/chat-gateway/internal/service"
	"github.com/kasku/chat-gateway/internal/util"
)

// ConnectionController is the part of gateway.Controller the HTTP surface drives.
type ConnectionController interface {
	Status(key gateway.IdentityKey) (gateway.Connection, bool)
	Connect(ctx context.Context, key gateway.IdentityKey) (gateway.Connection, error)
	Reconnect(ctx context.Context, key gateway.IdentityKey) (gateway.Connection, error)
	Disconnect(ctx context.Context, key gateway.IdentityKey, logout bool) error
}

type Notifier interface {
	Send(ctx context.Context, out service.Outbound) error
}

type GatewayHandler struct {
	controller ConnectionController
	notifier   Notifier
	mode       config.GatewayMode
}

func NewGatewayHandler(controller ConnectionController, notifier Notifier, mode config.GatewayMode) *GatewayHandler {
	return &GatewayHandler{
		controller: controller,
		notifier:   notifier,
		mode:       mode,
	}
}

// Register mounts the authenticated connection routes on r. Status is
// registered by the caller because shared mode exposes it publicly.
func (h *GatewayHandler) Register(r chi.Router, operator func(http.Handler) http.Handler) {
	r.Post("/connect", h.Connect)
	r.Post("/disconnect", h.Disconnect)
	r.Post("/reconnect", h.Reconnect)
	r.With(operator).Post("/send-test", h.SendTest)
}

// keyFor resolves the registry key for the caller. In per-account mode an
// unauthenticated caller has no key.
func (h *GatewayHandler) keyFor(r *http.Request) (gateway.IdentityKey, bool) {
	if h.mode == config.GatewayModeShared {
		return gateway.KeyFor(h.mode, ""), true
	}
	account := middleware.GetAccount(r.Context())
	if account == nil {
		return "", false
	}
	return gateway.KeyFor(h.mode, account.ID), true
}

// GET /status
func (h *GatewayHandler) Status(w http.ResponseWriter, r *http.Request) {
	key, ok := h.keyFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	conn, found := h.controller.Status(key)
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{
			"connected": false,
			"status":    gateway.StateDisconnected,
		})
		return
	}

	writeJSON(w, http.StatusOK, formatConnection(conn))
}

// POST /connect
func (h *GatewayHandler) Connect(w http.ResponseWriter, r *http.Request) {
	key, ok := h.keyFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventConnectionInit,
		AccountID: accountID(r),
		Details:   map[string]any{"identity_key": key.String()},
	})

	conn, err := h.controller.Connect(r.Context(), key)
	if err != nil && !errors.Is(err, gateway.ErrTimeout) {
		log.Error().Err(err).Str("identityKey", key.String()).Msg("failed to connect")
		httputil.WriteError(w, apperrors.Internal("Failed to start connection").WithCause(err))
		return
	}

	status := http.StatusOK
	if errors.Is(err, gateway.ErrTimeout) {
		status = http.StatusAccepted
	}

	resp := formatConnection(conn)
	resp["message"] = connectMessage(conn, err)
	writeJSON(w, status, resp)
}

// POST /disconnect
func (h *GatewayHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	key, ok := h.keyFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		Logout bool `json:"logout"`
	}
	if r.ContentLength > 0 && !decodeJSON(r, &req) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	err := h.controller.Disconnect(r.Context(), key, req.Logout)
	if errors.Is(err, gateway.ErrNotFound) {
		httputil.WriteError(w, apperrors.NotFound("connection"))
		return
	}
	if err != nil {
		log.Error().Err(err).Str("identityKey", key.String()).Msg("failed to disconnect")
		httputil.WriteError(w, apperrors.Internal("Failed to disconnect").WithCause(err))
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventConnectionDrop,
		AccountID: accountID(r),
		Details:   map[string]any{"identity_key": key.String(), "logout": req.Logout},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Disconnected",
	})
}

// POST /reconnect
func (h *GatewayHandler) Reconnect(w http.ResponseWriter, r *http.Request) {
	key, ok := h.keyFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventConnectionReconnect,
		AccountID: accountID(r),
		Details:   map[string]any{"identity_key": key.String()},
	})

	conn, err := h.controller.Reconnect(r.Context(), key)
	if err != nil && !errors.Is(err, gateway.ErrTimeout) {
		log.Error().Err(err).Str("identityKey", key.String()).Msg("failed to reconnect")
		httputil.WriteError(w, apperrors.Internal("Failed to reconnect").WithCause(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": err == nil,
		"message": connectMessage(conn, err),
		"status":  conn.State,
	})
}

// POST /send-test
func (h *GatewayHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	key, ok := h.keyFor(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	var req struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}
	if !decodeJSON(r, &req) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	to, valid := util.NormalizePhone(req.To)
	if !valid {
		httputil.WriteError(w, apperrors.InvalidInput("to", "must be an international phone number"))
		return
	}
	if req.Message == "" {
		req.Message = "Test message"
	}

	err := h.notifier.Send(r.Context(), service.Outbound{
		Via:       key,
		AccountID: accountID(r),
		To:        to,
		Category:  model.NotificationCategoryTest,
		Body:      req.Message,
	})

	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventTestSend,
		AccountID: accountID(r),
		Details:   map[string]any{"identity_key": key.String(), "sent": err == nil},
	})

	switch {
	case errors.Is(err, gateway.ErrNotFound), errors.Is(err, gateway.ErrNotReady):
		httputil.WriteError(w, apperrors.ConnectionNotReady())
		return
	case err != nil:
		httputil.WriteError(w, apperrors.External("chat", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Message sent",
	})
}

func connectMessage(conn gateway.Connection, err error) string {
	if errors.Is(err, gateway.ErrTimeout) {
		return "Connection is still starting, poll /status for the QR code"
	}
	switch {
	case conn.State.Live():
		return "Connected"
	case conn.State == gateway.StateQRIssued:
		return "Scan the QR code with the chat app to link this device"
	case conn.State == gateway.StateDisconnected:
		return "Connection failed, try reconnecting"
	default:
		return "Connection is starting"
	}
}

func accountID(r *http.Request) string {
	if account := middleware.GetAccount(r.Context()); account != nil {
		return account.ID
	}
	return ""
}
