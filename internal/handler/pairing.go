package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/kasku/chat-gateway/internal/errors"
	"github.com/kasku/chat-gateway/internal/httputil"
	"github.com/kasku/chat-gateway/internal/middleware"
	"github.com/kasku/chat-gateway/internal/model"
	"github.com/kasku/chat-gateway/internal/service"
	"github.com/kasku/chat-gateway/internal/util"
)

type Pairing interface {
	GenerateCode(ctx context.Context, accountID string) (*model.ActivationCode, error)
	HandleInboundActivation(ctx context.Context, req service.ActivationRequest) (*model.Integration, error)
	ListConnections(ctx context.Context, accountID string) ([]model.Integration, error)
	RevokeConnection(ctx context.Context, accountID, integrationID string) error
}

var _ Pairing = (*service.PairingService)(nil)

type PairingHandler struct {
	pairing Pairing
}

func NewPairingHandler(pairing Pairing) *PairingHandler {
	return &PairingHandler{pairing: pairing}
}

// Register mounts the account-facing routes; authentication is applied by the caller.
func (h *PairingHandler) Register(r chi.Router) {
	r.Post("/generate-code", h.GenerateCode)
	r.Get("/connections", h.ListConnections)
	r.Delete("/connections/{id}", h.RevokeConnection)
}

// POST /generate-code
func (h *PairingHandler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	code, err := h.pairing.GenerateCode(r.Context(), account.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"code":      code.Code,
		"expiresAt": formatUnix(code.ExpiresAt),
	})
}

// POST /activate
// Called by the chat relay, not by end users.
func (h *PairingHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code             string `json:"code"`
		ExternalIdentity string `json:"externalIdentity"`
		DisplayName      string `json:"displayName"`
	}
	if !decodeJSON(r, &req) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	identity := strings.TrimSpace(req.ExternalIdentity)
	if identity != "" {
		normalized, ok := util.NormalizePhone(identity)
		if !ok {
			httputil.WriteError(w, apperrors.InvalidInput("externalIdentity", "must be an international phone number"))
			return
		}
		identity = normalized
	}

	integration, err := h.pairing.HandleInboundActivation(r.Context(), service.ActivationRequest{
		Code:             req.Code,
		ExternalIdentity: identity,
		DisplayName:      strings.TrimSpace(req.DisplayName),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Chat identity linked",
		"accountId": integration.AccountID,
	})
}

// GET /connections
func (h *PairingHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	integrations, err := h.pairing.ListConnections(r.Context(), account.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	items := make([]map[string]any, len(integrations))
	for i, in := range integrations {
		items[i] = formatIntegration(in)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connections": items,
		"total":       len(items),
	})
}

// DELETE /connections/{id}
func (h *PairingHandler) RevokeConnection(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccount(r.Context())
	if account == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	id := chi.URLParam(r, "id")
	if !util.IsValidUUID(id) {
		httputil.WriteError(w, apperrors.InvalidInput("id", "must be a UUID"))
		return
	}

	if err := h.pairing.RevokeConnection(r.Context(), account.ID, id); err != nil {
		httputil.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Connection revoked",
	})
}
