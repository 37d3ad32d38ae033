package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kasku/chat-gateway/internal/gateway"
	"github.com/kasku/chat-gateway/internal/httputil"
	"github.com/kasku/chat-gateway/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

func decodeJSON(r *http.Request, dst any) bool {
	return json.NewDecoder(r.Body).Decode(dst) == nil
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func formatConnection(conn gateway.Connection) map[string]any {
	resp := map[string]any{
		"connected": conn.Connected(),
		"status":    conn.State,
	}
	if conn.QRCode != "" {
		resp["qrCode"] = conn.QRCode
	}
	return resp
}

func formatIntegration(in model.Integration) map[string]any {
	resp := map[string]any{
		"id":               in.ID,
		"externalIdentity": in.ExternalIdentity,
		"status":           in.Status,
		"activatedAt":      formatUnix(in.ActivatedAt),
	}
	if in.DisplayName != nil {
		resp["displayName"] = *in.DisplayName
	}
	if in.RevokedAt != nil {
		resp["revokedAt"] = formatUnix(*in.RevokedAt)
	}
	return resp
}
