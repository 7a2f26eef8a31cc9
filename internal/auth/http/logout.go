package http

import (
	"encoding/json"
	"net/http"

	"github.com/voltplan/voltplan/internal/auth/service"
	"github.com/voltplan/voltplan/pkg/httpx"
	"github.com/voltplan/voltplan/pkg/slogx"
)

// LogoutHandler revokes the session behind a refresh token. Always answers
// 200: a token that is malformed, unknown or already dead leaves the client
// just as logged out as a live one.
type LogoutHandler struct {
	Auth *service.AuthService
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	if err := h.Auth.Logout(ctx, req.RefreshToken); err != nil {
		slogx.FromContext(ctx).Error("logout failed", "err", err)
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
