package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/voltplan/voltplan/internal/auth/service"
	"github.com/voltplan/voltplan/pkg/httpx"
	"github.com/voltplan/voltplan/pkg/slogx"
)

// RefreshHandler exchanges a refresh token for a new access token, rotating
// the session unless rotation is disabled.
type RefreshHandler struct {
	Auth *service.AuthService
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	result, err := h.Auth.Refresh(ctx, service.RefreshRequest{
		RefreshToken: req.RefreshToken,
		UserAgent:    r.UserAgent(),
		IP:           httpx.IPKeyExtractor(r),
	})
	if err != nil {
		var notActive *service.SessionNotActiveError
		switch {
		case errors.Is(err, service.ErrMalformedToken),
			errors.Is(err, service.ErrInvalidToken),
			errors.As(err, &notActive):
			// One error for every dead-token cause; the audit log keeps the
			// distinction, the client does not get it.
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "refresh token is invalid or expired")
		case errors.Is(err, service.ErrAccountDisabled):
			httpx.WriteError(w, http.StatusForbidden, "account_disabled", "this account has been disabled")
		default:
			slogx.FromContext(ctx).Error("refresh failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken:  result.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    result.ExpiresIn,
		RefreshToken: result.RefreshToken,
		User:         newUserResponse(result.User),
	})
}
