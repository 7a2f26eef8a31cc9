package http

import (
	"net/http"

	"github.com/voltplan/voltplan/internal/auth/service"
	"github.com/voltplan/voltplan/pkg/httpx"
	"github.com/voltplan/voltplan/pkg/slogx"
)

// KeysHandler is the admin surface for signing key management.
type KeysHandler struct {
	Keys *service.KeyStore
}

// HandleRotate swaps in a fresh signing key. The old key keeps verifying
// tokens it signed; new tokens use the new key immediately.
func (h *KeysHandler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	key, err := h.Keys.RotateKeys(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("key rotation failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	slogx.FromContext(ctx).Info("signing key rotated", "kid", key.Kid)
	httpx.WriteJSON(w, http.StatusOK, newKeyResponse(key))
}

// HandleList lists every signing key, rotated ones included.
func (h *KeysHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	keys, err := h.Keys.ListKeys(ctx)
	if err != nil {
		slogx.FromContext(ctx).Error("key listing failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	out := make([]KeyResponse, len(keys))
	for i, key := range keys {
		out[i] = newKeyResponse(key)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string][]KeyResponse{"keys": out})
}
