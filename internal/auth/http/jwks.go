package http

import (
	"encoding/json"
	"net/http"

	"github.com/voltplan/voltplan/internal/auth/service"
	"github.com/voltplan/voltplan/pkg/httpx"
	"github.com/voltplan/voltplan/pkg/slogx"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery. Only
// active keys are published. Unlike token responses the key set is public
// material, so it gets a short cache window instead of no-store.
func JWKSHandler(keys *service.KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := keys.ActiveJWKS(r.Context())
		if err != nil {
			slogx.FromContext(r.Context()).Error("jwks projection failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=300")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(jwks)
	}
}
