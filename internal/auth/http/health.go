package http

import (
	"net/http"
	"time"

	"github.com/voltplan/voltplan/internal/auth/service"
	"github.com/voltplan/voltplan/internal/auth/store"
	"github.com/voltplan/voltplan/pkg/httpx"
)

// LivezHandler is the liveness probe. Always 200 while the process runs.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler is the readiness probe: the database must answer and an
// active signing key must exist before traffic is let in.
func ReadyzHandler(startTime time.Time, version string, st store.Store, keys *service.KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := st.Ping(ctx); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "database unavailable",
				Uptime:  time.Since(startTime).String(),
				Version: version,
			})
			return
		}

		if _, _, err := keys.ActiveSigningKey(ctx); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "no active signing key",
				Uptime:  time.Since(startTime).String(),
				Version: version,
			})
			return
		}

		httpx.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}
