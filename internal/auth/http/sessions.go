package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/voltplan/voltplan/internal/auth/audit"
	"github.com/voltplan/voltplan/internal/auth/domain"
	"github.com/voltplan/voltplan/internal/auth/service"
	"github.com/voltplan/voltplan/internal/auth/store"
	"github.com/voltplan/voltplan/pkg/httpx"
	"github.com/voltplan/voltplan/pkg/slogx"
)

// SessionsHandler serves the self-service session endpoints and the admin
// chain view.
type SessionsHandler struct {
	Sessions *service.SessionManager
	Store    store.Store
	Audit    audit.Recorder
}

// HandleList returns the caller's active sessions, newest first.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	sessions, err := h.Sessions.ListActive(ctx, userID)
	if err != nil {
		slogx.FromContext(ctx).Error("session listing failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	now := time.Now()
	out := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		out[i] = newSessionResponse(s, now)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string][]SessionResponse{"sessions": out})
}

// HandleRevoke kills one session. Callers may revoke their own sessions;
// admins may revoke anyone's.
func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := r.PathValue("id")

	session, err := h.Store.Sessions().GetSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "no such session")
			return
		}
		slogx.FromContext(ctx).Error("session lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	if session.UserID != httpx.UserIDFromContext(ctx) && !isAdmin(r) {
		// Non-owners get the same answer as a missing session so session ids
		// cannot be probed.
		httpx.WriteError(w, http.StatusNotFound, "not_found", "no such session")
		return
	}

	if err := h.Sessions.Revoke(ctx, session.ID); err != nil {
		slogx.FromContext(ctx).Error("session revoke failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	h.Audit.Record(ctx, audit.Event{
		Type:      audit.EventSessionRevoke,
		UserID:    session.UserID,
		SessionID: session.ID,
	})

	w.WriteHeader(http.StatusNoContent)
}

// HandleRevokeAll revokes every active session the caller has, current one
// included.
func (h *SessionsHandler) HandleRevokeAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := httpx.UserIDFromContext(ctx)

	n, err := h.Sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		slogx.FromContext(ctx).Error("bulk session revoke failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	h.Audit.Record(ctx, audit.Event{
		Type:   audit.EventSessionRevoke,
		UserID: userID,
		Detail: "all sessions revoked",
	})

	httpx.WriteJSON(w, http.StatusOK, map[string]int{"revoked": n})
}

// HandleChain returns the full rotation chain containing a session, head
// first. Admin-only; the chain is the audit trail of one refresh lineage.
func (h *SessionsHandler) HandleChain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID := r.PathValue("id")

	chain, err := h.Sessions.Chain(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "no such session")
			return
		}
		slogx.FromContext(ctx).Error("chain walk failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	now := time.Now()
	out := make([]SessionResponse, len(chain))
	for i, s := range chain {
		out[i] = newSessionResponse(s, now)
	}
	httpx.WriteJSON(w, http.StatusOK, map[string][]SessionResponse{"chain": out})
}

func isAdmin(r *http.Request) bool {
	role, ok := r.Context().Value(httpx.CtxKeyRole).(string)
	return ok && role == domain.RoleAdmin
}
