// Package audit records security-relevant auth events. The default recorder
// writes structured log lines; anything that needs a durable audit trail can
// plug in its own Recorder.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/voltplan/voltplan/pkg/slogx"
)

// Event types recorded by the auth service.
const (
	EventLogin         = "auth.login"
	EventLoginFailed   = "auth.login_failed"
	EventRefresh       = "auth.refresh"
	EventRefreshReplay = "auth.refresh_replay"
	EventLogout        = "auth.logout"
	EventSessionRevoke = "auth.session_revoke"
	EventKeyRotation   = "auth.key_rotation"
)

// Event is one audit record.
type Event struct {
	Type      string
	UserID    string
	SessionID string
	IP        string
	UserAgent string
	Detail    string
	At        time.Time
}

// Recorder receives audit events. Implementations must not block the request
// path; failures are the recorder's problem, not the caller's.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// SlogRecorder emits audit events as structured log lines under a fixed
// "audit" group so they can be filtered downstream.
type SlogRecorder struct{}

func (SlogRecorder) Record(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	slogx.FromContext(ctx).LogAttrs(ctx, slog.LevelInfo, "audit event",
		slog.String("audit_type", e.Type),
		slog.String("user_id", e.UserID),
		slog.String("session_id", e.SessionID),
		slog.String("ip", e.IP),
		slog.String("user_agent", e.UserAgent),
		slog.String("detail", e.Detail),
		slog.Time("at", e.At),
	)
}

// Nop discards every event. Used in tests.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}
