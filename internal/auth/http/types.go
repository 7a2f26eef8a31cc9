package http

import (
	"time"

	"github.com/voltplan/voltplan/internal/auth/domain"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	User         UserResponse `json:"user"`
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// SessionResponse is the session projection for the self-service and admin
// surfaces. The refresh token fingerprint never leaves the server.
type SessionResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Status      string     `json:"status"`
	UserAgent   string     `json:"user_agent,omitempty"`
	IP          string     `json:"ip,omitempty"`
	RotatedFrom *string    `json:"rotated_from,omitempty"`
	RotatedTo   *string    `json:"rotated_to,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

type KeyResponse struct {
	Kid       string     `json:"kid"`
	Algorithm string     `json:"algorithm"`
	IsActive  bool       `json:"is_active"`
	RotatedAt *time.Time `json:"rotated_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Version string `json:"version"`
}

func newUserResponse(u domain.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

func newSessionResponse(s domain.Session, now time.Time) SessionResponse {
	return SessionResponse{
		ID:          s.ID,
		UserID:      s.UserID,
		Status:      string(s.Status(now)),
		UserAgent:   s.UserAgent,
		IP:          s.IP,
		RotatedFrom: s.RotatedFrom,
		RotatedTo:   s.RotatedTo,
		CreatedAt:   s.CreatedAt,
		ExpiresAt:   s.ExpiresAt,
		RevokedAt:   s.RevokedAt,
	}
}

func newKeyResponse(k domain.SigningKey) KeyResponse {
	return KeyResponse{
		Kid:       k.Kid,
		Algorithm: k.Algorithm,
		IsActive:  k.IsActive,
		RotatedAt: k.RotatedAt,
		CreatedAt: k.CreatedAt,
	}
}
