package domain

import "time"

// SigningKey represents a JWT signing key stored in the database with support
// for atomic rotation. The private half is encrypted at rest; rotated keys
// stay in the table so tokens they signed keep verifying until expiry.
type SigningKey struct {
	ID                  string     // ULID
	Kid                 string     // Key identifier in JWKS (e.g., "voltplan-abc123")
	Algorithm           string     // RS256
	PublicKeyPEM        []byte     // PKIX PEM, served through JWKS
	PrivateKeyEncrypted []byte     // AES-256-GCM encrypted private key PEM
	IsActive            bool       // At most one key is active at a time
	RotatedAt           *time.Time // When the key stopped signing (nil = never rotated)
	CreatedAt           time.Time
}
