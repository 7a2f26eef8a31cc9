package service

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/voltplan/voltplan/internal/auth/audit"
	"github.com/voltplan/voltplan/internal/auth/domain"
	"github.com/voltplan/voltplan/internal/auth/store"
	"github.com/voltplan/voltplan/pkg/cryptox"
	"github.com/voltplan/voltplan/pkg/idx"
	"github.com/voltplan/voltplan/pkg/jwtx"
)

// KeyStore owns the RSA signing keys. There is at most one active key; the
// rest stay in the table so tokens they signed keep verifying until they age
// out of circulation.
type KeyStore struct {
	Store   store.Store
	Cipher  *cryptox.KeyCipher
	RSABits int
	Audit   audit.Recorder
}

// RotateKeys generates a fresh RSA key pair and atomically swaps it in: the
// current active key is deactivated and the new one inserted in the same
// transaction, so there is never a moment with zero or two active keys.
func (s *KeyStore) RotateKeys(ctx context.Context) (domain.SigningKey, error) {
	kid, err := generateKeyID()
	if err != nil {
		return domain.SigningKey{}, err
	}

	rsaBits := s.RSABits
	if rsaBits == 0 {
		rsaBits = 2048
	}

	pemData, err := cryptox.GenerateRSAKey(rsaBits)
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("failed to generate key pair: %w", err)
	}

	privateKey, err := cryptox.ParseRSAPrivateKeyPEM(pemData)
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("failed to parse generated key: %w", err)
	}

	publicPEM, err := cryptox.EncodeRSAPublicKeyPEM(&privateKey.PublicKey)
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("failed to encode public key: %w", err)
	}

	encryptedKey, err := s.Cipher.Encrypt(pemData)
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("failed to encrypt private key: %w", err)
	}

	now := time.Now().UTC()
	newKey := domain.SigningKey{
		ID:                  idx.New().String(),
		Kid:                 kid,
		Algorithm:           jwtx.AlgorithmRS256,
		PublicKeyPEM:        publicPEM,
		PrivateKeyEncrypted: encryptedKey,
		IsActive:            true,
		CreatedAt:           now,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.SigningKeys().DeactivateActiveSigningKeys(ctx, now); err != nil {
			return fmt.Errorf("failed to deactivate active keys: %w", err)
		}
		if err := tx.SigningKeys().CreateSigningKey(ctx, newKey); err != nil {
			return fmt.Errorf("failed to create new signing key: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.SigningKey{}, err
	}

	s.Audit.Record(ctx, audit.Event{
		Type:   audit.EventKeyRotation,
		Detail: "new kid " + kid,
		At:     now,
	})

	return newKey, nil
}

// CreateInitialKey makes sure an active key exists at startup. Idempotent:
// when one is already present it is returned untouched.
func (s *KeyStore) CreateInitialKey(ctx context.Context) (domain.SigningKey, error) {
	key, err := s.Store.SigningKeys().GetActiveSigningKey(ctx)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.SigningKey{}, err
	}

	return s.RotateKeys(ctx)
}

// ActiveSigningKey returns the kid and decrypted private key used for signing.
func (s *KeyStore) ActiveSigningKey(ctx context.Context) (string, *rsa.PrivateKey, error) {
	key, err := s.Store.SigningKeys().GetActiveSigningKey(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, ErrSigningUnavailable
		}
		return "", nil, err
	}

	pemData, err := s.Cipher.Decrypt(key.PrivateKeyEncrypted)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decrypt signing key: %w", err)
	}

	privateKey, err := cryptox.ParseRSAPrivateKeyPEM(pemData)
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse signing key: %w", err)
	}

	return key.Kid, privateKey, nil
}

// PublicKey resolves a kid to its public key, rotated keys included. Shaped
// to serve as a jwtx.KeyResolver.
func (s *KeyStore) PublicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	key, err := s.Store.SigningKeys().GetSigningKeyByKid(ctx, kid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, jwtx.ErrUnknownKID
		}
		return nil, err
	}

	return cryptox.ParseRSAPublicKeyPEM(key.PublicKeyPEM)
}

// ActiveJWKS projects the active keys into a JWKS document. Rotated keys are
// deliberately left out; clients holding tokens signed by them verify through
// the server, not the published set.
func (s *KeyStore) ActiveJWKS(ctx context.Context) (jwtx.JWKS, error) {
	keys, err := s.Store.SigningKeys().ListActiveSigningKeys(ctx)
	if err != nil {
		return jwtx.JWKS{}, err
	}

	jwks := jwtx.JWKS{Keys: make([]jwtx.JWK, 0, len(keys))}
	for _, key := range keys {
		pub, err := cryptox.ParseRSAPublicKeyPEM(key.PublicKeyPEM)
		if err != nil {
			return jwtx.JWKS{}, fmt.Errorf("failed to parse public key for kid %s: %w", key.Kid, err)
		}
		jwks.Keys = append(jwks.Keys, jwtx.NewRSAJWK(key.Kid, pub))
	}

	return jwks, nil
}

// ListKeys returns every signing key, newest first, for the admin surface.
func (s *KeyStore) ListKeys(ctx context.Context) ([]domain.SigningKey, error) {
	return s.Store.SigningKeys().ListAllSigningKeys(ctx)
}

// generateKeyID generates a random key identifier.
func generateKeyID() (string, error) {
	token, err := cryptox.GenerateToken(16)
	if err != nil {
		return "", fmt.Errorf("failed to generate key ID: %w", err)
	}
	return fmt.Sprintf("voltplan-%s", token), nil
}
