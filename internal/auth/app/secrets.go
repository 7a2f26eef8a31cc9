package app

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
)

const secretFileSize = 32

// loadOrGenerateSecret reads the secret file at path, generating it with
// restrictive permissions on first run. Both the refresh-token salt and the
// key-encryption master secret go through here; losing either invalidates
// everything derived from it, so they live on disk rather than in memory.
func loadOrGenerateSecret(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) < secretFileSize {
			return nil, fmt.Errorf("secret file %s is too short", path)
		}
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read secret file %s: %w", path, err)
	}

	data = make([]byte, secretFileSize)
	if _, err := io.ReadFull(rand.Reader, data); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write secret file %s: %w", path, err)
	}

	return data, nil
}
