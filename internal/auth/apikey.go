// API key verification.
//
// The server is configured with a bcrypt hash of the API key, never the
// key itself. bcrypt embeds its salt and cost in the hash, so a single
// configuration value is enough, and a leaked config file does not leak
// the key.

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor. Cost 12 takes roughly 250ms on
// current server hardware, which is negligible for a one-time token
// exchange and expensive for brute force.
const defaultCost = 12

// APIKeyService verifies presented API keys against a stored bcrypt hash.
type APIKeyService struct {
	hash []byte
}

// NewAPIKeyService creates an APIKeyService for the given stored hash.
func NewAPIKeyService(hash string) (*APIKeyService, error) {
	if hash == "" {
		return nil, errors.New("auth: API key hash is required")
	}
	// Fail fast on a malformed hash instead of rejecting every key at
	// request time.
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("auth: invalid API key hash: %w", err)
	}
	return &APIKeyService{hash: []byte(hash)}, nil
}

// Verify checks a presented API key against the stored hash.
// Returns nil on a match. bcrypt compares in constant time, so response
// timing does not reveal how close a guess was.
func (s *APIKeyService) Verify(key string) error {
	err := bcrypt.CompareHashAndPassword(s.hash, []byte(key))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return errors.New("auth: invalid API key")
		}
		return fmt.Errorf("auth: comparing API key hash: %w", err)
	}
	return nil
}

// HashKey hashes a plaintext API key for storage. Useful for generating
// the configuration value:
//
//	hash, _ := auth.HashKey("my-secret-key")
//
// Keys longer than 72 bytes are rejected because bcrypt silently
// truncates beyond that.
func HashKey(key string) (string, error) {
	if len(key) > 72 {
		return "", fmt.Errorf("auth: API key must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(key), defaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing API key: %w", err)
	}

	return string(hashed), nil
}
