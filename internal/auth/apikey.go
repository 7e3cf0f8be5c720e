package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/saltyorg/easierlife/internal/config"
)

const (
	// APIKeyLength is the length of generated API keys in bytes (will be hex encoded)
	APIKeyLength = 32
	// BcryptCost is the bcrypt cost factor
	BcryptCost = 12
)

// GenerateAPIKey creates a new cryptographically secure API key
func GenerateAPIKey() (string, error) {
	b := make([]byte, APIKeyLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashKey hashes an API key using bcrypt
func HashKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash api key: %w", err)
	}
	return string(hash), nil
}

// CheckKey verifies an API key against a hash
func CheckKey(key, hash string) bool {
	if key == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}

// EnsureAPIKey generates the local API key on first start and stores its hash.
// The plaintext key is only returned when created is true; it cannot be recovered later.
func EnsureAPIKey(store config.SettingsStore) (key string, created bool, err error) {
	if config.NewLoader(store).String(config.KeyAPIKeyHash, "") != "" {
		return "", false, nil
	}

	key, err = RotateAPIKey(store)
	if err != nil {
		return "", false, err
	}
	return key, true, nil
}

// RotateAPIKey replaces the stored hash with a freshly generated key
func RotateAPIKey(store config.SettingsStore) (string, error) {
	key, err := GenerateAPIKey()
	if err != nil {
		return "", err
	}
	hash, err := HashKey(key)
	if err != nil {
		return "", err
	}
	if err := store.SetSettingJSON(config.KeyAPIKeyHash, hash); err != nil {
		return "", fmt.Errorf("failed to save api key: %w", err)
	}

	log.Info().Msg("Generated new local API key")
	return key, nil
}
