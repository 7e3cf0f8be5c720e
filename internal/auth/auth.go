// Package auth authenticates requests to the HTTP surface, either with the local
// API key or with a token that the Jellyfin server accepts.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/easierlife/internal/config"
)

// CacheDuration is how long an accepted token skips re-validation
const CacheDuration = 5 * time.Minute

// TokenValidator checks a token against the media server
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (bool, error)
}

// Authenticator accepts the local API key or any token the validator accepts.
// Accepted tokens are cached by digest so bcrypt and remote checks run once per CacheDuration.
type Authenticator struct {
	settings  config.SettingsGetter
	validator TokenValidator

	mu       sync.Mutex
	accepted map[string]time.Time
	now      func() time.Time
}

// NewAuthenticator creates an authenticator. validator may be nil.
func NewAuthenticator(settings config.SettingsGetter, validator TokenValidator) *Authenticator {
	return &Authenticator{
		settings:  settings,
		validator: validator,
		accepted:  make(map[string]time.Time),
		now:       time.Now,
	}
}

// Authenticate reports whether token grants access
func (a *Authenticator) Authenticate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	digest := digestOf(token)
	if a.cached(digest) {
		return true, nil
	}

	if CheckKey(token, config.NewLoader(a.settings).String(config.KeyAPIKeyHash, "")) {
		a.remember(digest)
		return true, nil
	}

	if a.validator == nil {
		return false, nil
	}
	ok, err := a.validator.ValidateToken(ctx, token)
	if err != nil {
		return false, err
	}
	if ok {
		a.remember(digest)
		log.Debug().Msg("Accepted Jellyfin token")
	}
	return ok, nil
}

// Forget drops all cached tokens, used after the local key is rotated
func (a *Authenticator) Forget() {
	a.mu.Lock()
	clear(a.accepted)
	a.mu.Unlock()
}

func (a *Authenticator) cached(digest string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	expires, ok := a.accepted[digest]
	if !ok {
		return false
	}
	if a.now().After(expires) {
		delete(a.accepted, digest)
		return false
	}
	return true
}

func (a *Authenticator) remember(digest string) {
	a.mu.Lock()
	a.accepted[digest] = a.now().Add(CacheDuration)
	a.mu.Unlock()
}

func digestOf(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
