package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/advicechat/relay/internal/config"
)

// Authenticator validates API keys against their configured hashes.
type Authenticator struct {
	keyHashes map[string]string // keyhash -> description
}

// NewAuthenticator builds an authenticator from the configured key hashes.
// Returns nil when no keys are configured, which disables auth.
func NewAuthenticator(keys []config.APIKeyConfig) *Authenticator {
	if len(keys) == 0 {
		return nil
	}

	a := &Authenticator{keyHashes: make(map[string]string, len(keys))}
	for _, k := range keys {
		a.keyHashes[k.KeyHash] = k.Description
	}
	return a
}

// ValidateAPIKey checks a raw API key and returns its description on success.
func (a *Authenticator) ValidateAPIKey(apiKey string) (string, error) {
	hash := sha256.Sum256([]byte(apiKey))
	keyHash := hex.EncodeToString(hash[:])

	desc, ok := a.keyHashes[keyHash]
	if !ok {
		return "", fmt.Errorf("invalid API key")
	}

	// Constant-time comparison to prevent timing attacks
	for stored := range a.keyHashes {
		if subtle.ConstantTimeCompare([]byte(keyHash), []byte(stored)) == 1 {
			return desc, nil
		}
	}

	return "", fmt.Errorf("invalid API key")
}

// ExtractAPIKey pulls the API key out of the Authorization header.
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}
	return strings.TrimPrefix(auth, "Bearer "), nil
}

// HashKey returns the hex-encoded sha256 of a key, the form stored in config.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
