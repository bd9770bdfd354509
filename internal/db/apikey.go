package db

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// KeyPrefixLen is the number of leading raw-key characters stored as the
// lookup hint. Raw keys look like "frc_<base64url>"; the prefix is long
// enough to be unique in practice and short enough to leak nothing.
const KeyPrefixLen = 10

// ErrKeyTooShort is returned for presented keys shorter than the prefix.
var ErrKeyTooShort = errors.New("api key too short")

// GenerateAPIKey returns a new raw API key. The caller must hand it to
// the user immediately; only the hash is persisted.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "frc_" + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashAPIKey produces the stored verifier for a raw key.
func HashAPIKey(raw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Prefix returns the lookup hint for a presented raw key.
func Prefix(raw string) (string, error) {
	if len(raw) < KeyPrefixLen {
		return "", ErrKeyTooShort
	}
	return raw[:KeyPrefixLen], nil
}

// Verify reports whether the presented raw key matches this record's
// stored verifier.
func (k *APIKey) Verify(raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(raw)) == nil
}
