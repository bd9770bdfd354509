package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrInvalidSignature rejects signatures that do not match the raw body.
var ErrInvalidSignature = errors.New("invalid signature")

// Sign computes the hex HMAC-SHA256 of body under secret. Agents use the
// same construction client-side.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the HMAC over the exact raw request bytes
// and compares it to the supplied hex signature in constant time. It
// must always receive the untouched byte stream; verifying a reserialized
// form of the body breaks the contract.
func VerifySignature(secret, body []byte, signature string) error {
	supplied, err := hex.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), supplied) {
		return ErrInvalidSignature
	}
	return nil
}
