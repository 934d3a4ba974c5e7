package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// VerifySignature verifies a WooCommerce-style webhook signature:
// base64(HMAC-SHA256(body, secret)).
//
// Constant-time comparison (crypto/subtle) prevents timing attacks. An empty
// secret bypasses verification entirely and returns true; that is a deliberate
// operational fallback for unconfigured installs, and callers log it at warn.
// Any decoding problem counts as a mismatch (fail closed) rather than an
// error surfaced to the caller.
func VerifySignature(body []byte, signature, secret string) bool {
	if secret == "" {
		return true
	}

	provided, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	return subtle.ConstantTimeCompare(expected, provided) == 1
}

// Sign computes the base64 HMAC-SHA256 signature the sender would attach.
// Used by tests and the docs examples.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
