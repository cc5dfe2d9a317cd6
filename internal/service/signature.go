package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature reports whether signatureHeader is the hex HMAC-SHA256 of
// rawBody keyed by secret. rawBody must be the exact bytes received on the
// wire; hashing a re-encoded payload will not match.
func VerifySignature(rawBody []byte, signatureHeader, secret string) bool {
	if secret == "" {
		return false
	}

	cleaned := strings.ToLower(strings.TrimSpace(signatureHeader))
	cleaned = strings.TrimPrefix(cleaned, "sha256=")
	if cleaned == "" {
		return false
	}

	provided, err := hex.DecodeString(cleaned)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)

	return hmac.Equal(mac.Sum(nil), provided)
}

// SignPayload returns the hex HMAC-SHA256 of rawBody keyed by secret.
func SignPayload(rawBody []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hex.EncodeToString(mac.Sum(nil))
}
