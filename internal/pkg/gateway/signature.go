package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// VerifyHMACSHA512 checks a hex-encoded HMAC-SHA512 of payload in constant time.
func VerifyHMACSHA512(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}

	h := hmac.New(sha512.New, []byte(secret))
	h.Write(payload)
	return hmac.Equal(given, h.Sum(nil))
}

// SignHMACSHA512 produces the signature VerifyHMACSHA512 accepts.
func SignHMACSHA512(payload []byte, secret string) string {
	h := hmac.New(sha512.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
