package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// VerifyWebhookSecret compares the caller-supplied shared secret against the
// configured one in constant time. Nothing is mutated before this passes.
func VerifyWebhookSecret(configured, presented string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}

// VerifyWebhookSignature checks an HMAC-SHA256 signature over
// amount|orderId|status when the processor sends one alongside the secret.
func VerifyWebhookSignature(secret string, data map[string]string, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data["amount"] + data["orderId"] + data["status"]))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
