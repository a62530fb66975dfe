package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// WebhookVerifier checks the HMAC signature the platform attaches to every
// webhook delivery.
type WebhookVerifier struct {
	secret []byte
}

// NewWebhookVerifier creates a verifier for the app's shared secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret)}
}

// Verify reports whether signature is the base64-encoded HMAC-SHA256 of
// body under the shared secret. Comparison is constant time.
func (v *WebhookVerifier) Verify(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	expected, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	computed := mac.Sum(nil)

	return subtle.ConstantTimeCompare(computed, expected) == 1
}
