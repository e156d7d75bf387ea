package domain

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signature computes the provider callback signature: hex-encoded
// HMAC-SHA256 over "orderID|paymentID" keyed with the provider's shared
// secret.
func Signature(secret, providerOrderID, providerPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(providerOrderID + "|" + providerPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares the supplied signature against the recomputed
// one in constant time.
func VerifySignature(secret, providerOrderID, providerPaymentID, signature string) bool {
	expected := Signature(secret, providerOrderID, providerPaymentID)
	return hmac.Equal([]byte(signature), []byte(expected))
}
