package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" keyed by secret.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares signature with the expected lowercase hex digest
// in constant time. Any other spelling of the digest is rejected.
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, orderID, paymentID)), []byte(signature))
}
