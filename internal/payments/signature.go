package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// Sign считает подпись вебхука: base64(HMAC-SHA256(secret, timestamp + rawBody)).
func Sign(secret, timestamp string, rawBody []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(rawBody)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature сравнивает подпись за постоянное время.
// Пустой секрет или пустая подпись всегда дают false.
func VerifySignature(secret, timestamp string, rawBody []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, timestamp, rawBody)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
