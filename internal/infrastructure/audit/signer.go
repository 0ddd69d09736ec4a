package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureHeader carries the base64 HMAC-SHA256 of the message value.
const SignatureHeader = "x-audit-signature"

// SignPayload calculates the HMAC-SHA256 signature of a serialized audit event.
func SignPayload(payload []byte, secretKey string) string {
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write(payload)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifyPayload reports whether signature matches payload under secretKey.
func VerifyPayload(payload []byte, signature, secretKey string) bool {
	want, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write(payload)
	return hmac.Equal(want, h.Sum(nil))
}
