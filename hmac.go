package oauthfilter

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

const hmacPayloadSeparator = "\n"

// computeHmac returns the raw SHA-256 HMAC of message under secret.
func computeHmac(secret, message string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return mac.Sum(nil)
}

// encodeHmacBase64 generates a SHA-256 HMAC from a secret and a message and
// returns the result as a base64 encoded string. This is the encoding used
// for every newly minted signature.
func encodeHmacBase64(secret, message string) string {
	return base64.StdEncoding.EncodeToString(computeHmac(secret, message))
}

// encodeHmacHexBase64 is the legacy signature encoding: the HMAC is first
// hex-encoded and the hex string is then base64 encoded. Sessions minted by
// earlier releases carry this form, so validation must keep accepting it.
func encodeHmacHexBase64(secret, message string) string {
	return base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(computeHmac(secret, message))))
}

// sessionHmacPayload builds the canonical payload bound by the session HMAC
// cookie. Missing fields hash as the empty string; the separator is always
// present between all five slots.
func sessionHmacPayload(domain, expires, accessToken, idToken, refreshToken string) string {
	return strings.Join([]string{domain, expires, accessToken, idToken, refreshToken}, hmacPayloadSeparator)
}

// encodeSessionHmac signs the five session slots with the current encoding.
func encodeSessionHmac(secret, domain, expires, accessToken, idToken, refreshToken string) string {
	return encodeHmacBase64(secret, sessionHmacPayload(domain, expires, accessToken, idToken, refreshToken))
}

// encodeSessionHmacLegacy signs the five session slots with the legacy
// hex-then-base64 encoding. Only used on the validation path.
func encodeSessionHmacLegacy(secret, domain, expires, accessToken, idToken, refreshToken string) string {
	return encodeHmacHexBase64(secret, sessionHmacPayload(domain, expires, accessToken, idToken, refreshToken))
}
