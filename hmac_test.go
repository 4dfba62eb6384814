package oauthfilter

import (
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionHmacPayload(t *testing.T) {
	payload := sessionHmacPayload("example.com", "1700003600", "access", "id", "refresh")
	assert.Equal(t, "example.com\n1700003600\naccess\nid\nrefresh", payload)
}

func TestSessionHmacPayloadMissingFields(t *testing.T) {
	// Missing fields hash as the empty string, separators always present.
	payload := sessionHmacPayload("example.com", "1700003600", "", "", "")
	assert.Equal(t, "example.com\n1700003600\n\n\n", payload)
}

func TestEncodeHmacBase64(t *testing.T) {
	encoded := encodeHmacBase64("secret", "message")
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
	assert.Equal(t, computeHmac("secret", "message"), raw)
}

func TestEncodeHmacHexBase64(t *testing.T) {
	encoded := encodeHmacHexBase64("secret", "message")
	hexed, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	raw, err := hex.DecodeString(string(hexed))
	require.NoError(t, err)
	assert.Equal(t, computeHmac("secret", "message"), raw)
}

func TestHmacEncodingsDiffer(t *testing.T) {
	// Both encodings sign the same digest but are never byte-identical.
	assert.NotEqual(t,
		encodeSessionHmac("secret", "example.com", "1", "a", "i", "r"),
		encodeSessionHmacLegacy("secret", "example.com", "1", "a", "i", "r"))
}

func TestHmacDependsOnEverySlot(t *testing.T) {
	base := encodeSessionHmac("secret", "example.com", "1700003600", "a", "i", "r")
	assert.NotEqual(t, base, encodeSessionHmac("other", "example.com", "1700003600", "a", "i", "r"))
	assert.NotEqual(t, base, encodeSessionHmac("secret", "evil.com", "1700003600", "a", "i", "r"))
	assert.NotEqual(t, base, encodeSessionHmac("secret", "example.com", "1700003601", "a", "i", "r"))
	assert.NotEqual(t, base, encodeSessionHmac("secret", "example.com", "1700003600", "b", "i", "r"))
	assert.NotEqual(t, base, encodeSessionHmac("secret", "example.com", "1700003600", "a", "j", "r"))
	assert.NotEqual(t, base, encodeSessionHmac("secret", "example.com", "1700003600", "a", "i", "s"))
}
