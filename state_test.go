package oauthfilter

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		url  string
		csrf string
	}{
		{"plain", "https://app.example.com/page", "nonce.hmac"},
		{"query string", "https://app.example.com/page?a=1&b=2", "nonce.hmac"},
		{"quotes and backslashes", `https://app.example.com/p?q="x"\y`, `tok"en`},
		{"unicode", "https://app.example.com/ünïcode", "Δtoken"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			encoded := encodeState(test.url, test.csrf)
			decoded, err := decodeState(encoded)
			require.NoError(t, err)
			assert.Equal(t, test.url, decoded.URL)
			assert.Equal(t, test.csrf, decoded.CsrfToken)
		})
	}
}

func TestEncodeStateIsBase64urlJSON(t *testing.T) {
	encoded := encodeState("https://app.example.com/page", "n.h")
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"https://app.example.com/page","csrf_token":"n.h"}`, string(raw))
}

func TestDecodeStateAcceptsPadding(t *testing.T) {
	raw := []byte(`{"url":"https://a/b","csrf_token":"c"}`)
	padded := base64.URLEncoding.EncodeToString(raw)
	decoded, err := decodeState(padded)
	require.NoError(t, err)
	assert.Equal(t, "https://a/b", decoded.URL)
}

func TestDecodeStateFailures(t *testing.T) {
	tests := []struct {
		name  string
		state string
	}{
		{"not base64", "%%%%"},
		{"not JSON", base64.RawURLEncoding.EncodeToString([]byte("not json"))},
		{"missing url", base64.RawURLEncoding.EncodeToString([]byte(`{"csrf_token":"c"}`))},
		{"missing csrf token", base64.RawURLEncoding.EncodeToString([]byte(`{"url":"https://a/b"}`))},
		{"empty", ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := decodeState(test.state)
			assert.Error(t, err)
		})
	}
}
