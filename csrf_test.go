package oauthfilter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCsrfTokenFormat(t *testing.T) {
	token := generateCsrfToken("secret", fixedRandom{value: 0x4355a46b19d348dc})
	nonce, mac, found := strings.Cut(token, ".")
	require.True(t, found)
	assert.Equal(t, "4355a46b19d348dc", nonce)
	assert.Equal(t, encodeHmacBase64("secret", nonce), mac)
}

func TestGenerateCsrfTokenZeroPadded(t *testing.T) {
	token := generateCsrfToken("secret", fixedRandom{value: 0xab})
	nonce, _, _ := strings.Cut(token, ".")
	assert.Equal(t, "00000000000000ab", nonce)
}

func TestValidateCsrfTokenHmac(t *testing.T) {
	token := generateCsrfToken("secret", cryptoRandomGenerator{})
	assert.True(t, validateCsrfTokenHmac("secret", token))
}

func TestValidateCsrfTokenHmacRejectsTampering(t *testing.T) {
	token := generateCsrfToken("secret", fixedRandom{value: 42})

	// flip one character of the nonce half
	tampered := "f" + token[1:]
	if tampered == token {
		tampered = "0" + token[1:]
	}
	assert.False(t, validateCsrfTokenHmac("secret", tampered))

	// wrong secret
	assert.False(t, validateCsrfTokenHmac("other-secret", token))

	// no separator at all
	assert.False(t, validateCsrfTokenHmac("secret", strings.ReplaceAll(token, ".", "")))

	// empty token
	assert.False(t, validateCsrfTokenHmac("secret", ""))
}

func TestCryptoRandomGenerator(t *testing.T) {
	gen := cryptoRandomGenerator{}
	a, b := gen.Random(), gen.Random()
	assert.NotEqual(t, a, b)
}
