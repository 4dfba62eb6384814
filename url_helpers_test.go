package oauthfilter

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetermineScheme(t *testing.T) {
	plain := httptest.NewRequest("GET", "http://app.example.com/", nil)
	assert.Equal(t, "http", determineScheme(plain))

	tls := httptest.NewRequest("GET", "https://app.example.com/", nil)
	assert.Equal(t, "https", determineScheme(tls))

	forwarded := httptest.NewRequest("GET", "http://app.example.com/", nil)
	forwarded.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https", determineScheme(forwarded))
}

func TestDetermineHost(t *testing.T) {
	req := httptest.NewRequest("GET", "http://app.example.com/", nil)
	assert.Equal(t, "app.example.com", determineHost(req))

	req.Header.Set("X-Forwarded-Host", "public.example.com")
	assert.Equal(t, "public.example.com", determineHost(req))
}

func TestRedirectSchemeDefaultsToHTTPS(t *testing.T) {
	// https stays https, explicit http is honored
	assert.Equal(t, "https", redirectScheme(httptest.NewRequest("GET", "https://a/", nil)))
	assert.Equal(t, "http", redirectScheme(httptest.NewRequest("GET", "http://a/", nil)))
}

func TestURLEncodeQueryParameter(t *testing.T) {
	assert.Equal(t, "user%20admin", urlEncodeQueryParameter("user admin"))
	assert.Equal(t, "https%3A%2F%2Fa%2Fb%3Fc%3Dd%26e", urlEncodeQueryParameter("https://a/b?c=d&e"))
	assert.Equal(t, "unreserved-._~09AZaz", urlEncodeQueryParameter("unreserved-._~09AZaz"))
	assert.Equal(t, "%2B", urlEncodeQueryParameter("+"))
}

func TestQueryParamsOverwriteKeepsOrder(t *testing.T) {
	params := parseQueryString("a=1&b=2&c=3")
	params.overwrite("b", "changed")
	params.overwrite("d", "4")
	assert.Equal(t, "a=1&b=changed&c=3&d=4", params.encode())
}

func TestQueryParamsClone(t *testing.T) {
	params := parseQueryString("a=1")
	clone := params.clone()
	clone.overwrite("a", "2")
	clone.overwrite("b", "3")
	assert.Equal(t, "a=1", params.encode())
	assert.Equal(t, "a=2&b=3", clone.encode())
}

func TestParseQueryStringEmpty(t *testing.T) {
	assert.Equal(t, "", parseQueryString("").encode())
	assert.Equal(t, "a=", parseQueryString("?a=").encode())
}
