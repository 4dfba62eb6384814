package oauthfilter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testHmacSecret   = "test-hmac-secret"
	testClientSecret = "test-client-secret"
	testClientID     = "test-client"
)

// testNow is the fixed wall clock all middleware tests run at.
var testNow = time.Unix(1700000000, 0)

// fixedRandom yields a deterministic nonce source.
type fixedRandom struct{ value uint64 }

func (r fixedRandom) Random() uint64 { return r.value }

// stubTokenClient answers token exchanges from canned values.
type stubTokenClient struct {
	response     *TokenResponse
	err          error
	lastCode     string
	lastRedirect string
	lastRefresh  string
	getCalls     int
	refreshCalls int
}

func (s *stubTokenClient) GetAccessToken(_ context.Context, code, redirectURI string) (*TokenResponse, error) {
	s.getCalls++
	s.lastCode = code
	s.lastRedirect = redirectURI
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func (s *stubTokenClient) RefreshAccessToken(_ context.Context, refreshToken string) (*TokenResponse, error) {
	s.refreshCalls++
	s.lastRefresh = refreshToken
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

// newTestConfig returns a minimal valid configuration for middleware tests.
func newTestConfig() *Config {
	config := CreateConfig()
	config.TokenEndpoint = "https://idp.example.com/token"
	config.AuthorizationEndpoint = "https://idp.example.com/authorize"
	config.ClientID = testClientID
	config.ClientSecret = testClientSecret
	config.HmacSecret = testHmacSecret
	config.RedirectURI = "{{.Scheme}}://{{.Host}}/_oauth"
	config.RedirectPathMatcher = PathMatcherConfig{Exact: "/_oauth"}
	config.SignoutPathMatcher = PathMatcherConfig{Exact: "/signout"}
	config.LogLevel = "none"
	return config
}

// newTestFilter builds a filter over the given next handler with a stubbed
// token client, deterministic randomness and a frozen clock.
func newTestFilter(t *testing.T, config *Config, next http.Handler, tokenClient TokenClient) *OAuthFilter {
	t.Helper()
	if next == nil {
		next = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}
	if config.Random == nil {
		config.Random = fixedRandom{value: 0x4355a46b19d348dc}
	}
	f, err := New(context.Background(), next, config, "test")
	require.NoError(t, err)
	f.now = func() time.Time { return testNow }
	if tokenClient != nil {
		f.tokenClient = tokenClient
	}
	return f
}

// testCsrfToken returns a CSRF token signed with the test secret.
func testCsrfToken() string {
	return generateCsrfToken(testHmacSecret, fixedRandom{value: 0x4355a46b19d348dc})
}

// sessionCookieHeader builds the Cookie header value of a full session.
func sessionCookieHeader(names CookieNames, domain, expires, accessToken, idToken, refreshToken string) string {
	hmac := encodeSessionHmac(testHmacSecret, domain, expires, accessToken, idToken, refreshToken)
	cookie := names.OauthHMAC + "=" + hmac + "; " + names.OauthExpires + "=" + expires
	if accessToken != "" {
		cookie += "; " + names.BearerToken + "=" + accessToken
	}
	if idToken != "" {
		cookie += "; " + names.IDToken + "=" + idToken
	}
	if refreshToken != "" {
		cookie += "; " + names.RefreshToken + "=" + refreshToken
	}
	return cookie
}

// futureExpires returns a session deadline n seconds past the frozen clock.
func futureExpires(n int64) string {
	return strconv.FormatInt(testNow.Unix()+n, 10)
}

// makeJWT assembles an unsigned JWT carrying the given claims.
func makeJWT(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	return fmt.Sprintf("%s.%s.%s", header,
		base64.RawURLEncoding.EncodeToString(payload),
		base64.RawURLEncoding.EncodeToString([]byte("signature")))
}
