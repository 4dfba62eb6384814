package oauthfilter

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	// defaultAuthScope is used when no auth scopes are configured.
	defaultAuthScope = "user"
	// defaultRefreshTokenExpiresInSeconds is the refresh token cookie
	// lifetime used when the token itself carries no exp claim: one week.
	defaultRefreshTokenExpiresInSeconds = 604800
	// csrfCookieExpiresInSeconds bounds how long a login attempt may take:
	// ten minutes.
	csrfCookieExpiresInSeconds = 600
)

// Config is the user-facing configuration of the filter. It is consumed once
// by New; the compiled form shared across requests is immutable.
type Config struct {
	// TokenEndpoint is the identity provider URL where authorization codes
	// and refresh tokens are exchanged.
	TokenEndpoint string `yaml:"tokenEndpoint" json:"tokenEndpoint"`
	// AuthorizationEndpoint is the identity provider URL the browser is
	// redirected to. It may carry pre-set query parameters.
	AuthorizationEndpoint string `yaml:"authorizationEndpoint" json:"authorizationEndpoint"`
	// ClientID identifies this client towards the identity provider.
	ClientID string `yaml:"clientID" json:"clientID"`
	// ClientSecret authenticates this client at the token endpoint. Ignored
	// when a SecretReader is supplied.
	ClientSecret string `yaml:"clientSecret" json:"clientSecret"`
	// HmacSecret signs session cookies and CSRF tokens. Ignored when a
	// SecretReader is supplied.
	HmacSecret string `yaml:"hmacSecret" json:"hmacSecret"`
	// RedirectURI is a template for the OAuth redirect_uri, evaluated per
	// request with {{.Scheme}}, {{.Host}} and {{.Path}}.
	RedirectURI string `yaml:"redirectURI" json:"redirectURI"`
	// RedirectPathMatcher recognizes the callback path the identity
	// provider redirects back to.
	RedirectPathMatcher PathMatcherConfig `yaml:"redirectPathMatcher" json:"redirectPathMatcher"`
	// SignoutPathMatcher recognizes the sign-out path.
	SignoutPathMatcher PathMatcherConfig `yaml:"signoutPathMatcher" json:"signoutPathMatcher"`
	// AuthScopes are the OAuth scopes requested on the authorization
	// redirect. Defaults to ["user"].
	AuthScopes []string `yaml:"authScopes" json:"authScopes"`
	// Resources are emitted as repeated resource query parameters on the
	// authorization redirect.
	Resources []string `yaml:"resources" json:"resources"`
	// PassThroughMatchers bypass the filter entirely when any of them
	// matches the request headers.
	PassThroughMatchers []HeaderMatcherConfig `yaml:"passThroughMatchers" json:"passThroughMatchers"`
	// DenyRedirectMatchers force a 401 instead of a redirect for
	// unauthenticated requests that cannot follow one.
	DenyRedirectMatchers []HeaderMatcherConfig `yaml:"denyRedirectMatchers" json:"denyRedirectMatchers"`
	// CookieNames overrides the default cookie roster.
	CookieNames CookieNames `yaml:"cookieNames" json:"cookieNames"`
	// CookieDomain, when set, is added as the domain attribute on every
	// emitted cookie and replaces the Host header in the session HMAC.
	CookieDomain string `yaml:"cookieDomain" json:"cookieDomain"`
	// CookieConfigs carries the per-role SameSite policies.
	CookieConfigs CookieConfigs `yaml:"cookieConfigs" json:"cookieConfigs"`
	// AuthType selects the credential placement at the token endpoint.
	AuthType AuthType `yaml:"authType" json:"authType"`
	// DefaultExpiresIn substitutes for a missing expires_in in token
	// endpoint responses. Zero means the provider value is required.
	DefaultExpiresIn int64 `yaml:"defaultExpiresIn" json:"defaultExpiresIn"`
	// DefaultRefreshTokenExpiresIn is the refresh token cookie lifetime
	// when the token carries no usable exp claim.
	DefaultRefreshTokenExpiresIn int64 `yaml:"defaultRefreshTokenExpiresIn" json:"defaultRefreshTokenExpiresIn"`
	// ForwardBearerToken injects "Authorization: Bearer ..." from the
	// validated session before forwarding upstream.
	ForwardBearerToken bool `yaml:"forwardBearerToken" json:"forwardBearerToken"`
	// PreserveAuthorizationHeader keeps inbound Authorization headers
	// instead of stripping them.
	PreserveAuthorizationHeader bool `yaml:"preserveAuthorizationHeader" json:"preserveAuthorizationHeader"`
	// UseRefreshToken enables the silent refresh flow. Defaults to true.
	UseRefreshToken *bool `yaml:"useRefreshToken" json:"useRefreshToken"`
	// DisableIDTokenSetCookie omits the ID token from emitted cookies and
	// from HMAC computation at signing time.
	DisableIDTokenSetCookie bool `yaml:"disableIDTokenSetCookie" json:"disableIDTokenSetCookie"`
	// DisableAccessTokenSetCookie omits the access token likewise.
	DisableAccessTokenSetCookie bool `yaml:"disableAccessTokenSetCookie" json:"disableAccessTokenSetCookie"`
	// DisableRefreshTokenSetCookie omits the refresh token likewise.
	DisableRefreshTokenSetCookie bool `yaml:"disableRefreshTokenSetCookie" json:"disableRefreshTokenSetCookie"`
	// RetryPolicy bounds retries of token endpoint requests.
	RetryPolicy *RetryPolicy `yaml:"retryPolicy" json:"retryPolicy"`
	// RateLimit caps token endpoint requests per second. Zero disables the
	// limiter.
	RateLimit int `yaml:"rateLimit" json:"rateLimit"`
	// LogLevel is one of debug, info, error, none.
	LogLevel string `yaml:"logLevel" json:"logLevel"`

	// HTTPClient overrides the token endpoint HTTP client. Mostly for
	// tests.
	HTTPClient *http.Client `yaml:"-" json:"-"`
	// SecretReader supplies rotating HMAC and client secrets. When nil, a
	// static reader over HmacSecret and ClientSecret is used.
	SecretReader SecretReader `yaml:"-" json:"-"`
	// Random supplies CSRF nonce randomness. When nil, crypto/rand is
	// used.
	Random RandomGenerator `yaml:"-" json:"-"`
}

// CreateConfig returns a Config populated with defaults.
func CreateConfig() *Config {
	return &Config{
		AuthType:                     AuthTypeURLEncodedBody,
		DefaultRefreshTokenExpiresIn: defaultRefreshTokenExpiresInSeconds,
		LogLevel:                     "info",
	}
}

// Validate checks the configuration for construction-time errors. The filter
// is never instantiated from an invalid configuration.
func (c *Config) Validate() error {
	if c.TokenEndpoint == "" {
		return fmt.Errorf("tokenEndpoint is required")
	}
	if u, err := url.Parse(c.TokenEndpoint); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid token endpoint URL %q", c.TokenEndpoint)
	}
	if c.AuthorizationEndpoint == "" {
		return fmt.Errorf("authorizationEndpoint is required")
	}
	if c.ClientID == "" {
		return fmt.Errorf("clientID is required")
	}
	if c.SecretReader == nil {
		if c.ClientSecret == "" {
			return fmt.Errorf("clientSecret is required")
		}
		if c.HmacSecret == "" {
			return fmt.Errorf("hmacSecret is required")
		}
	}
	if c.RedirectURI == "" {
		return fmt.Errorf("redirectURI is required")
	}
	switch c.AuthType {
	case AuthTypeURLEncodedBody, AuthTypeBasicAuth, "":
	default:
		return fmt.Errorf("invalid authType %q", string(c.AuthType))
	}
	if err := c.CookieConfigs.validate(); err != nil {
		return err
	}
	if c.DefaultExpiresIn < 0 || c.DefaultRefreshTokenExpiresIn < 0 {
		return fmt.Errorf("token lifetimes must not be negative")
	}
	return nil
}

// useRefreshTokenEnabled resolves the default-true tri-state flag.
func (c *Config) useRefreshTokenEnabled() bool {
	if c.UseRefreshToken == nil {
		return true
	}
	return *c.UseRefreshToken
}

// retryPolicy returns the configured policy or a zero policy (no retries).
func (c *Config) retryPolicy() RetryPolicy {
	if c.RetryPolicy == nil {
		return RetryPolicy{}
	}
	p := *c.RetryPolicy
	if p.Backoff <= 0 {
		p.Backoff = 250 * time.Millisecond
	}
	return p
}
