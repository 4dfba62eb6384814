package oauthfilter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// compiledConfig is the immutable, per-instance form of Config shared by
// reference across all concurrent requests. Nothing in here is mutated after
// New returns.
type compiledConfig struct {
	tokenEndpoint                string
	authorizationEndpointURL     *url.URL
	authQueryParams              *queryParams
	clientID                     string
	redirectURITemplate          *template.Template
	redirectMatcher              *PathMatcher
	signoutMatcher               *PathMatcher
	passThroughMatchers          []*HeaderMatcher
	denyRedirectMatchers         []*HeaderMatcher
	cookieNames                  CookieNames
	cookieDomain                 string
	cookieConfigs                CookieConfigs
	authType                     AuthType
	defaultExpiresIn             int64
	defaultRefreshTokenExpiresIn int64
	forwardBearerToken           bool
	preserveAuthorizationHeader  bool
	useRefreshToken              bool
	disableIDTokenSetCookie      bool
	disableAccessTokenSetCookie  bool
	disableRefreshTokenSetCookie bool
	encodedResourceParams        string
	secrets                      SecretReader
}

// OAuthFilter is the middleware. Per-request mutable state lives on the
// stack of ServeHTTP; the filter itself carries only shared, read-only
// collaborators, so no locking is needed on the request path.
type OAuthFilter struct {
	next        http.Handler
	name        string
	instanceID  string
	config      *compiledConfig
	tokenClient TokenClient
	logger      *Logger
	stats       *FilterStats
	random      RandomGenerator
	now         func() time.Time
}

// New creates an OAuthFilter middleware instance wrapping next. The context
// is accepted for lifecycle parity with other middlewares; the filter starts
// no background work. Construction fails on any configuration error so a
// half-configured filter never serves traffic.
func New(ctx context.Context, next http.Handler, config *Config, name string) (*OAuthFilter, error) {
	if config == nil {
		config = CreateConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := NewLogger(config.LogLevel)

	authorizationEndpointURL, err := url.Parse(config.AuthorizationEndpoint)
	if err != nil || authorizationEndpointURL.Host == "" ||
		(authorizationEndpointURL.Scheme != "http" && authorizationEndpointURL.Scheme != "https") {
		return nil, fmt.Errorf("invalid authorization endpoint URL %q", config.AuthorizationEndpoint)
	}

	redirectMatcher, err := newPathMatcher(config.RedirectPathMatcher)
	if err != nil {
		return nil, fmt.Errorf("redirectPathMatcher: %w", err)
	}
	signoutMatcher, err := newPathMatcher(config.SignoutPathMatcher)
	if err != nil {
		return nil, fmt.Errorf("signoutPathMatcher: %w", err)
	}
	passThroughMatchers, err := newHeaderMatchers(config.PassThroughMatchers)
	if err != nil {
		return nil, fmt.Errorf("passThroughMatchers: %w", err)
	}
	denyRedirectMatchers, err := newHeaderMatchers(config.DenyRedirectMatchers)
	if err != nil {
		return nil, fmt.Errorf("denyRedirectMatchers: %w", err)
	}

	redirectURITemplate, err := template.New("redirect_uri").Parse(config.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirectURI template %q: %w", config.RedirectURI, err)
	}

	cookieNames := config.CookieNames
	cookieNames.applyDefaults()

	secrets := config.SecretReader
	if secrets == nil {
		secrets = StaticSecrets{Hmac: config.HmacSecret, Client: config.ClientSecret}
	}

	compiled := &compiledConfig{
		tokenEndpoint:            config.TokenEndpoint,
		authorizationEndpointURL: authorizationEndpointURL,
		authQueryParams:          buildAuthorizationQueryParams(authorizationEndpointURL, config),
		clientID:                 config.ClientID,
		redirectURITemplate:      redirectURITemplate,
		redirectMatcher:          redirectMatcher,
		signoutMatcher:           signoutMatcher,
		passThroughMatchers:      passThroughMatchers,
		denyRedirectMatchers:     denyRedirectMatchers,
		cookieNames:              cookieNames,
		cookieDomain:             config.CookieDomain,
		cookieConfigs:            config.CookieConfigs,
		authType: func() AuthType {
			if config.AuthType == "" {
				return AuthTypeURLEncodedBody
			}
			return config.AuthType
		}(),
		defaultExpiresIn:             config.DefaultExpiresIn,
		defaultRefreshTokenExpiresIn: config.DefaultRefreshTokenExpiresIn,
		forwardBearerToken:           config.ForwardBearerToken,
		preserveAuthorizationHeader:  config.PreserveAuthorizationHeader,
		useRefreshToken:              config.useRefreshTokenEnabled(),
		disableIDTokenSetCookie:      config.DisableIDTokenSetCookie,
		disableAccessTokenSetCookie:  config.DisableAccessTokenSetCookie,
		disableRefreshTokenSetCookie: config.DisableRefreshTokenSetCookie,
		encodedResourceParams:        encodeResourceList(config.Resources),
		secrets:                      secrets,
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimit)
	}

	random := config.Random
	if random == nil {
		random = cryptoRandomGenerator{}
	}

	f := &OAuthFilter{
		next:       next,
		name:       name,
		instanceID: uuid.NewString(),
		config:     compiled,
		tokenClient: newHTTPTokenClient(config.TokenEndpoint, config.ClientID, secrets,
			compiled.authType, config.HTTPClient, limiter, config.retryPolicy(),
			config.DefaultExpiresIn, logger),
		logger: logger,
		stats:  &FilterStats{},
		random: random,
		now:    time.Now,
	}

	logger.Debugf("oauth filter %s (%s) configured: authorization endpoint %s, callback matcher %+v",
		f.name, f.instanceID, config.AuthorizationEndpoint, config.RedirectPathMatcher)

	return f, nil
}

// Stats exposes the filter counters, mainly for scraping and tests.
func (f *OAuthFilter) Stats() *FilterStats { return f.stats }

// buildAuthorizationQueryParams pre-parses the query parameters of the
// authorization endpoint and merges in the parameters every redirect carries.
// The scope list is percent-encoded as a single value up front; state and
// redirect_uri are overwritten per request.
func buildAuthorizationQueryParams(endpointURL *url.URL, config *Config) *queryParams {
	params := parseQueryString(endpointURL.RawQuery)
	params.overwrite("client_id", config.ClientID)
	params.overwrite("response_type", "code")

	scopes := config.AuthScopes
	if len(scopes) == 0 {
		scopes = []string{defaultAuthScope}
	}
	params.overwrite("scope", urlEncodeQueryParameter(strings.Join(scopes, " ")))
	return params
}

// encodeResourceList renders the configured resources as a pre-encoded query
// suffix appended verbatim to the authorization redirect.
func encodeResourceList(resources []string) string {
	var b strings.Builder
	for _, resource := range resources {
		b.WriteString("&resource=")
		b.WriteString(urlEncodeQueryParameter(resource))
	}
	return b.String()
}
