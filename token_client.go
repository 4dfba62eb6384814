package oauthfilter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// AuthType selects where the client credentials are placed on token endpoint
// requests.
type AuthType string

const (
	// AuthTypeURLEncodedBody sends client_id and client_secret in the
	// form-encoded request body. This is the default.
	AuthTypeURLEncodedBody AuthType = "url_encoded_body"
	// AuthTypeBasicAuth sends the credentials as an HTTP Basic
	// Authorization header.
	AuthTypeBasicAuth AuthType = "basic_auth"
)

// TokenResponse represents the response from the token endpoint.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// TokenClient performs the two token endpoint exchanges of the authorization
// code grant. Both calls block until the identity provider answers or the
// request context is canceled.
type TokenClient interface {
	// GetAccessToken exchanges an authorization code for tokens.
	GetAccessToken(ctx context.Context, code, redirectURI string) (*TokenResponse, error)
	// RefreshAccessToken exchanges a refresh token for fresh tokens.
	RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// RetryPolicy bounds retries of failed token endpoint requests. Requests are
// retried on connection failures and 5xx responses.
type RetryPolicy struct {
	// NumRetries is the number of retries after the initial attempt.
	NumRetries int `yaml:"numRetries" json:"numRetries"`
	// Backoff is the pause between attempts.
	Backoff time.Duration `yaml:"backoff" json:"backoff"`
}

// httpTokenClient is the default TokenClient speaking RFC 6749 over a tuned
// HTTP client, rate limited so a misbehaving upstream cannot stampede the
// identity provider.
type httpTokenClient struct {
	endpoint         string
	clientID         string
	secrets          SecretReader
	authType         AuthType
	httpClient       *http.Client
	limiter          *rate.Limiter
	retryPolicy      RetryPolicy
	defaultExpiresIn int64
	logger           *Logger
}

func newHTTPTokenClient(endpoint, clientID string, secrets SecretReader, authType AuthType,
	httpClient *http.Client, limiter *rate.Limiter, retryPolicy RetryPolicy,
	defaultExpiresIn int64, logger *Logger) *httpTokenClient {
	if httpClient == nil {
		httpClient = CreateTokenHTTPClient()
	}
	return &httpTokenClient{
		endpoint:         endpoint,
		clientID:         clientID,
		secrets:          secrets,
		authType:         authType,
		httpClient:       httpClient,
		limiter:          limiter,
		retryPolicy:      retryPolicy,
		defaultExpiresIn: defaultExpiresIn,
		logger:           logger,
	}
}

func (c *httpTokenClient) GetAccessToken(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	return c.exchange(ctx, data)
}

func (c *httpTokenClient) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	return c.exchange(ctx, data)
}

// exchange posts the form to the token endpoint with the configured
// credential placement and decodes the response. Connection failures and 5xx
// answers are retried per the retry policy; 4xx answers are terminal.
func (c *httpTokenClient) exchange(ctx context.Context, data url.Values) (*TokenResponse, error) {
	if c.limiter != nil && !c.limiter.Allow() {
		return nil, fmt.Errorf("token endpoint rate limit exceeded")
	}

	clientSecret := c.secrets.ClientSecret()
	if c.authType == AuthTypeURLEncodedBody {
		data.Set("client_id", c.clientID)
		data.Set("client_secret", clientSecret)
	}
	body := data.Encode()

	attempts := c.retryPolicy.NumRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.logger.Debugf("Retrying token endpoint request, attempt %d of %d", attempt+1, attempts)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryPolicy.Backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create token request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")
		if c.authType == AuthTypeBasicAuth {
			req.SetBasicAuth(c.clientID, clientSecret)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("token endpoint request failed: %w", err)
			continue
		}

		tokenResponse, retryable, err := c.decodeResponse(resp)
		if err != nil {
			lastErr = err
			if retryable {
				continue
			}
			return nil, err
		}
		return tokenResponse, nil
	}
	return nil, lastErr
}

// decodeResponse consumes one token endpoint response. The second return
// value reports whether the failure may be retried.
func (c *httpTokenClient) decodeResponse(resp *http.Response) (*TokenResponse, bool, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(raw))
		return nil, resp.StatusCode >= http.StatusInternalServerError, err
	}

	var tokenResponse TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return nil, false, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResponse.AccessToken == "" {
		return nil, false, fmt.Errorf("token endpoint response is missing access_token")
	}
	if tokenResponse.ExpiresIn <= 0 {
		if c.defaultExpiresIn <= 0 {
			return nil, false, fmt.Errorf("token endpoint response is missing expires_in and no default is configured")
		}
		tokenResponse.ExpiresIn = c.defaultExpiresIn
	}
	return &tokenResponse, false, nil
}
