package oauthfilter

import (
	"net"
	"net/http"
	"time"
)

// HTTPClientConfig provides configuration for creating HTTP clients.
type HTTPClientConfig struct {
	// Timeout for the entire request
	Timeout time.Duration
	// Connection settings
	DialTimeout           time.Duration
	KeepAlive             time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration
	ExpectContinueTimeout time.Duration
	IdleConnTimeout       time.Duration
	// Connection pool settings
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	// Feature flags
	ForceHTTP2 bool
}

// DefaultHTTPClientConfig returns the default configuration for general use.
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:               5 * time.Second,
		DialTimeout:           5 * time.Second,
		KeepAlive:             15 * time.Second,
		TLSHandshakeTimeout:   2 * time.Second,
		ResponseHeaderTimeout: 3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       5 * time.Second,
		MaxIdleConns:          2,
		MaxIdleConnsPerHost:   1,
		MaxConnsPerHost:       2,
		ForceHTTP2:            true,
	}
}

// TokenHTTPClientConfig returns configuration for token endpoint operations.
// Token exchanges are short bursts against a single host, so a slightly
// longer total timeout covers slow identity providers.
func TokenHTTPClientConfig() HTTPClientConfig {
	config := DefaultHTTPClientConfig()
	config.Timeout = 10 * time.Second
	config.ResponseHeaderTimeout = 8 * time.Second
	return config
}

// CreateHTTPClient creates an HTTP client with the given configuration.
func CreateHTTPClient(config HTTPClientConfig) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		ExpectContinueTimeout: config.ExpectContinueTimeout,
		IdleConnTimeout:       config.IdleConnTimeout,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		ForceAttemptHTTP2:     config.ForceHTTP2,
	}
	return &http.Client{
		Timeout:   config.Timeout,
		Transport: transport,
	}
}

// CreateDefaultHTTPClient creates an HTTP client with default settings.
func CreateDefaultHTTPClient() *http.Client {
	return CreateHTTPClient(DefaultHTTPClientConfig())
}

// CreateTokenHTTPClient creates an HTTP client tuned for token exchanges.
func CreateTokenHTTPClient() *http.Client {
	return CreateHTTPClient(TokenHTTPClientConfig())
}
