// Package oauthfilter provides OAuth 2.0 authentication middleware.
// This file contains URL-related helpers for building and processing the URLs
// used in the authorization flow.
package oauthfilter

import (
	"net/http"
	"strings"
)

// determineScheme determines the URL scheme of the incoming request.
// It checks the X-Forwarded-Proto header first, then TLS presence.
func determineScheme(req *http.Request) string {
	if scheme := req.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	if req.TLS != nil {
		return "https"
	}
	return "http"
}

// determineHost determines the host for building redirect URLs.
// It checks the X-Forwarded-Host header first, then falls back to req.Host.
func determineHost(req *http.Request) string {
	if host := req.Header.Get("X-Forwarded-Host"); host != "" {
		return host
	}
	return req.Host
}

// redirectScheme returns the scheme used when reconstructing the original
// request URL for the authorization redirect. OAuth requires https, so that
// is the default; a client that explicitly speaks plain http keeps http.
func redirectScheme(req *http.Request) string {
	if determineScheme(req) == "http" {
		return "http"
	}
	return "https"
}

// urlEncodeQueryParameter percent-encodes a query parameter value, leaving
// only RFC 3986 unreserved characters intact. Spaces become %20, never '+'.
func urlEncodeQueryParameter(value string) string {
	const upperhex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(value))
	for i := 0; i < len(value); i++ {
		c := value[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '.' || c == '_' || c == '~' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0xf])
	}
	return b.String()
}

// queryParams is an ordered set of pre-encoded query parameters. Values are
// stored exactly as they will appear on the wire; callers encode before
// inserting. Overwriting preserves the position of an existing key so the
// serialized query stays stable.
type queryParams struct {
	keys   []string
	values map[string]string
}

// parseQueryString splits a raw query string into ordered pre-encoded
// parameters without decoding anything. A leading '?' is tolerated.
func parseQueryString(query string) *queryParams {
	q := &queryParams{values: make(map[string]string)}
	query = strings.TrimPrefix(query, "?")
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		q.overwrite(key, value)
	}
	return q
}

// overwrite sets a pre-encoded value, replacing any existing one.
func (q *queryParams) overwrite(key, value string) {
	if _, exists := q.values[key]; !exists {
		q.keys = append(q.keys, key)
	}
	q.values[key] = value
}

// clone returns an independent copy; the shared pre-built authorization
// parameters are cloned per request before state and redirect_uri are
// overwritten onto them.
func (q *queryParams) clone() *queryParams {
	c := &queryParams{
		keys:   append([]string(nil), q.keys...),
		values: make(map[string]string, len(q.values)),
	}
	for k, v := range q.values {
		c.values[k] = v
	}
	return c
}

// encode serializes the parameters in insertion order.
func (q *queryParams) encode() string {
	pairs := make([]string, 0, len(q.keys))
	for _, key := range q.keys {
		pairs = append(pairs, key+"="+q.values[key])
	}
	return strings.Join(pairs, "&")
}
