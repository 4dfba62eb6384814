package oauthfilter

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	cookieDeleteFormatString       = "%s=deleted; path=/; expires=Thu, 01 Jan 1970 00:00:00 GMT"
	cookieTailHttpOnlyFormatString = ";path=/;Max-Age=%s;secure;HttpOnly%s"
	cookieDomainFormatString       = ";domain=%s"
)

// SameSite is the serialized form of a cookie SameSite policy. The zero value
// (disabled) omits the attribute entirely.
type SameSite string

const (
	SameSiteDisabled SameSite = ""
	SameSiteLax      SameSite = "lax"
	SameSiteStrict   SameSite = "strict"
	SameSiteNone     SameSite = "none"
)

// attributeString returns the ";SameSite=..." cookie attribute, or the empty
// string when the policy is disabled.
func (s SameSite) attributeString() string {
	switch s {
	case SameSiteLax:
		return ";SameSite=Lax"
	case SameSiteStrict:
		return ";SameSite=Strict"
	case SameSiteNone:
		return ";SameSite=None"
	default:
		return ""
	}
}

func (s SameSite) valid() bool {
	switch s {
	case SameSiteDisabled, SameSiteLax, SameSiteStrict, SameSiteNone:
		return true
	}
	return false
}

// CookieNames maps the semantic cookie roles onto the concrete cookie names
// sent to the user agent. All five session cookies plus the CSRF nonce cookie
// form the roster.
type CookieNames struct {
	BearerToken  string `yaml:"bearerToken" json:"bearerToken"`
	OauthHMAC    string `yaml:"oauthHmac" json:"oauthHmac"`
	OauthExpires string `yaml:"oauthExpires" json:"oauthExpires"`
	IDToken      string `yaml:"idToken" json:"idToken"`
	RefreshToken string `yaml:"refreshToken" json:"refreshToken"`
	OauthNonce   string `yaml:"oauthNonce" json:"oauthNonce"`
}

// defaultCookieNames returns the roster used when a name is left unset.
func defaultCookieNames() CookieNames {
	return CookieNames{
		BearerToken:  "BearerToken",
		OauthHMAC:    "OauthHMAC",
		OauthExpires: "OauthExpires",
		IDToken:      "IdToken",
		RefreshToken: "RefreshToken",
		OauthNonce:   "OauthNonce",
	}
}

// applyDefaults fills empty roster slots with the default names.
func (c *CookieNames) applyDefaults() {
	defaults := defaultCookieNames()
	if c.BearerToken == "" {
		c.BearerToken = defaults.BearerToken
	}
	if c.OauthHMAC == "" {
		c.OauthHMAC = defaults.OauthHMAC
	}
	if c.OauthExpires == "" {
		c.OauthExpires = defaults.OauthExpires
	}
	if c.IDToken == "" {
		c.IDToken = defaults.IDToken
	}
	if c.RefreshToken == "" {
		c.RefreshToken = defaults.RefreshToken
	}
	if c.OauthNonce == "" {
		c.OauthNonce = defaults.OauthNonce
	}
}

// sessionNames returns the five authority-carrying cookie names, excluding
// the CSRF nonce.
func (c CookieNames) sessionNames() []string {
	return []string{c.OauthHMAC, c.OauthExpires, c.BearerToken, c.IDToken, c.RefreshToken}
}

// cookieRole identifies one entry of the cookie roster. The role selects the
// SameSite policy through sameSiteFor; the Max-Age of each cookie is supplied
// by the caller that emits it.
type cookieRole int

const (
	roleBearerToken cookieRole = iota
	roleOauthHMAC
	roleOauthExpires
	roleIDToken
	roleRefreshToken
	roleOauthNonce
)

// CookieSettings carries the per-role cookie attributes.
type CookieSettings struct {
	SameSite SameSite `yaml:"sameSite" json:"sameSite"`
}

// CookieConfigs holds the per-role cookie settings. Unset roles keep SameSite
// disabled.
type CookieConfigs struct {
	BearerTokenCookie  CookieSettings `yaml:"bearerTokenCookie" json:"bearerTokenCookie"`
	OauthHMACCookie    CookieSettings `yaml:"oauthHmacCookie" json:"oauthHmacCookie"`
	OauthExpiresCookie CookieSettings `yaml:"oauthExpiresCookie" json:"oauthExpiresCookie"`
	IDTokenCookie      CookieSettings `yaml:"idTokenCookie" json:"idTokenCookie"`
	RefreshTokenCookie CookieSettings `yaml:"refreshTokenCookie" json:"refreshTokenCookie"`
	OauthNonceCookie   CookieSettings `yaml:"oauthNonceCookie" json:"oauthNonceCookie"`
}

// sameSiteFor is the role table. Every role, the nonce included, reads its
// own setting.
func (c CookieConfigs) sameSiteFor(role cookieRole) SameSite {
	switch role {
	case roleBearerToken:
		return c.BearerTokenCookie.SameSite
	case roleOauthHMAC:
		return c.OauthHMACCookie.SameSite
	case roleOauthExpires:
		return c.OauthExpiresCookie.SameSite
	case roleIDToken:
		return c.IDTokenCookie.SameSite
	case roleRefreshToken:
		return c.RefreshTokenCookie.SameSite
	case roleOauthNonce:
		return c.OauthNonceCookie.SameSite
	}
	return SameSiteDisabled
}

func (c CookieConfigs) validate() error {
	for _, s := range []SameSite{
		c.BearerTokenCookie.SameSite, c.OauthHMACCookie.SameSite,
		c.OauthExpiresCookie.SameSite, c.IDTokenCookie.SameSite,
		c.RefreshTokenCookie.SameSite, c.OauthNonceCookie.SameSite,
	} {
		if !s.valid() {
			return fmt.Errorf("invalid sameSite value %q", string(s))
		}
	}
	return nil
}

// buildCookieTail assembles the shared attribute suffix for a session cookie:
// ;domain=...;path=/;Max-Age=...;secure;HttpOnly;SameSite=... with the domain
// attribute only present when a cookie domain is configured.
func buildCookieTail(maxAge string, sameSite SameSite, cookieDomain string) string {
	tail := fmt.Sprintf(cookieTailHttpOnlyFormatString, maxAge, sameSite.attributeString())
	if cookieDomain != "" {
		tail = fmt.Sprintf(cookieDomainFormatString, cookieDomain) + tail
	}
	return tail
}

// deleteCookieValue returns the Set-Cookie value that removes a cookie from
// the user agent.
func deleteCookieValue(name, cookieDomain string) string {
	value := fmt.Sprintf(cookieDeleteFormatString, name)
	if cookieDomain != "" {
		value += fmt.Sprintf(cookieDomainFormatString, cookieDomain)
	}
	return value
}

// parseCookies parses the request Cookie headers into a name to value
// mapping, restricted by a predicate on the cookie name. A nil predicate
// keeps every cookie. Later duplicates win, matching user-agent behavior of
// sending the most specific cookie last.
func parseCookies(headers http.Header, keep func(name string) bool) map[string]string {
	cookies := make(map[string]string)
	for _, line := range headers.Values("Cookie") {
		for _, part := range strings.Split(line, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			name, value, found := strings.Cut(part, "=")
			if !found {
				continue
			}
			if keep == nil || keep(name) {
				cookies[name] = value
			}
		}
	}
	return cookies
}

// orderedCookies preserves the order cookies appeared on the request, which
// keeps the rewritten Cookie header stable when a refresh flow updates the
// session in place.
type orderedCookies struct {
	names  []string
	values map[string]string
}

// parseCookiesOrdered parses all request cookies keeping first-seen order.
func parseCookiesOrdered(headers http.Header) *orderedCookies {
	c := &orderedCookies{values: make(map[string]string)}
	for _, line := range headers.Values("Cookie") {
		for _, part := range strings.Split(line, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			name, value, found := strings.Cut(part, "=")
			if !found {
				continue
			}
			c.insertOrAssign(name, value)
		}
	}
	return c
}

// insertOrAssign updates an existing cookie in place or appends a new one.
func (c *orderedCookies) insertOrAssign(name, value string) {
	if _, exists := c.values[name]; !exists {
		c.names = append(c.names, name)
	}
	c.values[name] = value
}

// serialize renders the cookies back into a single Cookie header value.
func (c *orderedCookies) serialize() string {
	pairs := make([]string, 0, len(c.names))
	for _, name := range c.names {
		pairs = append(pairs, name+"="+c.values[name])
	}
	return strings.Join(pairs, "; ")
}
