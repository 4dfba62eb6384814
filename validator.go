package oauthfilter

import (
	"net/http"
	"strconv"
	"time"
)

// CookieValidator checks whether a request carries a valid session: the five
// session cookies must bind together under the HMAC secret and the expiry
// deadline must lie in the future. The validator also answers whether an
// invalid session is still refreshable.
type CookieValidator struct {
	now          func() time.Time
	cookieNames  CookieNames
	cookieDomain string

	secret       string
	host         string
	hmac         string
	expires      string
	token        string
	idToken      string
	refreshToken string
}

// NewCookieValidator creates a validator bound to a cookie roster and an
// optional configured cookie domain. The clock defaults to time.Now.
func NewCookieValidator(now func() time.Time, cookieNames CookieNames, cookieDomain string) *CookieValidator {
	if now == nil {
		now = time.Now
	}
	return &CookieValidator{now: now, cookieNames: cookieNames, cookieDomain: cookieDomain}
}

// SetParams extracts the session cookies from the request and snapshots the
// HMAC secret for subsequent checks.
func (v *CookieValidator) SetParams(req *http.Request, secret string) {
	names := v.cookieNames
	cookies := parseCookies(req.Header, func(name string) bool {
		return name == names.OauthExpires || name == names.BearerToken ||
			name == names.OauthHMAC || name == names.IDToken ||
			name == names.RefreshToken
	})

	v.expires = cookies[names.OauthExpires]
	v.token = cookies[names.BearerToken]
	v.idToken = cookies[names.IDToken]
	v.refreshToken = cookies[names.RefreshToken]
	v.hmac = cookies[names.OauthHMAC]
	v.host = determineHost(req)
	v.secret = secret
}

// Token returns the access token extracted by SetParams.
func (v *CookieValidator) Token() string { return v.token }

// RefreshToken returns the refresh token extracted by SetParams.
func (v *CookieValidator) RefreshToken() string { return v.refreshToken }

// CanUpdateTokenByRefreshToken reports whether a refresh can be attempted.
// Only presence matters here: refresh is tried whenever validation fails but
// a refresh token cookie exists.
func (v *CookieValidator) CanUpdateTokenByRefreshToken() bool { return v.refreshToken != "" }

// hmacIsValid recomputes the session HMAC and compares it against the hmac
// cookie. Both the current and the legacy signature encodings are accepted,
// so sessions minted before the encoding switch keep validating.
func (v *CookieValidator) hmacIsValid() bool {
	domain := v.host
	if v.cookieDomain != "" {
		domain = v.cookieDomain
	}
	return encodeSessionHmac(v.secret, domain, v.expires, v.token, v.idToken, v.refreshToken) == v.hmac ||
		encodeSessionHmacLegacy(v.secret, domain, v.expires, v.token, v.idToken, v.refreshToken) == v.hmac
}

// timestampIsValid parses the expiry cookie as unsigned seconds since the
// epoch and checks it against the current time. Unparsable values are
// invalid.
func (v *CookieValidator) timestampIsValid() bool {
	expires, err := strconv.ParseUint(v.expires, 10, 64)
	if err != nil {
		return false
	}
	return time.Unix(int64(expires), 0).After(v.now())
}

// IsValid reports whether the extracted cookies form a currently valid
// session.
func (v *CookieValidator) IsValid() bool {
	return v.hmacIsValid() && v.timestampIsValid()
}
