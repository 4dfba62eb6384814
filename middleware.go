// Package oauthfilter provides OAuth 2.0 authentication middleware.
// This file contains the per-request decision ladder and the callback,
// refresh, redirect and sign-out flows.
package oauthfilter

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const unauthorizedBodyMessage = "OAuth flow failed."

// flowState is the mutable state of a single request's walk through the
// decision ladder. It lives on the stack of ServeHTTP; the filter struct is
// shared and never carries per-request data.
type flowState struct {
	host                  string
	accessToken           string
	idToken               string
	refreshToken          string
	expiresIn             string
	newExpires            string
	expiresIDTokenIn      string
	expiresRefreshTokenIn string
	originalRequestURL    string
	authCode              string
}

// callbackValidationResult carries the outcome of validating an OAuth
// callback request. The string fields are empty unless valid.
type callbackValidationResult struct {
	valid              bool
	authCode           string
	originalRequestURL string
}

// ServeHTTP walks the fixed decision ladder; each rung is terminal:
//  1. a pass-through header matches
//  2. the user is signing out
//  3. the session is valid (including the callback race)
//  4. the session can be refreshed silently
//  5. the user is redirected to the authorization endpoint
//  6. the request is the OAuth callback
func (f *OAuthFilter) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	// Pass-through must run before the Authorization header is sanitized,
	// otherwise an upstream-trusted header would be altered or removed.
	if anyHeaderMatches(f.config.passThroughMatchers, req.Header) {
		f.stats.oauthPassthrough.Add(1)
		f.next.ServeHTTP(rw, req)
		return
	}

	// Sanitize the Authorization header, since its content cannot be
	// validated here. With token forwarding enabled it is re-set from the
	// HMAC-bound cookie before the request goes upstream.
	if !f.config.preserveAuthorizationHeader {
		req.Header.Del("Authorization")
	}

	flow := &flowState{host: determineHost(req)}
	path := req.URL.Path

	if f.config.signoutMatcher.Match(path) {
		f.signOut(rw, req, flow)
		return
	}

	validator := NewCookieValidator(f.now, f.config.cookieNames, f.config.cookieDomain)
	if f.canSkipOAuth(validator, req) {
		if f.config.redirectMatcher.Match(path) {
			f.handleCallbackRace(rw, req)
			return
		}
		f.next.ServeHTTP(rw, req)
		return
	}

	if !f.config.redirectMatcher.Match(path) {
		// Check if the access token can be updated via a refresh token.
		if f.config.useRefreshToken && validator.CanUpdateTokenByRefreshToken() {
			f.logger.Debug("Trying to update the access token using the refresh token")
			f.refreshFlow(rw, req, flow, validator.RefreshToken())
			return
		}

		if f.canRedirectToAuthServer(req) {
			f.logger.Debugf("redirecting to authorization server for %s", path)
			f.redirectToAuthServer(rw, req, flow)
		} else {
			f.logger.Debugf("unauthorized, redirecting to authorization server is not allowed for %s", path)
			f.sendUnauthorizedResponse(rw)
		}
		return
	}

	// This request is on the callback path and carries no valid session: it
	// should come from the authorization server with the query parameters
	// required to fetch the access token.
	result := f.validateOAuthCallback(req)
	if !result.valid {
		f.sendUnauthorizedResponse(rw)
		return
	}
	flow.originalRequestURL = result.originalRequestURL
	flow.authCode = result.authCode

	tokenResponse, err := f.tokenClient.GetAccessToken(req.Context(), flow.authCode, f.formatRedirectURI(req, flow))
	if err != nil {
		f.logger.Errorf("failed to exchange authorization code for tokens: %v", err)
		f.sendUnauthorizedResponse(rw)
		return
	}

	f.updateTokens(flow, tokenResponse)
	f.finishGetAccessTokenFlow(rw, flow)
}

// canSkipOAuth reports whether the supplied HMAC cookie set forms a valid
// session. On success the OAuth details are applied as headers when token
// forwarding is enabled.
func (f *OAuthFilter) canSkipOAuth(validator *CookieValidator, req *http.Request) bool {
	validator.SetParams(req, f.config.secrets.HmacSecret())
	if validator.IsValid() {
		f.stats.oauthSuccess.Add(1)
		if f.config.forwardBearerToken && validator.Token() != "" {
			req.Header.Set("Authorization", "Bearer "+validator.Token())
		}
		f.logger.Debug("skipping oauth flow due to valid hmac cookie")
		return true
	}
	f.logger.Debug("can not skip oauth flow")
	return false
}

// handleCallbackRace serves a logged-in user who re-hit the callback path.
// A cached login at the authorization server sets cookies correctly but
// leaves future requests racing with a Location still pointing at the
// callback. The callback is still validated to keep CSRF discipline, and the
// URL recovered from state must not itself be the callback, or redirects
// would loop.
func (f *OAuthFilter) handleCallbackRace(rw http.ResponseWriter, req *http.Request) {
	result := f.validateOAuthCallback(req)
	if !result.valid {
		f.sendUnauthorizedResponse(rw)
		return
	}

	originalRequestURL, err := url.Parse(result.originalRequestURL)
	if err != nil || f.config.redirectMatcher.Match(originalRequestURL.Path) {
		f.logger.Debugf("state url %s matches the redirect path matcher", result.originalRequestURL)
		f.sendUnauthorizedResponse(rw)
		return
	}

	f.logger.Debugf("oauth.race_redirect: already logged in, redirecting to %s", result.originalRequestURL)
	rw.Header().Set("Location", result.originalRequestURL)
	rw.WriteHeader(http.StatusFound)
}

// canRedirectToAuthServer applies the deny-redirect matchers. Requests that
// cannot follow a redirect, such as XHR, get a 401 instead.
func (f *OAuthFilter) canRedirectToAuthServer(req *http.Request) bool {
	if anyHeaderMatches(f.config.denyRedirectMatchers, req.Header) {
		f.logger.Debug("redirect is denied for this request")
		return false
	}
	return true
}

// redirectToAuthServer builds the 302 towards the authorization endpoint:
// the original request URL and a signed CSRF token travel in the state
// parameter, and the CSRF token is double-submitted as the nonce cookie.
func (f *OAuthFilter) redirectToAuthServer(rw http.ResponseWriter, req *http.Request, flow *flowState) {
	// OAuth requires https; a downstream client explicitly speaking http
	// keeps http in its reconstructed URL.
	scheme := redirectScheme(req)
	originalURL := scheme + "://" + flow.host + req.URL.RequestURI()

	// The CSRF token cookie was named "nonce" because the token contains a
	// generated nonce; it guards the whole flow against CSRF.
	nonceName := f.config.cookieNames.OauthNonce
	nonceCookies := parseCookies(req.Header, func(name string) bool { return name == nonceName })
	csrfToken, csrfTokenCookieExists := nonceCookies[nonceName]

	if csrfTokenCookieExists {
		// Reuse only a token this filter signed.
		if !validateCsrfTokenHmac(f.config.secrets.HmacSecret(), csrfToken) {
			f.logger.Error("csrf token validation failed")
			f.sendUnauthorizedResponse(rw)
			return
		}
	} else {
		csrfToken = generateCsrfToken(f.config.secrets.HmacSecret(), f.random)
		// Ten minutes is enough time to complete the flow.
		expires := strconv.Itoa(csrfCookieExpiresInSeconds)
		tail := buildCookieTail(expires, f.config.cookieConfigs.sameSiteFor(roleOauthNonce), f.config.cookieDomain)
		rw.Header().Add("Set-Cookie", nonceName+"="+csrfToken+tail)
	}

	state := encodeState(originalURL, csrfToken)
	params := f.config.authQueryParams.clone()
	params.overwrite("state", state)
	params.overwrite("redirect_uri", urlEncodeQueryParameter(f.formatRedirectURI(req, flow)))

	endpoint := f.config.authorizationEndpointURL
	location := endpoint.Scheme + "://" + endpoint.Host + endpoint.Path +
		"?" + params.encode() + f.config.encodedResourceParams

	f.logger.Debugf("oauth.missing_credentials: redirecting to %s", location)
	rw.Header().Set("Location", location)
	rw.WriteHeader(http.StatusFound)
	f.stats.oauthUnauthorizedRq.Add(1)
}

// signOut clears the whole cookie roster and sends the user agent back to
// the site root.
func (f *OAuthFilter) signOut(rw http.ResponseWriter, req *http.Request, flow *flowState) {
	names := f.config.cookieNames
	for _, name := range append(names.sessionNames(), names.OauthNonce) {
		rw.Header().Add("Set-Cookie", deleteCookieValue(name, f.config.cookieDomain))
	}
	location := determineScheme(req) + "://" + flow.host + "/"
	f.logger.Debugf("oauth.sign_out: redirecting to %s", location)
	rw.Header().Set("Location", location)
	rw.WriteHeader(http.StatusFound)
}

// updateTokens captures the token endpoint response into the flow state.
// Disabled fields are cleared before both HMAC computation and cookie
// emission; validation still considers all five slots, so sessions minted
// under an older policy keep validating.
func (f *OAuthFilter) updateTokens(flow *flowState, tokenResponse *TokenResponse) {
	if !f.config.disableAccessTokenSetCookie {
		flow.accessToken = tokenResponse.AccessToken
	}
	if !f.config.disableIDTokenSetCookie {
		flow.idToken = tokenResponse.IDToken
	}
	if !f.config.disableRefreshTokenSetCookie {
		flow.refreshToken = tokenResponse.RefreshToken
	}

	now := f.now()
	flow.expiresIn = strconv.FormatInt(tokenResponse.ExpiresIn, 10)
	flow.expiresRefreshTokenIn = f.expiresTimeForRefreshToken(tokenResponse.RefreshToken, tokenResponse.ExpiresIn, now)
	flow.expiresIDTokenIn = f.expiresTimeForIDToken(tokenResponse.IDToken, tokenResponse.ExpiresIn, now)
	flow.newExpires = strconv.FormatInt(now.Unix()+tokenResponse.ExpiresIn, 10)
}

// encodedToken computes the session HMAC over the current flow state.
func (f *OAuthFilter) encodedToken(flow *flowState) string {
	domain := flow.host
	if f.config.cookieDomain != "" {
		domain = f.config.cookieDomain
	}
	return encodeSessionHmac(f.config.secrets.HmacSecret(), domain,
		flow.newExpires, flow.accessToken, flow.idToken, flow.refreshToken)
}

// finishGetAccessTokenFlow redirects the user back to their original
// destination with the session cookies set. The redirect then passes this
// filter with a valid session.
func (f *OAuthFilter) finishGetAccessTokenFlow(rw http.ResponseWriter, flow *flowState) {
	f.addResponseCookies(rw.Header(), flow, f.encodedToken(flow))
	f.logger.Debugf("oauth.logged_in: redirecting to %s", flow.originalRequestURL)
	rw.Header().Set("Location", flow.originalRequestURL)
	rw.WriteHeader(http.StatusFound)
	f.stats.oauthSuccess.Add(1)
}

// refreshFlow suspends request processing on the token endpoint and, on
// success, resumes it with renewed credentials: the inbound Cookie header is
// rewritten in place so the upstream sees the new session, and the response
// carries the matching Set-Cookie headers exactly once. On failure the user
// goes back through the authorization endpoint when redirects are allowed.
func (f *OAuthFilter) refreshFlow(rw http.ResponseWriter, req *http.Request, flow *flowState, refreshToken string) {
	tokenResponse, err := f.tokenClient.RefreshAccessToken(req.Context(), refreshToken)
	if err != nil {
		f.logger.Debugf("refreshing the access token failed: %v", err)
		f.stats.oauthRefreshTokenFailure.Add(1)
		if f.canRedirectToAuthServer(req) {
			f.redirectToAuthServer(rw, req, flow)
		} else {
			f.sendUnauthorizedResponse(rw)
		}
		return
	}

	f.updateTokens(flow, tokenResponse)
	encodedToken := f.encodedToken(flow)

	// Rewrite the Cookie header of the current request so the upstream can
	// use the renewed credentials for its own purposes.
	names := f.config.cookieNames
	cookies := parseCookiesOrdered(req.Header)
	cookies.insertOrAssign(names.OauthHMAC, encodedToken)
	cookies.insertOrAssign(names.OauthExpires, flow.newExpires)
	if flow.accessToken != "" {
		cookies.insertOrAssign(names.BearerToken, flow.accessToken)
	}
	if flow.idToken != "" {
		cookies.insertOrAssign(names.IDToken, flow.idToken)
	}
	if flow.refreshToken != "" {
		cookies.insertOrAssign(names.RefreshToken, flow.refreshToken)
	}
	req.Header.Set("Cookie", cookies.serialize())

	if f.config.forwardBearerToken && flow.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+flow.accessToken)
	}

	f.stats.oauthRefreshTokenSuccess.Add(1)
	f.stats.oauthSuccess.Add(1)

	// The response phase must carry the same cookies the upstream just saw.
	staged := make(http.Header)
	f.addResponseCookies(staged, flow, encodedToken)
	f.next.ServeHTTP(&cookieInjector{ResponseWriter: rw, cookies: staged.Values("Set-Cookie")}, req)
}

// addResponseCookies stages the Set-Cookie headers of a freshly minted
// session. Disabled or absent tokens emit no cookie.
func (f *OAuthFilter) addResponseCookies(headers http.Header, flow *flowState, encodedToken string) {
	names := f.config.cookieNames
	configs := f.config.cookieConfigs
	domain := f.config.cookieDomain

	headers.Add("Set-Cookie", names.OauthHMAC+"="+encodedToken+
		buildCookieTail(flow.expiresIn, configs.sameSiteFor(roleOauthHMAC), domain))
	headers.Add("Set-Cookie", names.OauthExpires+"="+flow.newExpires+
		buildCookieTail(flow.expiresIn, configs.sameSiteFor(roleOauthExpires), domain))

	if flow.accessToken != "" {
		headers.Add("Set-Cookie", names.BearerToken+"="+flow.accessToken+
			buildCookieTail(flow.expiresIn, configs.sameSiteFor(roleBearerToken), domain))
	}
	if flow.idToken != "" {
		headers.Add("Set-Cookie", names.IDToken+"="+flow.idToken+
			buildCookieTail(flow.expiresIDTokenIn, configs.sameSiteFor(roleIDToken), domain))
	}
	if flow.refreshToken != "" {
		headers.Add("Set-Cookie", names.RefreshToken+"="+flow.refreshToken+
			buildCookieTail(flow.expiresRefreshTokenIn, configs.sameSiteFor(roleRefreshToken), domain))
	}
}

// sendUnauthorizedResponse collapses every validation failure into a single
// user-visible answer.
func (f *OAuthFilter) sendUnauthorizedResponse(rw http.ResponseWriter) {
	f.stats.oauthFailure.Add(1)
	rw.Header().Set("Content-Type", "text/plain")
	rw.WriteHeader(http.StatusUnauthorized)
	_, _ = rw.Write([]byte(unauthorizedBodyMessage))
}

// validateOAuthCallback checks a request on the callback path:
//   - the query parameters must not carry an error response
//   - code and state must both be present
//   - state must decode to the original request URL and the CSRF token
//   - the CSRF token must match the nonce cookie and carry a valid HMAC
//   - the URL recovered from state must parse
func (f *OAuthFilter) validateOAuthCallback(req *http.Request) callbackValidationResult {
	query := req.URL.Query()

	if query.Has("error") {
		errorDescription := query.Get("error_description")
		if errorDescription == "" {
			errorDescription = query.Get("error")
		}
		f.logger.Errorf("authorization server returned an error: %s - %s", query.Get("error"), errorDescription)
		return callbackValidationResult{}
	}

	code := query.Get("code")
	state := query.Get("state")
	if code == "" || state == "" {
		f.logger.Error("code or state query param does not exist")
		return callbackValidationResult{}
	}

	decodedState, err := decodeState(state)
	if err != nil {
		f.logger.Errorf("invalid state query param: %v", err)
		return callbackValidationResult{}
	}

	// The CSRF token in the state must match the one double-submitted as a
	// cookie. This stops an attacker from injecting their own access token
	// into a victim's session and harvesting whatever the victim saves.
	if !f.validateCsrfToken(req.Header, decodedState.CsrfToken) {
		f.logger.Error("csrf token validation failed")
		return callbackValidationResult{}
	}

	originalRequestURL, err := url.Parse(decodedState.URL)
	if err != nil || originalRequestURL.Host == "" ||
		(originalRequestURL.Scheme != "http" && originalRequestURL.Scheme != "https") {
		f.logger.Errorf("state url %q can not be parsed", decodedState.URL)
		return callbackValidationResult{}
	}

	return callbackValidationResult{valid: true, authCode: code, originalRequestURL: decodedState.URL}
}

// validateCsrfToken compares the csrf_token from the state parameter against
// the nonce cookie and verifies its signature.
func (f *OAuthFilter) validateCsrfToken(headers http.Header, csrfToken string) bool {
	nonceName := f.config.cookieNames.OauthNonce
	cookies := parseCookies(headers, func(name string) bool { return name == nonceName })
	cookieValue, exists := cookies[nonceName]
	return exists && cookieValue == csrfToken &&
		validateCsrfTokenHmac(f.config.secrets.HmacSecret(), csrfToken)
}

// formatRedirectURI renders the redirect_uri template against the request.
func (f *OAuthFilter) formatRedirectURI(req *http.Request, flow *flowState) string {
	var b strings.Builder
	data := struct {
		Scheme string
		Host   string
		Path   string
	}{
		Scheme: redirectScheme(req),
		Host:   flow.host,
		Path:   req.URL.Path,
	}
	if err := f.config.redirectURITemplate.Execute(&b, data); err != nil {
		// The template parsed at construction time; execution over plain
		// strings cannot fail.
		f.logger.Errorf("failed to format redirect_uri: %v", err)
		return ""
	}
	return b.String()
}

// cookieInjector defers Set-Cookie emission until the upstream response is
// encoded, so a refresh flow answers with the same cookies it forwarded. The
// headers are injected exactly once, before the first WriteHeader.
type cookieInjector struct {
	http.ResponseWriter
	cookies  []string
	injected bool
}

func (w *cookieInjector) WriteHeader(statusCode int) {
	if !w.injected {
		w.injected = true
		for _, cookie := range w.cookies {
			w.Header().Add("Set-Cookie", cookie)
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *cookieInjector) Write(b []byte) (int, error) {
	if !w.injected {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Flush forwards to the underlying writer when it supports it, keeping
// streaming upstreams working through a refresh flow.
func (w *cookieInjector) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
