package oauthfilter

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtRemainingLifetime attempts to parse tokenString as a JWT and extract the
// exp claim without verifying the signature. On success it returns the
// remaining lifetime in whole seconds, floored at zero. Any parse failure or
// a missing exp claim returns ok=false and the caller falls back to a
// configured default.
func jwtRemainingLifetime(tokenString string, now time.Time) (int64, bool) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return 0, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil || exp.Unix() == 0 {
		return 0, false
	}
	remaining := exp.Unix() - now.Unix()
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// expiresTimeForRefreshToken derives the Max-Age of the refresh token cookie.
// When refresh is enabled the refresh token itself is probed for an exp
// claim; a token that is not a JWT or omits exp falls back to the configured
// default lifetime. With refresh disabled the access token lifetime is used.
func (f *OAuthFilter) expiresTimeForRefreshToken(refreshToken string, expiresIn int64, now time.Time) string {
	if f.config.useRefreshToken {
		if remaining, ok := jwtRemainingLifetime(refreshToken, now); ok {
			if remaining == 0 {
				f.logger.Debug("The expiration time in the refresh token is less than the current time")
			}
			return strconv.FormatInt(remaining, 10)
		}
		f.logger.Debug("The refresh token is not a JWT or exp claim is omitted. The lifetime of the refresh token will be taken from filter configuration")
		return strconv.FormatInt(f.config.defaultRefreshTokenExpiresIn, 10)
	}
	return strconv.FormatInt(expiresIn, 10)
}

// expiresTimeForIDToken derives the Max-Age of the ID token cookie. An empty
// ID token, a non-JWT token, or a token without exp aligns the cookie with
// the access token lifetime.
func (f *OAuthFilter) expiresTimeForIDToken(idToken string, expiresIn int64, now time.Time) string {
	if idToken != "" {
		if remaining, ok := jwtRemainingLifetime(idToken, now); ok {
			if remaining == 0 {
				f.logger.Debug("The expiration time in the id token is less than the current time")
			}
			return strconv.FormatInt(remaining, 10)
		}
		f.logger.Debug("The id token is not a JWT or exp claim is omitted. The lifetime of the id token will be aligned with the access token")
	}
	return strconv.FormatInt(expiresIn, 10)
}
