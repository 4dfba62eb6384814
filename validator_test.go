package oauthfilter

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCookieValidatorValidSession(t *testing.T) {
	names := defaultCookieNames()
	req := httptest.NewRequest("GET", "https://app.example.com/page", nil)
	req.Header.Set("Cookie", sessionCookieHeader(names, "app.example.com", futureExpires(3600), "access", "id", "refresh"))

	v := NewCookieValidator(func() time.Time { return testNow }, names, "")
	v.SetParams(req, testHmacSecret)

	assert.True(t, v.IsValid())
	assert.Equal(t, "access", v.Token())
	assert.Equal(t, "refresh", v.RefreshToken())
	assert.True(t, v.CanUpdateTokenByRefreshToken())
}

func TestCookieValidatorExpiredSession(t *testing.T) {
	names := defaultCookieNames()
	expired := futureExpires(-10)
	req := httptest.NewRequest("GET", "https://app.example.com/page", nil)
	req.Header.Set("Cookie", sessionCookieHeader(names, "app.example.com", expired, "access", "", "refresh"))

	v := NewCookieValidator(func() time.Time { return testNow }, names, "")
	v.SetParams(req, testHmacSecret)

	// HMAC still binds, only the deadline is gone: refresh stays possible.
	assert.True(t, v.hmacIsValid())
	assert.False(t, v.IsValid())
	assert.True(t, v.CanUpdateTokenByRefreshToken())
}

func TestCookieValidatorTamperedCookie(t *testing.T) {
	names := defaultCookieNames()
	cookie := sessionCookieHeader(names, "app.example.com", futureExpires(3600), "access", "", "")
	req := httptest.NewRequest("GET", "https://app.example.com/page", nil)
	req.Header.Set("Cookie", cookie+"x")

	v := NewCookieValidator(func() time.Time { return testNow }, names, "")
	v.SetParams(req, testHmacSecret)
	assert.False(t, v.IsValid())
}

func TestCookieValidatorMissingCookieBreaksHmac(t *testing.T) {
	names := defaultCookieNames()
	expires := futureExpires(3600)
	hmac := encodeSessionHmac(testHmacSecret, "app.example.com", expires, "access", "", "")
	req := httptest.NewRequest("GET", "https://app.example.com/page", nil)
	// BearerToken cookie dropped: the empty slot no longer matches the HMAC.
	req.Header.Set("Cookie", names.OauthHMAC+"="+hmac+"; "+names.OauthExpires+"="+expires)

	v := NewCookieValidator(func() time.Time { return testNow }, names, "")
	v.SetParams(req, testHmacSecret)
	assert.False(t, v.IsValid())
}

func TestCookieValidatorUnparsableExpires(t *testing.T) {
	names := defaultCookieNames()
	for _, expires := range []string{"not-a-number", "-5", "12.5", ""} {
		hmac := encodeSessionHmac(testHmacSecret, "app.example.com", expires, "", "", "")
		req := httptest.NewRequest("GET", "https://app.example.com/page", nil)
		req.Header.Set("Cookie", names.OauthHMAC+"="+hmac+"; "+names.OauthExpires+"="+expires)

		v := NewCookieValidator(func() time.Time { return testNow }, names, "")
		v.SetParams(req, testHmacSecret)
		assert.False(t, v.IsValid(), "expires=%q", expires)
	}
}

func TestCookieValidatorLegacyHmacAccepted(t *testing.T) {
	names := defaultCookieNames()
	expires := futureExpires(3600)
	legacy := encodeSessionHmacLegacy(testHmacSecret, "app.example.com", expires, "access", "", "")
	req := httptest.NewRequest("GET", "https://app.example.com/page", nil)
	req.Header.Set("Cookie", names.OauthHMAC+"="+legacy+"; "+names.OauthExpires+"="+expires+"; "+names.BearerToken+"=access")

	v := NewCookieValidator(func() time.Time { return testNow }, names, "")
	v.SetParams(req, testHmacSecret)
	assert.True(t, v.IsValid())
}

func TestCookieValidatorConfiguredCookieDomain(t *testing.T) {
	names := defaultCookieNames()
	expires := futureExpires(3600)

	// signed against the configured domain, not the request host
	req := httptest.NewRequest("GET", "https://sub.example.com/page", nil)
	req.Header.Set("Cookie", sessionCookieHeader(names, "example.com", expires, "access", "", ""))

	withDomain := NewCookieValidator(func() time.Time { return testNow }, names, "example.com")
	withDomain.SetParams(req, testHmacSecret)
	assert.True(t, withDomain.IsValid())

	withoutDomain := NewCookieValidator(func() time.Time { return testNow }, names, "")
	withoutDomain.SetParams(req, testHmacSecret)
	assert.False(t, withoutDomain.IsValid())
}

func TestCookieValidatorNoRefreshToken(t *testing.T) {
	names := defaultCookieNames()
	req := httptest.NewRequest("GET", "https://app.example.com/page", nil)
	req.Header.Set("Cookie", sessionCookieHeader(names, "app.example.com", futureExpires(-10), "access", "", ""))

	v := NewCookieValidator(func() time.Time { return testNow }, names, "")
	v.SetParams(req, testHmacSecret)
	assert.False(t, v.CanUpdateTokenByRefreshToken())
}
