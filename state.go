package oauthfilter

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// oauthState is the payload of the OAuth state query parameter: the URL the
// user originally requested and the CSRF token that must match the nonce
// cookie when the identity provider redirects the browser back.
type oauthState struct {
	URL       string `json:"url"`
	CsrfToken string `json:"csrf_token"`
}

// encodeState encodes the state parameter for the OAuth2 flow as unpadded
// base64url of a JSON object. JSON escaping covers both values.
func encodeState(originalRequestURL, csrfToken string) string {
	// Marshal of a struct with string fields cannot fail.
	raw, _ := json.Marshal(oauthState{URL: originalRequestURL, CsrfToken: csrfToken})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// decodeState is best-effort: any base64 or JSON error, or a missing field,
// fails the callback validation of the caller.
func decodeState(state string) (oauthState, error) {
	raw, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		// Some user agents re-encode query parameters with padding.
		raw, err = base64.URLEncoding.DecodeString(state)
		if err != nil {
			return oauthState{}, fmt.Errorf("state is not valid base64url: %w", err)
		}
	}

	var decoded oauthState
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return oauthState{}, fmt.Errorf("state is not valid JSON: %w", err)
	}
	if decoded.URL == "" || decoded.CsrfToken == "" {
		return oauthState{}, fmt.Errorf("state does not contain url or CSRF token")
	}
	return decoded, nil
}
