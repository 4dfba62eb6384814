package oauthfilter

import "sync/atomic"

// FilterStats tracks the outcome counters of the filter. All counters are
// monotonically increasing and safe for concurrent use.
type FilterStats struct {
	oauthPassthrough         atomic.Int64
	oauthSuccess             atomic.Int64
	oauthFailure             atomic.Int64
	oauthUnauthorizedRq      atomic.Int64
	oauthRefreshTokenSuccess atomic.Int64
	oauthRefreshTokenFailure atomic.Int64
}

// Snapshot returns the current counter values keyed by stat name.
func (s *FilterStats) Snapshot() map[string]int64 {
	return map[string]int64{
		"oauth_passthrough":          s.oauthPassthrough.Load(),
		"oauth_success":              s.oauthSuccess.Load(),
		"oauth_failure":              s.oauthFailure.Load(),
		"oauth_unauthorized_rq":      s.oauthUnauthorizedRq.Load(),
		"oauth_refreshtoken_success": s.oauthRefreshTokenSuccess.Load(),
		"oauth_refreshtoken_failure": s.oauthRefreshTokenFailure.Load(),
	}
}
