package middleware

import (
	"net/http"
	"time"

	"github.com/Itqan-community/itqan-cms/internal/auth"
	pkghttp "github.com/Itqan-community/itqan-cms/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	IPConfig          *pkghttp.IPConfig
}

// DefaultAuthRateLimit limits credential endpoints to 5 requests per minute.
func DefaultAuthRateLimit(ipConfig *pkghttp.IPConfig) RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 5, IPConfig: ipConfig}
}

// DefaultAPIRateLimit is the general limit for catalog and session reads.
func DefaultAPIRateLimit(ipConfig *pkghttp.IPConfig) RateLimitConfig {
	return RateLimitConfig{RequestsPerMinute: 120, IPConfig: ipConfig}
}

// RateLimitByIP rate limits requests by client IP. Forwarding headers count
// only when they come from a trusted proxy.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// RateLimitBySession rate limits per session and endpoint, falling back to
// the client IP when no session is attached.
func RateLimitBySession(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if sid := auth.GetSessionID(r); sid != "" {
				return "session:" + sid, nil
			}
			return "ip:" + pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(limitExceeded),
	)
}

func limitExceeded(w http.ResponseWriter, _ *http.Request) {
	pkghttp.WriteTooManyRequests(w, "Too many requests, please try again shortly")
}
