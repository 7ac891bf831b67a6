package middleware

import (
	"net/http"
	"strings"
)

// SecurityHeadersConfig holds security headers configuration
type SecurityHeadersConfig struct {
	Env string
	// IdentityOrigin is the identity provider's origin. Login forms and
	// redirects post to it.
	IdentityOrigin string
	// AssetOrigins lists hosts serving catalog thumbnails and downloads.
	AssetOrigins []string
}

// SecurityHeaders returns a middleware that adds security headers to all responses
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	csp := contentSecurityPolicy(config)
	production := config.Env == "production"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Content-Security-Policy", csp)
			h.Set("Permissions-Policy", "camera=(), geolocation=(), microphone=(), payment=(), usb=()")
			h.Set("Cross-Origin-Opener-Policy", "same-origin")

			if production && (r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https") {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func contentSecurityPolicy(config SecurityHeadersConfig) string {
	formAction := []string{"'self'"}
	if config.IdentityOrigin != "" {
		formAction = append(formAction, config.IdentityOrigin)
	}
	img := append([]string{"'self'", "data:"}, config.AssetOrigins...)

	directives := []string{
		"default-src 'self'",
		"script-src 'self'",
		"style-src 'self' 'unsafe-inline'",
		"img-src " + strings.Join(img, " "),
		"font-src 'self' data:",
		"connect-src 'self'",
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action " + strings.Join(formAction, " "),
	}
	if config.Env != "production" {
		// dev server hot reload
		directives[1] = "script-src 'self' 'unsafe-inline' 'unsafe-eval'"
		directives[5] = "connect-src 'self' ws: wss:"
	}
	return strings.Join(directives, "; ")
}
