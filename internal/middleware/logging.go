package middleware

import (
	"log/slog"
	"net/http"
	"time"

	pkghttp "github.com/Itqan-community/itqan-cms/pkg/http"
	pkglogger "github.com/Itqan-community/itqan-cms/pkg/logger"
	"github.com/go-chi/chi/v5/middleware"
)

// SecureLogger returns a middleware for logging HTTP requests with sensitive data redaction
func SecureLogger(logger *slog.Logger, ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(wrapped, r)

			// OAuth callbacks carry code and state in the query
			path := r.URL.Path
			if q := pkglogger.SanitizeQueryString(r.URL.RawQuery); q != "" {
				path += "?" + q
			}

			status := wrapped.Status()
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}

			logger.LogAttrs(r.Context(), level, "http_request",
				slog.String("method", r.Method),
				slog.String("path", path),
				slog.Int("status", status),
				slog.Int("bytes", wrapped.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("client_ip", pkghttp.ExtractClientIP(r, ipConfig)),
			)
		})
	}
}

// RequestMeta attaches the client IP and user agent to the request context
// so audit events can report them.
func RequestMeta(ipConfig *pkghttp.IPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := pkglogger.WithRequestMeta(r.Context(), pkghttp.ExtractClientIP(r, ipConfig), r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
