package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/Itqan-community/itqan-cms/internal/auth"
	pkghttp "github.com/Itqan-community/itqan-cms/pkg/http"
)

// CSRF issues and checks double-submit tokens bound to the session ID.
type CSRF struct {
	manager *auth.CSRFTokenManager
	cookie  auth.CookieConfig
	ttl     time.Duration
	logger  *slog.Logger
}

func NewCSRF(manager *auth.CSRFTokenManager, cookie auth.CookieConfig, ttl time.Duration, logger *slog.Logger) *CSRF {
	return &CSRF{manager: manager, cookie: cookie, ttl: ttl, logger: logger}
}

// Issue mints a token for sessionID and sets it as the CSRF cookie.
func (c *CSRF) Issue(w http.ResponseWriter, sessionID string) (string, error) {
	token, err := c.manager.GenerateToken(sessionID)
	if err != nil {
		return "", err
	}
	auth.SetCSRFTokenCookie(w, token, c.ttl, c.cookie)
	return token, nil
}

// Protect must run after auth.SessionMiddleware. Safe requests get a cookie
// when the current one is missing or belongs to another session; unsafe
// requests must echo the cookie in the X-CSRF-Token header.
func (c *CSRF) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := auth.GetSessionID(r)
		cookieToken := auth.GetCSRFTokenCookie(r)

		if !isStateChangingMethod(r.Method) {
			if !c.manager.ValidateToken(cookieToken, sessionID) {
				if _, err := c.Issue(w, sessionID); err != nil {
					c.logger.Error("failed to issue CSRF token", slog.String("error", err.Error()))
				}
			}
			next.ServeHTTP(w, r)
			return
		}

		headerToken := r.Header.Get(auth.CSRFHeaderName)
		if headerToken == "" || cookieToken == "" {
			c.reject(w, r, "CSRF token missing")
			return
		}
		if subtle.ConstantTimeCompare([]byte(headerToken), []byte(cookieToken)) != 1 ||
			!c.manager.ValidateToken(headerToken, sessionID) {
			c.reject(w, r, "CSRF token invalid")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (c *CSRF) reject(w http.ResponseWriter, r *http.Request, reason string) {
	c.logger.Warn("CSRF check failed",
		slog.String("reason", reason),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path))
	pkghttp.WriteForbidden(w, reason)
}

func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
