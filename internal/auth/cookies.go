package auth

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Cookie names other than the configurable session cookie.
const (
	FlowCookieName = "itqan_login_flow"
	CSRFCookieName = "itqan_csrf"
	CSRFHeaderName = "X-CSRF-Token"
)

// CookieConfig holds cookie configuration settings
type CookieConfig struct {
	Domain   string // Empty string = current host only
	Secure   bool   // HTTPS only
	SameSite string // "strict", "lax", or "none"
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether id has the shape NewSessionID produces.
func ValidSessionID(id string) bool {
	parsed, err := uuid.Parse(id)
	return err == nil && parsed.Version() == 4
}

// SetSessionCookie sets the opaque session identifier in an httpOnly cookie
func SetSessionCookie(w http.ResponseWriter, name, sessionID string, ttl time.Duration, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    sessionID,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// GetSessionCookie returns the session ID if the cookie is present and well formed.
func GetSessionCookie(r *http.Request, name string) (string, bool) {
	cookie, err := r.Cookie(name)
	if err != nil || !ValidSessionID(cookie.Value) {
		return "", false
	}
	return cookie.Value, true
}

// SetFlowCookie stores the signed login flow until the provider redirects
// back. It is always SameSite=Lax: the callback is a cross-site top-level
// navigation, which strict cookies would not survive.
func SetFlowCookie(w http.ResponseWriter, token string, expiresAt time.Time, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlowCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  expiresAt,
		MaxAge:   max(int(time.Until(expiresAt).Seconds()), 1),
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearFlowCookie clears the login flow cookie
func ClearFlowCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlowCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// GetFlowCookie retrieves the login flow token from cookies
func GetFlowCookie(r *http.Request) string {
	cookie, err := r.Cookie(FlowCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetCSRFTokenCookie sets a CSRF token in a readable cookie (not httpOnly)
// JavaScript needs to read this and send it in X-CSRF-Token header
func SetCSRFTokenCookie(w http.ResponseWriter, csrfToken string, ttl time.Duration, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     CSRFCookieName,
		Value:    csrfToken,
		Path:     "/",
		Domain:   config.Domain,
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: false,
		Secure:   config.Secure,
		SameSite: parseSameSite(config.SameSite),
	})
}

// GetCSRFTokenCookie retrieves the CSRF token from cookies
func GetCSRFTokenCookie(r *http.Request) string {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// parseSameSite converts string to http.SameSite constant
func parseSameSite(sameSite string) http.SameSite {
	switch sameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
