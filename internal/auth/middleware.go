package auth

import (
	"context"
	"net/http"
	"time"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey is the key for storing the session ID in context
	SessionContextKey contextKey = "session_id"
)

// SessionConfig configures SessionMiddleware.
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Cookie     CookieConfig
}

// SessionMiddleware makes sure every request carries a session ID. A missing
// or malformed cookie is replaced by a fresh ID. The cookie is re-issued on
// each request so its lifetime slides with activity.
func SessionMiddleware(cfg SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID, ok := GetSessionCookie(r, cfg.CookieName)
			if !ok {
				sessionID = NewSessionID()
			}
			SetSessionCookie(w, cfg.CookieName, sessionID, cfg.TTL, cfg.Cookie)

			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sessionID)))
		})
	}
}

// AdoptSession switches the rest of the request to sessionID and sets its
// cookie. Sign-in flows write the new record under a fresh ID first and adopt
// it only on success, so a pre-login ID never names an authenticated session.
func AdoptSession(w http.ResponseWriter, r *http.Request, cfg SessionConfig, sessionID string) *http.Request {
	SetSessionCookie(w, cfg.CookieName, sessionID, cfg.TTL, cfg.Cookie)
	return r.WithContext(WithSessionID(r.Context(), sessionID))
}

// WithSessionID returns a context carrying sessionID.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionContextKey, sessionID)
}

// GetSessionID extracts the session ID from request context
func GetSessionID(r *http.Request) string {
	sessionID, _ := r.Context().Value(SessionContextKey).(string)
	return sessionID
}
