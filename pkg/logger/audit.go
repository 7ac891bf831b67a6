package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit event types.
const (
	EventLogin            = "login"
	EventLoginFailed      = "login_failed"
	EventSignup           = "signup"
	EventSignupFailed     = "signup_failed"
	EventLogout           = "logout"
	EventProfileCompleted = "profile_completed"
	EventProfileFailed    = "profile_completion_failed"
	EventAssetDownload    = "asset_download"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	Email         string
	Provider      string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

type requestMetaKey struct{}

type requestMeta struct {
	ipAddress string
	userAgent string
}

// WithRequestMeta attaches the client address and user agent to ctx so audit
// events logged further down the call chain carry them.
func WithRequestMeta(ctx context.Context, ipAddress, userAgent string) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, requestMeta{ipAddress: ipAddress, userAgent: userAgent})
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// Log writes an audit record. Failures are logged at warn level.
func (al *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	if al == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", "session"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.Provider != "" {
		attrs = append(attrs, slog.String("provider", event.Provider))
	}
	if meta, ok := ctx.Value(requestMetaKey{}).(requestMeta); ok {
		if meta.ipAddress != "" {
			attrs = append(attrs, slog.String("ip_address", meta.ipAddress))
		}
		if meta.userAgent != "" {
			attrs = append(attrs, slog.String("user_agent", meta.userAgent))
		}
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}
