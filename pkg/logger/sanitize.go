package logger

import (
	"log/slog"
	"net/url"
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	// Mask username: keep first char, mask rest
	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// Mask domain: keep TLD, mask the rest
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		// Mask all but the TLD
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SubjectAttr returns a slog attribute for an identity-provider subject
// ("connection|id") with the id masked down to its last four characters.
func SubjectAttr(subject string) slog.Attr {
	connection, id, ok := strings.Cut(subject, "|")
	if !ok {
		connection, id = "", subject
	}
	if len(id) > 4 {
		id = strings.Repeat("*", len(id)-4) + id[len(id)-4:]
	} else if id != "" {
		id = strings.Repeat("*", len(id))
	}
	if connection == "" {
		return slog.String("subject", id)
	}
	return slog.String("subject", connection+"|"+id)
}

var sensitiveParams = map[string]bool{
	"password":   true,
	"token":      true,
	"secret":     true,
	"code":       true,
	"state":      true,
	"email":      true,
	"login_hint": true,
	"csrf":       true,
	"id_token":   true,
}

// SanitizeQueryString returns rawQuery with the values of sensitive
// parameters replaced by [REDACTED]. Parameter names are matched
// case-insensitively; a query that cannot be parsed is redacted whole.
func SanitizeQueryString(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "[REDACTED]"
	}
	for key := range values {
		if sensitiveParams[strings.ToLower(key)] {
			values[key] = []string{"[REDACTED]"}
		}
	}
	return values.Encode()
}
