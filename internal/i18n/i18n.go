// Package i18n resolves the visitor's language (Arabic or English) and
// provides localized message printers for user-facing text.
package i18n

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	// LangParam is the query parameter used to select a language.
	LangParam = "lang"
	// LangCookieName stores the user's language preference.
	LangCookieName = "itqan_lang"
)

var (
	supported = []language.Tag{language.Arabic, language.English}
	matcher   = language.NewMatcher(supported)
)

type contextKey struct{}

// Default returns the default language tag.
func Default() language.Tag {
	return supported[0]
}

// ParseTag maps a user-supplied value onto a supported tag.
func ParseTag(value string) (language.Tag, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return language.Und, false
	}
	tag, err := language.Parse(value)
	if err != nil {
		return language.Und, false
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.Und, false
	}
	return supported[idx], true
}

// ResolveTag determines the best language tag for the request.
// The bool reports whether the tag came from the lang query param and should
// be persisted as a cookie.
func ResolveTag(r *http.Request) (language.Tag, bool) {
	if r == nil {
		return Default(), false
	}

	if tag, ok := ParseTag(r.URL.Query().Get(LangParam)); ok {
		return tag, true
	}

	if cookie, err := r.Cookie(LangCookieName); err == nil {
		if tag, ok := ParseTag(cookie.Value); ok {
			return tag, false
		}
	}

	if accept := strings.TrimSpace(r.Header.Get("Accept-Language")); accept != "" {
		if tags, _, err := language.ParseAcceptLanguage(accept); err == nil && len(tags) > 0 {
			_, idx, conf := matcher.Match(tags...)
			if conf != language.No {
				return supported[idx], false
			}
		}
	}

	return Default(), false
}

// SetLanguageCookie persists the selected language on the response.
func SetLanguageCookie(w http.ResponseWriter, tag language.Tag) {
	http.SetCookie(w, &http.Cookie{
		Name:     LangCookieName,
		Value:    Code(tag),
		Path:     "/",
		MaxAge:   int((365 * 24 * time.Hour).Seconds()),
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware stores the resolved language in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag, persist := ResolveTag(r)
		if persist {
			SetLanguageCookie(w, tag)
		}
		w.Header().Set("Content-Language", Code(tag))
		next.ServeHTTP(w, r.WithContext(WithTag(r.Context(), tag)))
	})
}

func WithTag(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, contextKey{}, tag)
}

// FromContext returns the request language, or the default.
func FromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(contextKey{}).(language.Tag); ok {
		return tag
	}
	return Default()
}

// Printer returns a message printer for the supplied tag.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag)
}

// PrinterFromContext returns a printer for the request language.
func PrinterFromContext(ctx context.Context) *message.Printer {
	return Printer(FromContext(ctx))
}

// Code returns the two-letter language code ("ar" or "en").
func Code(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

// Dir returns the text direction for tag.
func Dir(tag language.Tag) string {
	if Code(tag) == "ar" {
		return "rtl"
	}
	return "ltr"
}

// Localized picks the Arabic or English variant of a value.
func Localized(tag language.Tag, en, ar string) string {
	if Code(tag) == "ar" && ar != "" {
		return ar
	}
	return en
}
