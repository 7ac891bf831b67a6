package session

import (
	"net/url"
	"strings"
)

// Page routes the guard knows about.
const (
	PathRoot            = "/"
	PathLogin           = "/login"
	PathSignup          = "/signup"
	PathDashboard       = "/dashboard"
	PathCompleteProfile = "/complete-profile"
	PathCallback        = "/callback"
	PathAuthPrefix      = "/auth/"
)

// Decision is the guard's verdict for one navigation.
type Decision struct {
	Redirect string
}

// Allowed reports whether the navigation may proceed.
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Guard decides whether a session in state may visit target (a request URI,
// query included). Callback and /auth/* routes are never redirected, nor is a
// session whose provider state is still loading.
func Guard(state State, target string) Decision {
	path := target
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		path = PathRoot
	}

	if Exempt(path) || state == StateLoading {
		return Decision{}
	}

	switch state {
	case StateIncomplete:
		if path != PathCompleteProfile {
			return Decision{Redirect: PathCompleteProfile}
		}
	case StateComplete:
		switch path {
		case PathLogin, PathSignup, PathCompleteProfile:
			return Decision{Redirect: PathDashboard}
		}
	case StateAnonymous:
		switch path {
		case PathDashboard, PathCompleteProfile:
			return Decision{Redirect: LoginRedirect(target)}
		}
	}
	return Decision{}
}

// Exempt reports whether path is part of an authentication round trip.
func Exempt(path string) bool {
	return path == PathCallback || strings.HasPrefix(path, PathAuthPrefix)
}

// LoginRedirect returns the login page URL that returns to target afterwards.
func LoginRedirect(target string) string {
	if target == "" || target == PathRoot {
		return PathLogin
	}
	return PathLogin + "?" + url.Values{"return_to": {target}}.Encode()
}
