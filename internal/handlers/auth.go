package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Itqan-community/itqan-cms/internal/auth"
	"github.com/Itqan-community/itqan-cms/internal/forms"
	"github.com/Itqan-community/itqan-cms/internal/i18n"
	"github.com/Itqan-community/itqan-cms/internal/identity"
	"github.com/Itqan-community/itqan-cms/internal/models"
	"github.com/Itqan-community/itqan-cms/internal/session"
	pkghttp "github.com/Itqan-community/itqan-cms/pkg/http"
)

// SessionService is the reconciler surface the HTTP layer drives.
type SessionService interface {
	Snapshot(ctx context.Context, sessionID string) (*session.Snapshot, error)
	BeginLogin(opts identity.LoginOptions) (*identity.AuthRequest, error)
	CompleteLogin(ctx context.Context, sessionID, flowToken, state, code string) (*session.Snapshot, string, error)
	PasswordLogin(ctx context.Context, sessionID, email, password string) (*session.Snapshot, error)
	Signup(ctx context.Context, sessionID string, req identity.SignupRequest) (*session.Snapshot, error)
	Logout(ctx context.Context, sessionID, returnTo string) (string, error)
	Discard(ctx context.Context, sessionID string) error
	SetUser(ctx context.Context, sessionID string, user *models.User) (*session.Snapshot, error)
	CompleteProfile(ctx context.Context, sessionID string, form forms.ProfileForm, lang string) (*session.Snapshot, error)
}

// CSRFIssuer mints a CSRF cookie for a session.
type CSRFIssuer interface {
	Issue(w http.ResponseWriter, sessionID string) (string, error)
}

// ReturnToParam carries the local path a login should land on.
const ReturnToParam = "return_to"

// sessionResponse is the session snapshot plus presentation hints.
type sessionResponse struct {
	*session.Snapshot
	Lang       string `json:"lang"`
	Dir        string `json:"dir"`
	CSRFToken  string `json:"csrf_token,omitempty"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

func newSessionResponse(r *http.Request, snap *session.Snapshot) sessionResponse {
	tag := i18n.FromContext(r.Context())
	return sessionResponse{Snapshot: snap, Lang: i18n.Code(tag), Dir: i18n.Dir(tag)}
}

// AuthHandler runs the redirect and password sign-in flows.
type AuthHandler struct {
	sessions   SessionService
	csrf       CSRFIssuer
	sessionCfg auth.SessionConfig
	publicURL  string
	inflight   *forms.InFlight
	logger     *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(sessions SessionService, csrf CSRFIssuer, sessionCfg auth.SessionConfig, publicURL string, inflight *forms.InFlight, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		sessions:   sessions,
		csrf:       csrf,
		sessionCfg: sessionCfg,
		publicURL:  publicURL,
		inflight:   inflight,
		logger:     logger,
	}
}

// Login redirects to the identity provider. ?connection= pins a social
// connection and ?login_hint= pre-fills the email.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.beginRedirect(w, r, "")
}

// Signup redirects to the provider's signup screen.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	h.beginRedirect(w, r, "signup")
}

func (h *AuthHandler) beginRedirect(w http.ResponseWriter, r *http.Request, screenHint string) {
	q := r.URL.Query()
	req, err := h.sessions.BeginLogin(identity.LoginOptions{
		Connection: q.Get("connection"),
		ScreenHint: screenHint,
		LoginHint:  q.Get("login_hint"),
		ReturnTo:   identity.SafeReturnTo(q.Get(ReturnToParam)),
	})
	if err != nil {
		h.logger.Warn("failed to start login", "error", err)
		http.Redirect(w, r, loginErrorPath("login_failed"), http.StatusFound)
		return
	}

	auth.SetFlowCookie(w, req.FlowToken, req.ExpiresAt, h.sessionCfg.Cookie)
	http.Redirect(w, r, req.URL, http.StatusFound)
}

// Callback finishes a redirect login.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	flowToken := auth.GetFlowCookie(r)
	auth.ClearFlowCookie(w, h.sessionCfg.Cookie)

	if providerErr := q.Get("error"); providerErr != "" {
		h.logger.Info("identity provider returned an error",
			"error", providerErr,
			"description", q.Get("error_description"))
		http.Redirect(w, r, loginErrorPath(providerErr), http.StatusFound)
		return
	}
	if flowToken == "" {
		http.Redirect(w, r, loginErrorPath("login_failed"), http.StatusFound)
		return
	}

	previous := auth.GetSessionID(r)
	sessionID := auth.NewSessionID()
	snap, returnTo, err := h.sessions.CompleteLogin(r.Context(), sessionID, flowToken, q.Get("state"), q.Get("code"))
	if err != nil {
		h.logger.Warn("login callback failed", "error", err)
		http.Redirect(w, r, loginErrorPath("login_failed"), http.StatusFound)
		return
	}

	h.adopt(w, r, previous, sessionID)
	http.Redirect(w, r, landingPath(snap, returnTo), http.StatusFound)
}

// Logout clears the session and sends the browser through the provider's
// logout endpoint. POST answers with the URL instead of redirecting and is
// covered by the CSRF check; GET only logs out same-origin navigations.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	returnTo := identity.SafeReturnTo(r.URL.Query().Get(ReturnToParam))
	if returnTo == "" {
		returnTo = session.PathRoot
	}

	if r.Method == http.MethodGet && !h.sameOrigin(r) {
		h.logger.Warn("ignoring cross-site logout", "fetch_site", r.Header.Get("Sec-Fetch-Site"))
		http.Redirect(w, r, session.PathRoot, http.StatusFound)
		return
	}

	previous := auth.GetSessionID(r)
	logoutURL, err := h.sessions.Logout(r.Context(), previous, h.publicURL+returnTo)
	if err != nil {
		h.logger.Error("failed to clear session on logout", "error", err)
	}

	h.adopt(w, r, "", auth.NewSessionID())

	if r.Method == http.MethodPost {
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"logout_url": logoutURL})
		return
	}
	http.Redirect(w, r, logoutURL, http.StatusFound)
}

// sameOrigin reports whether r was started from the gateway's own pages or
// typed by the user. Sec-Fetch-Site is preferred; browsers that omit it are
// checked against Origin or Referer, and a request with none of them is
// treated as cross-site.
func (h *AuthHandler) sameOrigin(r *http.Request) bool {
	if site := r.Header.Get("Sec-Fetch-Site"); site != "" {
		return site == "same-origin" || site == "none"
	}

	source := r.Header.Get("Origin")
	if source == "" {
		source = r.Header.Get("Referer")
	}
	if source == "" {
		return false
	}
	u, err := url.Parse(source)
	if err != nil {
		return false
	}
	public, err := url.Parse(h.publicURL)
	if err != nil {
		return false
	}
	return u.Scheme == public.Scheme && u.Host == public.Host
}

// PasswordLogin handles POST /api/v1/auth/login.
func (h *AuthHandler) PasswordLogin(w http.ResponseWriter, r *http.Request) {
	var form forms.LoginForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeInvalidBody(w, r)
		return
	}
	form.Normalize()
	if fields := forms.Validate(&form, i18n.PrinterFromContext(r.Context())); fields != nil {
		writeFieldErrors(w, r, fields)
		return
	}

	h.signIn(w, r, forms.FormLogin, i18n.MsgLoginFailed, func(ctx context.Context, sessionID string) (*session.Snapshot, error) {
		return h.sessions.PasswordLogin(ctx, sessionID, form.Email, form.Password)
	})
}

// SignupSubmit handles POST /api/v1/auth/signup.
func (h *AuthHandler) SignupSubmit(w http.ResponseWriter, r *http.Request) {
	var form forms.SignupForm
	if err := decodeJSON(w, r, &form); err != nil {
		writeInvalidBody(w, r)
		return
	}
	form.Normalize()
	if fields := forms.Validate(&form, i18n.PrinterFromContext(r.Context())); fields != nil {
		writeFieldErrors(w, r, fields)
		return
	}

	h.signIn(w, r, forms.FormSignup, i18n.MsgSignupFailed, func(ctx context.Context, sessionID string) (*session.Snapshot, error) {
		return h.sessions.Signup(ctx, sessionID, identity.SignupRequest{
			Email:     form.Email,
			Password:  form.Password,
			FirstName: form.FirstName,
			LastName:  form.LastName,
		})
	})
}

// signIn runs one sign-in attempt under a fresh session ID and adopts it on
// success.
func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request, formName, fallback string, attempt func(context.Context, string) (*session.Snapshot, error)) {
	previous := auth.GetSessionID(r)
	release, ok := h.inflight.Begin(previous, formName)
	if !ok {
		writeServiceError(w, r, h.logger, models.ErrSubmissionInProgress, fallback)
		return
	}
	defer release()

	sessionID := auth.NewSessionID()
	snap, err := attempt(r.Context(), sessionID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, fallback)
		return
	}

	token := h.adopt(w, r, previous, sessionID)
	resp := newSessionResponse(r, snap)
	resp.CSRFToken = token
	resp.RedirectTo = landingPath(snap, r.URL.Query().Get(ReturnToParam))
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// adopt moves the browser onto sessionID, drops the previous record and
// issues a CSRF token for the new session.
func (h *AuthHandler) adopt(w http.ResponseWriter, r *http.Request, previous, sessionID string) string {
	auth.AdoptSession(w, r, h.sessionCfg, sessionID)
	if previous != "" && previous != sessionID {
		if err := h.sessions.Discard(r.Context(), previous); err != nil {
			h.logger.Warn("failed to discard previous session", "error", err)
		}
	}
	token, err := h.csrf.Issue(w, sessionID)
	if err != nil {
		h.logger.Error("failed to issue CSRF token", "error", err)
	}
	return token
}

// landingPath picks where a freshly signed-in user goes.
func landingPath(snap *session.Snapshot, returnTo string) string {
	if snap.RequiresProfileCompletion {
		return session.PathCompleteProfile
	}
	target := identity.SafeReturnTo(returnTo)
	path, _, _ := strings.Cut(target, "?")
	if target != "" && !session.Exempt(path) && session.Guard(snap.State, target).Allowed() {
		return target
	}
	return session.PathDashboard
}

func loginErrorPath(code string) string {
	return session.PathLogin + "?" + url.Values{"error": {code}}.Encode()
}
