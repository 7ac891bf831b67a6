package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Itqan-community/itqan-cms/internal/auth"
	"github.com/Itqan-community/itqan-cms/internal/forms"
	"github.com/Itqan-community/itqan-cms/internal/handlers"
	"github.com/Itqan-community/itqan-cms/internal/identity"
	"github.com/Itqan-community/itqan-cms/internal/models"
	"github.com/Itqan-community/itqan-cms/internal/session"
	pkghttp "github.com/Itqan-community/itqan-cms/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

const publicURL = "https://itqan.example"

func newAuthHandler(sessions *MockSessionService, csrf *MockCSRFIssuer) (*handlers.AuthHandler, *forms.InFlight) {
	inflight := forms.NewInFlight()
	return handlers.NewAuthHandler(sessions, csrf, testSessionConfig(), publicURL, inflight, testLogger()), inflight
}

func TestLogin_RedirectsToProvider(t *testing.T) {
	var got identity.LoginOptions
	sessions := &MockSessionService{
		BeginLoginFunc: func(opts identity.LoginOptions) (*identity.AuthRequest, error) {
			got = opts
			return &identity.AuthRequest{
				URL:       "https://idp.example/authorize?state=abc",
				FlowToken: "flow-token",
				ExpiresAt: time.Now().Add(10 * time.Minute),
			}, nil
		},
	}
	h, _ := newAuthHandler(sessions, &MockCSRFIssuer{})

	req := newTestRequest(t, "GET", "/auth/login?connection=github&login_hint=a@b.c&return_to=/dashboard", nil, "sid", language.English)
	w := httptest.NewRecorder()
	h.Login(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://idp.example/authorize?state=abc", w.Header().Get("Location"))
	assert.Equal(t, identity.LoginOptions{Connection: "github", LoginHint: "a@b.c", ReturnTo: "/dashboard"}, got)

	flow := findCookie(w, auth.FlowCookieName)
	require.NotNil(t, flow)
	assert.Equal(t, "flow-token", flow.Value)
}

func TestLogin_DropsExternalReturnTo(t *testing.T) {
	var got identity.LoginOptions
	sessions := &MockSessionService{
		BeginLoginFunc: func(opts identity.LoginOptions) (*identity.AuthRequest, error) {
			got = opts
			return &identity.AuthRequest{URL: "https://idp.example/authorize"}, nil
		},
	}
	h, _ := newAuthHandler(sessions, &MockCSRFIssuer{})

	w := httptest.NewRecorder()
	h.Login(w, newTestRequest(t, "GET", "/auth/login?return_to=//evil.example", nil, "sid", language.English))

	assert.Empty(t, got.ReturnTo)
}

func TestSignup_UsesSignupScreen(t *testing.T) {
	var got identity.LoginOptions
	sessions := &MockSessionService{
		BeginLoginFunc: func(opts identity.LoginOptions) (*identity.AuthRequest, error) {
			got = opts
			return &identity.AuthRequest{URL: "https://idp.example/authorize"}, nil
		},
	}
	h, _ := newAuthHandler(sessions, &MockCSRFIssuer{})

	w := httptest.NewRecorder()
	h.Signup(w, newTestRequest(t, "GET", "/auth/signup", nil, "sid", language.English))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "signup", got.ScreenHint)
}

func TestLogin_BeginFailureRedirectsToLogin(t *testing.T) {
	h, _ := newAuthHandler(&MockSessionService{}, &MockCSRFIssuer{})

	w := httptest.NewRecorder()
	h.Login(w, newTestRequest(t, "GET", "/auth/login?connection=myspace", nil, "sid", language.English))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?error=login_failed", w.Header().Get("Location"))
}

func callbackRequest(t *testing.T, query string, withFlow bool) *http.Request {
	req := newTestRequest(t, "GET", "/callback"+query, nil, "old-sid", language.English)
	if withFlow {
		req.AddCookie(&http.Cookie{Name: auth.FlowCookieName, Value: "flow-token"})
	}
	return req
}

func TestCallback_Success(t *testing.T) {
	var usedSession string
	sessions := &MockSessionService{
		CompleteLoginFunc: func(ctx context.Context, sessionID, flowToken, state, code string) (*session.Snapshot, string, error) {
			usedSession = sessionID
			assert.Equal(t, "flow-token", flowToken)
			assert.Equal(t, "st", state)
			assert.Equal(t, "cd", code)
			return completeSnapshot(), "/dashboard?categories=quran", nil
		},
	}
	csrf := &MockCSRFIssuer{}
	h, _ := newAuthHandler(sessions, csrf)

	w := httptest.NewRecorder()
	h.Callback(w, callbackRequest(t, "?state=st&code=cd", true))

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard?categories=quran", w.Header().Get("Location"))

	assert.NotEqual(t, "old-sid", usedSession)
	assert.True(t, auth.ValidSessionID(usedSession))
	cookie := findCookie(w, "itqan_session")
	require.NotNil(t, cookie)
	assert.Equal(t, usedSession, cookie.Value)
	assert.Equal(t, []string{"old-sid"}, sessions.Discarded)
	assert.Equal(t, []string{usedSession}, csrf.Issued)

	flow := findCookie(w, auth.FlowCookieName)
	require.NotNil(t, flow)
	assert.Equal(t, "", flow.Value)
}

func TestCallback_IncompleteProfileGoesToCompleteProfile(t *testing.T) {
	sessions := &MockSessionService{
		CompleteLoginFunc: func(ctx context.Context, sessionID, flowToken, state, code string) (*session.Snapshot, string, error) {
			return incompleteSnapshot(), "/dashboard", nil
		},
	}
	h, _ := newAuthHandler(sessions, &MockCSRFIssuer{})

	w := httptest.NewRecorder()
	h.Callback(w, callbackRequest(t, "?state=st&code=cd", true))

	assert.Equal(t, session.PathCompleteProfile, w.Header().Get("Location"))
}

func TestCallback_Failures(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		withFlow bool
		location string
	}{
		{"provider error", "?error=access_denied&error_description=nope", true, "/login?error=access_denied"},
		{"missing flow cookie", "?state=st&code=cd", false, "/login?error=login_failed"},
		{"state mismatch", "?state=bad&code=cd", true, "/login?error=login_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &MockSessionService{}
			h, _ := newAuthHandler(sessions, &MockCSRFIssuer{})

			w := httptest.NewRecorder()
			h.Callback(w, callbackRequest(t, tt.query, tt.withFlow))

			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))
			assert.Nil(t, findCookie(w, "itqan_session"))
			assert.Empty(t, sessions.Discarded)
		})
	}
}

func TestLogout_RedirectsThroughProvider(t *testing.T) {
	var clearedSession, returnTo string
	sessions := &MockSessionService{
		LogoutFunc: func(ctx context.Context, sessionID, rt string) (string, error) {
			clearedSession, returnTo = sessionID, rt
			return "https://idp.example/v2/logout?returnTo=" + rt, nil
		},
	}
	h, _ := newAuthHandler(sessions, &MockCSRFIssuer{})

	req := newTestRequest(t, "GET", "/auth/logout", nil, "sid", language.English)
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	w := httptest.NewRecorder()
	h.Logout(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "sid", clearedSession)
	assert.Equal(t, publicURL+"/", returnTo)
	assert.Equal(t, "https://idp.example/v2/logout?returnTo="+publicURL+"/", w.Header().Get("Location"))

	cookie := findCookie(w, "itqan_session")
	require.NotNil(t, cookie)
	assert.NotEqual(t, "sid", cookie.Value)
}

func TestLogout_GetRequiresSameOrigin(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		wantLogout bool
	}{
		{"same-origin fetch", map[string]string{"Sec-Fetch-Site": "same-origin"}, true},
		{"typed url", map[string]string{"Sec-Fetch-Site": "none"}, true},
		{"cross-site fetch", map[string]string{"Sec-Fetch-Site": "cross-site"}, false},
		{"same-site subdomain", map[string]string{"Sec-Fetch-Site": "same-site"}, false},
		{"matching referer", map[string]string{"Referer": publicURL + "/dashboard"}, true},
		{"foreign referer", map[string]string{"Referer": "https://evil.example/page"}, false},
		{"matching origin", map[string]string{"Origin": publicURL}, true},
		{"no provenance", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			sessions := &MockSessionService{
				LogoutFunc: func(ctx context.Context, sessionID, rt string) (string, error) {
					called = true
					return "https://idp.example/v2/logout", nil
				},
			}
			h, _ := newAuthHandler(sessions, &MockCSRFIssuer{})

			req := newTestRequest(t, "GET", "/auth/logout", nil, "sid", language.English)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			h.Logout(w, req)

			assert.Equal(t, http.StatusFound, w.Code)
			assert.Equal(t, tt.wantLogout, called)
			if tt.wantLogout {
				assert.Equal(t, "https://idp.example/v2/logout", w.Header().Get("Location"))
				return
			}
			assert.Equal(t, "/", w.Header().Get("Location"))
			assert.Nil(t, findCookie(w, "itqan_session"), "session is kept")
		})
	}
}

func TestLogout_PostReturnsURLEvenWhenClearFails(t *testing.T) {
	sessions := &MockSessionService{
		LogoutFunc: func(ctx context.Context, sessionID, rt string) (string, error) {
			return "https://idp.example/v2/logout", assert.AnError
		},
	}
	h, _ := newAuthHandler(sessions, &MockCSRFIssuer{})

	w := httptest.NewRecorder()
	h.Logout(w, newTestRequest(t, "POST", "/auth/logout?return_to=/login", nil, "sid", language.English))

	var resp map[string]string
	assertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "https://idp.example/v2/logout", resp["logout_url"])
}

func TestPasswordLogin_EmptyFieldsNeverCallProvider(t *testing.T) {
	called := false
	sessions := &MockSessionService{
		PasswordLoginFunc: func(ctx context.Context, sessionID, email, password string) (*session.Snapshot, error) {
			called = true
			return completeSnapshot(), nil
		},
	}
	h, _ := newAuthHandler(sessions, &MockCSRFIssuer{})

	w := httptest.NewRecorder()
	h.PasswordLogin(w, newTestRequest(t, "POST", "/api/v1/auth/login", forms.LoginForm{}, "sid", language.English))

	resp := assertErrorResponse(t, w, http.StatusUnprocessableEntity, pkghttp.CodeValidationFailed)
	assert.NotEmpty(t, resp.Fields["email"])
	assert.NotEmpty(t, resp.Fields["password"])
	assert.False(t, called)
}

func TestPasswordLogin_Success(t *testing.T) {
	var gotEmail string
	sessions := &MockSessionService{
		PasswordLoginFunc: func(ctx context.Context, sessionID, email, password string) (*session.Snapshot, error) {
			gotEmail = email
			return completeSnapshot(), nil
		},
	}
	h, _ := newAuthHandler(sessions, &MockCSRFIssuer{})

	w := httptest.NewRecorder()
	h.PasswordLogin(w, newTestRequest(t, "POST", "/api/v1/auth/login", forms.LoginForm{
		Email: " Amina@Example.com ", Password: "s3cret-pass",
	}, "sid", language.English))

	var resp struct {
		State      session.State `json:"state"`
		RedirectTo string        `json:"redirect_to"`
		CSRFToken  string        `json:"csrf_token"`
		Lang       string        `json:"lang"`
		Dir        string        `json:"dir"`
	}
	assertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "amina@example.com", gotEmail)
	assert.Equal(t, session.StateComplete, resp.State)
	assert.Equal(t, session.PathDashboard, resp.RedirectTo)
	assert.NotEmpty(t, resp.CSRFToken)
	assert.Equal(t, "en", resp.Lang)
	assert.Equal(t, "ltr", resp.Dir)
	assert.Equal(t, []string{"sid"}, sessions.Discarded)
}

func TestPasswordLogin_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		tag        language.Tag
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"invalid credentials", models.ErrInvalidCredentials, language.English, 401, pkghttp.CodeUnauthorized, "Incorrect email or password"},
		{"invalid credentials in arabic", models.ErrInvalidCredentials, language.Arabic, 401, pkghttp.CodeUnauthorized, "البريد الإلكتروني أو كلمة المرور غير صحيحة"},
		{"network", models.ErrNetwork, language.English, 502, pkghttp.CodeNetworkError, "Network error, please try again"},
		{"unexpected", assert.AnError, language.English, 500, pkghttp.CodeInternalError, "Something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &MockSessionService{
				PasswordLoginFunc: func(ctx context.Context, sessionID, email, password string) (*session.Snapshot, error) {
					return nil, tt.err
				},
			}
			h, _ := newAuthHandler(sessions, &MockCSRFIssuer{})

			w := httptest.NewRecorder()
			h.PasswordLogin(w, newTestRequest(t, "POST", "/api/v1/auth/login", forms.LoginForm{
				Email: "amina@example.com", Password: "wrong-password",
			}, "sid", tt.tag))

			resp := assertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
			assert.Equal(t, tt.wantMsg, resp.Message)
			assert.Nil(t, findCookie(w, "itqan_session"))
			assert.Empty(t, sessions.Discarded)
		})
	}
}

func TestPasswordLogin_RejectsConcurrentSubmit(t *testing.T) {
	h, inflight := newAuthHandler(&MockSessionService{}, &MockCSRFIssuer{})
	release, ok := inflight.Begin("sid", forms.FormLogin)
	require.True(t, ok)
	defer release()

	w := httptest.NewRecorder()
	h.PasswordLogin(w, newTestRequest(t, "POST", "/api/v1/auth/login", forms.LoginForm{
		Email: "amina@example.com", Password: "s3cret-pass",
	}, "sid", language.English))

	assertErrorResponse(t, w, http.StatusConflict, pkghttp.CodeSubmissionInProgress)
}

func TestPasswordLogin_MalformedBody(t *testing.T) {
	h, _ := newAuthHandler(&MockSessionService{}, &MockCSRFIssuer{})

	req := newTestRequest(t, "POST", "/api/v1/auth/login", map[string]any{"email": 42}, "sid", language.English)
	w := httptest.NewRecorder()
	h.PasswordLogin(w, req)

	assertErrorResponse(t, w, http.StatusBadRequest, pkghttp.CodeBadRequest)
}

func TestSignupSubmit_Success(t *testing.T) {
	var got identity.SignupRequest
	sessions := &MockSessionService{
		SignupFunc: func(ctx context.Context, sessionID string, req identity.SignupRequest) (*session.Snapshot, error) {
			got = req
			return incompleteSnapshot(), nil
		},
	}
	h, _ := newAuthHandler(sessions, &MockCSRFIssuer{})

	w := httptest.NewRecorder()
	h.SignupSubmit(w, newTestRequest(t, "POST", "/api/v1/auth/signup", forms.SignupForm{
		FirstName: "Amina", LastName: "Yusuf", Email: "amina@example.com", Password: "long-enough",
	}, "sid", language.English))

	var resp map[string]any
	assertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, session.PathCompleteProfile, resp["redirect_to"])
	assert.Equal(t, true, resp["requires_profile_completion"])
	assert.Equal(t, identity.SignupRequest{Email: "amina@example.com", Password: "long-enough", FirstName: "Amina", LastName: "Yusuf"}, got)
}

func TestSignupSubmit_ConflictUsesUpstreamMessage(t *testing.T) {
	sessions := &MockSessionService{
		SignupFunc: func(ctx context.Context, sessionID string, req identity.SignupRequest) (*session.Snapshot, error) {
			return nil, fmt.Errorf("%w: %w", models.ErrConflict, &models.UpstreamError{StatusCode: 400, Message: "The user already exists."})
		},
	}
	h, _ := newAuthHandler(sessions, &MockCSRFIssuer{})

	w := httptest.NewRecorder()
	h.SignupSubmit(w, newTestRequest(t, "POST", "/api/v1/auth/signup", forms.SignupForm{
		FirstName: "Amina", LastName: "Yusuf", Email: "amina@example.com", Password: "long-enough",
	}, "sid", language.English))

	resp := assertErrorResponse(t, w, http.StatusConflict, pkghttp.CodeConflict)
	assert.Equal(t, "The user already exists.", resp.Message)
}

func TestSignupSubmit_WeakPassword(t *testing.T) {
	h, _ := newAuthHandler(&MockSessionService{}, &MockCSRFIssuer{})

	w := httptest.NewRecorder()
	h.SignupSubmit(w, newTestRequest(t, "POST", "/api/v1/auth/signup", forms.SignupForm{
		FirstName: "Amina", LastName: "Yusuf", Email: "amina@example.com", Password: "short",
	}, "sid", language.English))

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, resp.Fields, "password")
	assert.NotContains(t, resp.Fields, "email")
}
