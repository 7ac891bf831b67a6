package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Itqan-community/itqan-cms/internal/auth"
	"github.com/Itqan-community/itqan-cms/internal/forms"
	"github.com/Itqan-community/itqan-cms/internal/i18n"
	"github.com/Itqan-community/itqan-cms/internal/identity"
	"github.com/Itqan-community/itqan-cms/internal/models"
	"github.com/Itqan-community/itqan-cms/internal/session"
	pkghttp "github.com/Itqan-community/itqan-cms/pkg/http"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

// MockSessionService implements handlers.SessionService for testing
type MockSessionService struct {
	SnapshotFunc        func(ctx context.Context, sessionID string) (*session.Snapshot, error)
	BeginLoginFunc      func(opts identity.LoginOptions) (*identity.AuthRequest, error)
	CompleteLoginFunc   func(ctx context.Context, sessionID, flowToken, state, code string) (*session.Snapshot, string, error)
	PasswordLoginFunc   func(ctx context.Context, sessionID, email, password string) (*session.Snapshot, error)
	SignupFunc          func(ctx context.Context, sessionID string, req identity.SignupRequest) (*session.Snapshot, error)
	LogoutFunc          func(ctx context.Context, sessionID, returnTo string) (string, error)
	SetUserFunc         func(ctx context.Context, sessionID string, user *models.User) (*session.Snapshot, error)
	CompleteProfileFunc func(ctx context.Context, sessionID string, form forms.ProfileForm, lang string) (*session.Snapshot, error)

	Discarded []string
}

func (m *MockSessionService) Snapshot(ctx context.Context, sessionID string) (*session.Snapshot, error) {
	if m.SnapshotFunc != nil {
		return m.SnapshotFunc(ctx, sessionID)
	}
	return anonymousSnapshot(), nil
}

func (m *MockSessionService) BeginLogin(opts identity.LoginOptions) (*identity.AuthRequest, error) {
	if m.BeginLoginFunc != nil {
		return m.BeginLoginFunc(opts)
	}
	return nil, models.ErrBadRequest
}

func (m *MockSessionService) CompleteLogin(ctx context.Context, sessionID, flowToken, state, code string) (*session.Snapshot, string, error) {
	if m.CompleteLoginFunc != nil {
		return m.CompleteLoginFunc(ctx, sessionID, flowToken, state, code)
	}
	return nil, "", models.ErrInvalidLoginState
}

func (m *MockSessionService) PasswordLogin(ctx context.Context, sessionID, email, password string) (*session.Snapshot, error) {
	if m.PasswordLoginFunc != nil {
		return m.PasswordLoginFunc(ctx, sessionID, email, password)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockSessionService) Signup(ctx context.Context, sessionID string, req identity.SignupRequest) (*session.Snapshot, error) {
	if m.SignupFunc != nil {
		return m.SignupFunc(ctx, sessionID, req)
	}
	return nil, models.ErrConflict
}

func (m *MockSessionService) Logout(ctx context.Context, sessionID, returnTo string) (string, error) {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, sessionID, returnTo)
	}
	return returnTo, nil
}

func (m *MockSessionService) Discard(ctx context.Context, sessionID string) error {
	m.Discarded = append(m.Discarded, sessionID)
	return nil
}

func (m *MockSessionService) SetUser(ctx context.Context, sessionID string, user *models.User) (*session.Snapshot, error) {
	if m.SetUserFunc != nil {
		return m.SetUserFunc(ctx, sessionID, user)
	}
	return nil, models.ErrNotAuthenticated
}

func (m *MockSessionService) CompleteProfile(ctx context.Context, sessionID string, form forms.ProfileForm, lang string) (*session.Snapshot, error) {
	if m.CompleteProfileFunc != nil {
		return m.CompleteProfileFunc(ctx, sessionID, form, lang)
	}
	return nil, models.ErrNotAuthenticated
}

// MockCSRFIssuer records the sessions it minted tokens for
type MockCSRFIssuer struct {
	Issued []string
}

func (m *MockCSRFIssuer) Issue(w http.ResponseWriter, sessionID string) (string, error) {
	m.Issued = append(m.Issued, sessionID)
	return "csrf-" + sessionID, nil
}

// MockDownloadSigner implements handlers.DownloadSigner for testing
type MockDownloadSigner struct {
	DownloadURLFunc func(ctx context.Context, key, filename string) (string, time.Time, error)
}

func (m *MockDownloadSigner) DownloadURL(ctx context.Context, key, filename string) (string, time.Time, error) {
	return m.DownloadURLFunc(ctx, key, filename)
}

// MockHealthChecker implements handlers.HealthChecker for testing
type MockHealthChecker struct {
	Err error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.Err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSessionConfig() auth.SessionConfig {
	return auth.SessionConfig{CookieName: "itqan_session", TTL: time.Hour, Cookie: auth.CookieConfig{SameSite: "lax"}}
}

func anonymousSnapshot() *session.Snapshot {
	return &session.Snapshot{State: session.StateAnonymous}
}

func completeSnapshot() *session.Snapshot {
	return &session.Snapshot{
		State:           session.StateComplete,
		IsAuthenticated: true,
		User: &models.User{
			ID: "auth0|42", Auth0ID: "auth0|42", Email: "amina@example.com",
			FirstName: "Amina", LastName: "Yusuf", ProfileCompleted: true,
		},
	}
}

func incompleteSnapshot() *session.Snapshot {
	snap := completeSnapshot()
	snap.State = session.StateIncomplete
	snap.RequiresProfileCompletion = true
	snap.User.ProfileCompleted = false
	return snap
}

// newTestRequest builds a JSON request carrying a session ID and language.
func newTestRequest(t *testing.T, method, url string, body any, sessionID string, tag language.Tag) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	ctx := auth.WithSessionID(req.Context(), sessionID)
	ctx = i18n.WithTag(ctx, tag)
	return req.WithContext(ctx)
}

func assertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	if target != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response JSON")
	}
}

func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
