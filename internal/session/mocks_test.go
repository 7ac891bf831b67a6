package session

import (
	"context"
	"io"
	"log/slog"

	"github.com/Itqan-community/itqan-cms/internal/backend"
	"github.com/Itqan-community/itqan-cms/internal/identity"
	"github.com/Itqan-community/itqan-cms/internal/models"
	pkglogger "github.com/Itqan-community/itqan-cms/pkg/logger"
)

// MockIdentityProvider implements IdentityProvider for testing
type MockIdentityProvider struct {
	AuthorizationRequestFunc func(opts identity.LoginOptions) (*identity.AuthRequest, error)
	DecodeFlowFunc           func(token string) (*identity.Flow, error)
	ExchangeFunc             func(ctx context.Context, code string, flow *identity.Flow) (*identity.Result, error)
	PasswordLoginFunc        func(ctx context.Context, email, password string) (*identity.Result, error)
	SignupFunc               func(ctx context.Context, req identity.SignupRequest) error
	UserInfoEmailFunc        func(ctx context.Context, tokens *identity.TokenSet) (string, error)
	TokenFunc                func(ctx context.Context, tokens *identity.TokenSet) (*identity.TokenSet, error)

	UserInfoCalls int
}

func (m *MockIdentityProvider) AuthorizationRequest(opts identity.LoginOptions) (*identity.AuthRequest, error) {
	if m.AuthorizationRequestFunc != nil {
		return m.AuthorizationRequestFunc(opts)
	}
	return &identity.AuthRequest{URL: "https://idp.example/authorize", FlowToken: "flow"}, nil
}

func (m *MockIdentityProvider) DecodeFlow(token string) (*identity.Flow, error) {
	if m.DecodeFlowFunc != nil {
		return m.DecodeFlowFunc(token)
	}
	return nil, models.ErrInvalidLoginState
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, code string, flow *identity.Flow) (*identity.Result, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, code, flow)
	}
	return nil, models.ErrInvalidLoginState
}

func (m *MockIdentityProvider) PasswordLogin(ctx context.Context, email, password string) (*identity.Result, error) {
	if m.PasswordLoginFunc != nil {
		return m.PasswordLoginFunc(ctx, email, password)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockIdentityProvider) Signup(ctx context.Context, req identity.SignupRequest) error {
	if m.SignupFunc != nil {
		return m.SignupFunc(ctx, req)
	}
	return nil
}

func (m *MockIdentityProvider) UserInfoEmail(ctx context.Context, tokens *identity.TokenSet) (string, error) {
	m.UserInfoCalls++
	if m.UserInfoEmailFunc != nil {
		return m.UserInfoEmailFunc(ctx, tokens)
	}
	return "", models.ErrNetwork
}

func (m *MockIdentityProvider) Token(ctx context.Context, tokens *identity.TokenSet) (*identity.TokenSet, error) {
	if m.TokenFunc != nil {
		return m.TokenFunc(ctx, tokens)
	}
	return tokens, nil
}

func (m *MockIdentityProvider) LogoutURL(returnTo, idTokenHint string) string {
	return "https://idp.example/v2/logout?returnTo=" + returnTo + "&hint=" + idTokenHint
}

// MockProfileSubmitter implements ProfileSubmitter for testing
type MockProfileSubmitter struct {
	CompleteProfileFunc func(ctx context.Context, accessToken string, req backend.CompleteProfileRequest) (*models.User, error)

	Calls int
}

func (m *MockProfileSubmitter) CompleteProfile(ctx context.Context, accessToken string, req backend.CompleteProfileRequest) (*models.User, error) {
	m.Calls++
	if m.CompleteProfileFunc != nil {
		return m.CompleteProfileFunc(ctx, accessToken, req)
	}
	return &models.User{}, nil
}

// MockWelcomeNotifier implements WelcomeNotifier for testing
type MockWelcomeNotifier struct {
	SendWelcomeFunc func(ctx context.Context, user *models.User, lang string) error
}

func (m *MockWelcomeNotifier) SendWelcome(ctx context.Context, user *models.User, lang string) error {
	if m.SendWelcomeFunc != nil {
		return m.SendWelcomeFunc(ctx, user, lang)
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestReconciler(store Store, idp *MockIdentityProvider, submitter *MockProfileSubmitter) *Reconciler {
	logger := testLogger()
	return NewReconciler(store, idp, submitter, logger, pkglogger.NewAuditLogger(logger))
}
