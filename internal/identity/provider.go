// Package identity bridges the gateway to the OIDC identity provider: login
// and logout redirects, code exchange, password login, signup, silent token
// retrieval and the user-info fallback.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/Itqan-community/itqan-cms/internal/models"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Config describes one OIDC client registration.
type Config struct {
	IssuerURL          string
	ClientID           string
	ClientSecret       string
	Audience           string
	Scopes             []string
	RedirectURL        string
	DBConnection       string
	AllowedConnections []string
	HTTPClient         *http.Client
}

// Provider is the identity bridge backed by go-oidc and x/oauth2.
type Provider struct {
	oidc               *oidc.Provider
	oauth              *oauth2.Config
	verifier           *oidc.IDTokenVerifier
	flows              *FlowCodec
	httpClient         *http.Client
	issuer             string
	audience           string
	dbConnection       string
	allowedConnections []string
	endSessionURL      string
	now                func() time.Time
}

// NewProvider performs OIDC discovery against cfg.IssuerURL.
func NewProvider(ctx context.Context, cfg Config, flows *FlowCodec) (*Provider, error) {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	issuer := strings.TrimRight(cfg.IssuerURL, "/") + "/"
	provider, err := newOIDCProvider(oidc.ClientContext(ctx, client), issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	var discovery struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	_ = provider.Claims(&discovery)

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess}
	}

	return &Provider{
		oidc: provider,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
		},
		verifier:           provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		flows:              flows,
		httpClient:         client,
		issuer:             issuer,
		audience:           cfg.Audience,
		dbConnection:       cfg.DBConnection,
		allowedConnections: cfg.AllowedConnections,
		endSessionURL:      discovery.EndSessionEndpoint,
		now:                time.Now,
	}, nil
}

// newOIDCProvider tolerates issuers advertised with or without the trailing
// slash (Auth0 uses it, most others do not).
func newOIDCProvider(ctx context.Context, issuer string) (*oidc.Provider, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err == nil {
		return provider, nil
	}
	trimmed := strings.TrimRight(issuer, "/")
	if alt, altErr := oidc.NewProvider(ctx, trimmed); altErr == nil {
		return alt, nil
	}
	return nil, err
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(oidc.ClientContext(ctx, p.httpClient), oauth2.HTTPClient, p.httpClient)
}

// AuthorizationRequest builds the authorize redirect for opts. PKCE, state and
// nonce are generated per request and carried in the signed flow token.
func (p *Provider) AuthorizationRequest(opts LoginOptions) (*AuthRequest, error) {
	if opts.Connection != "" && !slices.Contains(p.allowedConnections, opts.Connection) {
		return nil, fmt.Errorf("%w: unsupported connection %q", models.ErrBadRequest, opts.Connection)
	}
	switch opts.ScreenHint {
	case "", ScreenHintLogin, ScreenHintSignup:
	default:
		return nil, fmt.Errorf("%w: unsupported screen hint %q", models.ErrBadRequest, opts.ScreenHint)
	}

	flow := Flow{
		State:      uuid.NewString(),
		Nonce:      uuid.NewString(),
		Verifier:   oauth2.GenerateVerifier(),
		ReturnTo:   SafeReturnTo(opts.ReturnTo),
		Connection: opts.Connection,
	}
	token, expiresAt, err := p.flows.Encode(flow)
	if err != nil {
		return nil, err
	}

	params := []oauth2.AuthCodeOption{
		oauth2.S256ChallengeOption(flow.Verifier),
		oidc.Nonce(flow.Nonce),
	}
	if p.audience != "" {
		params = append(params, oauth2.SetAuthURLParam("audience", p.audience))
	}
	if opts.Connection != "" {
		params = append(params, oauth2.SetAuthURLParam("connection", opts.Connection))
	}
	if opts.ScreenHint != "" {
		params = append(params, oauth2.SetAuthURLParam("screen_hint", opts.ScreenHint))
	}
	if opts.LoginHint != "" {
		params = append(params, oauth2.SetAuthURLParam("login_hint", opts.LoginHint))
	}

	return &AuthRequest{
		URL:       p.oauth.AuthCodeURL(flow.State, params...),
		FlowToken: token,
		ExpiresAt: expiresAt,
	}, nil
}

// DecodeFlow validates a flow token issued by AuthorizationRequest.
func (p *Provider) DecodeFlow(token string) (*Flow, error) {
	return p.flows.Decode(token)
}

// Exchange trades an authorization code for tokens and verified claims.
func (p *Provider) Exchange(ctx context.Context, code string, flow *Flow) (*Result, error) {
	if code == "" || flow == nil {
		return nil, models.ErrInvalidLoginState
	}

	tok, err := p.oauth.Exchange(p.clientContext(ctx), code, oauth2.VerifierOption(flow.Verifier))
	if err != nil {
		return nil, mapTokenError("code exchange", err)
	}

	result, err := p.resultFromToken(ctx, tok)
	if err != nil {
		return nil, err
	}
	if result.Claims.Nonce != flow.Nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", models.ErrInvalidLoginState)
	}
	return result, nil
}

// PasswordLogin authenticates database-connection credentials with the
// resource-owner password grant.
func (p *Provider) PasswordLogin(ctx context.Context, email, password string) (*Result, error) {
	tok, err := p.oauth.PasswordCredentialsToken(p.clientContext(ctx), email, password)
	if err != nil {
		return nil, mapTokenError("password login", err)
	}
	return p.resultFromToken(ctx, tok)
}

func (p *Provider) resultFromToken(ctx context.Context, tok *oauth2.Token) (*Result, error) {
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: no id_token in token response", models.ErrInvalidResponse)
	}

	idToken, err := p.verifier.Verify(oidc.ClientContext(ctx, p.httpClient), rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: id token verification failed: %v", models.ErrUnauthorized, err)
	}

	var claims Claims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to decode claims: %v", models.ErrInvalidResponse, err)
	}

	return &Result{Claims: claims, Tokens: *tokenSetFrom(tok, nil)}, nil
}

// Signup creates a user in the configured database connection.
func (p *Provider) Signup(ctx context.Context, req SignupRequest) error {
	body, err := json.Marshal(map[string]string{
		"client_id":   p.oauth.ClientID,
		"connection":  p.dbConnection,
		"email":       req.Email,
		"password":    req.Password,
		"given_name":  req.FirstName,
		"family_name": req.LastName,
		"name":        strings.TrimSpace(req.FirstName + " " + req.LastName),
	})
	if err != nil {
		return fmt.Errorf("failed to encode signup request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.issuer+"dbconnections/signup", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build signup request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: signup: %v", models.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var payload struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Message     string `json:"message"`
		Error       string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)

	msg := firstNonEmpty(payload.Description, payload.Message, payload.Error, payload.Code, resp.Status)
	upstream := &models.UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	if payload.Code == "user_exists" || payload.Code == "invalid_signup" {
		return fmt.Errorf("%w: %w", models.ErrConflict, upstream)
	}
	return upstream
}

// UserInfoEmail resolves the email from the user-info endpoint, used when the
// ID token does not carry it.
func (p *Provider) UserInfoEmail(ctx context.Context, tokens *TokenSet) (string, error) {
	if tokens == nil || tokens.AccessToken == "" {
		return "", models.ErrNotAuthenticated
	}
	info, err := p.oidc.UserInfo(p.clientContext(ctx), oauth2.StaticTokenSource(tokens.oauth2Token()))
	if err != nil {
		return "", fmt.Errorf("%w: userinfo: %v", models.ErrNetwork, err)
	}
	return info.Email, nil
}

// Token returns a usable token set, refreshing silently when the access token
// has expired. The returned set must be persisted by the caller when it
// differs from the input.
func (p *Provider) Token(ctx context.Context, tokens *TokenSet) (*TokenSet, error) {
	if tokens == nil {
		return nil, models.ErrNotAuthenticated
	}
	if tokens.Fresh(p.now()) {
		return tokens, nil
	}
	if tokens.RefreshToken == "" {
		return nil, fmt.Errorf("%w: access token expired", models.ErrNotAuthenticated)
	}

	tok, err := p.oauth.TokenSource(p.clientContext(ctx), tokens.oauth2Token()).Token()
	if err != nil {
		return nil, mapTokenError("token refresh", err)
	}
	return tokenSetFrom(tok, tokens), nil
}

// LogoutURL returns the provider logout redirect that lands on returnTo.
func (p *Provider) LogoutURL(returnTo string, idTokenHint string) string {
	q := url.Values{}
	q.Set("client_id", p.oauth.ClientID)

	if p.endSessionURL != "" {
		q.Set("post_logout_redirect_uri", returnTo)
		if idTokenHint != "" {
			q.Set("id_token_hint", idTokenHint)
		}
		return p.endSessionURL + "?" + q.Encode()
	}

	q.Set("returnTo", returnTo)
	return p.issuer + "v2/logout?" + q.Encode()
}

func mapTokenError(op string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case "invalid_grant", "access_denied", "invalid_user_password", "unauthorized_client":
			return fmt.Errorf("%w: %s: %s", models.ErrInvalidCredentials, op, re.ErrorDescription)
		}
		if re.Response != nil && re.Response.StatusCode >= 400 && re.Response.StatusCode < 500 {
			return fmt.Errorf("%w: %s: %s", models.ErrUnauthorized, op, re.ErrorCode)
		}
	}
	return fmt.Errorf("%w: %s: %v", models.ErrNetwork, op, err)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
