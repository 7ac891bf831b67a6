package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Itqan-community/itqan-cms/internal/backend"
	"github.com/Itqan-community/itqan-cms/internal/forms"
	"github.com/Itqan-community/itqan-cms/internal/identity"
	"github.com/Itqan-community/itqan-cms/internal/models"
	pkglogger "github.com/Itqan-community/itqan-cms/pkg/logger"
)

// IdentityProvider is the part of the identity bridge the reconciler drives.
type IdentityProvider interface {
	AuthorizationRequest(opts identity.LoginOptions) (*identity.AuthRequest, error)
	DecodeFlow(token string) (*identity.Flow, error)
	Exchange(ctx context.Context, code string, flow *identity.Flow) (*identity.Result, error)
	PasswordLogin(ctx context.Context, email, password string) (*identity.Result, error)
	Signup(ctx context.Context, req identity.SignupRequest) error
	UserInfoEmail(ctx context.Context, tokens *identity.TokenSet) (string, error)
	Token(ctx context.Context, tokens *identity.TokenSet) (*identity.TokenSet, error)
	LogoutURL(returnTo, idTokenHint string) string
}

// ProfileSubmitter relays a completed profile to the backend.
type ProfileSubmitter interface {
	CompleteProfile(ctx context.Context, accessToken string, req backend.CompleteProfileRequest) (*models.User, error)
}

// WelcomeNotifier is told about users who just completed their profile.
type WelcomeNotifier interface {
	SendWelcome(ctx context.Context, user *models.User, lang string) error
}

// ProviderState is what the identity bridge knows about a session.
type ProviderState struct {
	Loading       bool
	Authenticated bool
	Claims        *identity.Claims
	Tokens        *identity.TokenSet
}

// Snapshot is the reconciled view of one session.
type Snapshot struct {
	State                     State        `json:"state"`
	User                      *models.User `json:"user"`
	IsAuthenticated           bool         `json:"is_authenticated"`
	RequiresProfileCompletion bool         `json:"requires_profile_completion"`
}

func snapshotOf(in Inputs) *Snapshot {
	return snapshotIn(Derive(in), in.User)
}

func snapshotIn(state State, user *models.User) *Snapshot {
	return &Snapshot{
		State:                     state,
		User:                      user,
		IsAuthenticated:           state.Authenticated(),
		RequiresProfileCompletion: state == StateIncomplete,
	}
}

// Reconciler merges identity-provider state with the persisted session
// record. It is the only writer of that record.
type Reconciler struct {
	store    Store
	idp      IdentityProvider
	backend  ProfileSubmitter
	notifier WelcomeNotifier
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
	now      func() time.Time
}

// NewReconciler creates a Reconciler.
func NewReconciler(store Store, idp IdentityProvider, submitter ProfileSubmitter, logger *slog.Logger, audit *pkglogger.AuditLogger) *Reconciler {
	return &Reconciler{
		store:   store,
		idp:     idp,
		backend: submitter,
		logger:  logger,
		audit:   audit,
		now:     time.Now,
	}
}

// SetWelcomeNotifier enables the welcome message after profile completion.
func (r *Reconciler) SetWelcomeNotifier(n WelcomeNotifier) {
	r.notifier = n
}

type record struct {
	user      *models.User
	completed bool
	tokens    *identity.TokenSet
}

func (r *Reconciler) load(ctx context.Context, sessionID string) (*record, error) {
	rec := &record{}
	if sessionID == "" {
		return rec, nil
	}

	raw, ok, err := r.store.GetItem(ctx, sessionID, KeyUser)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if ok {
		var user models.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			r.logger.Warn("discarding unreadable session user", "error", err)
		} else {
			rec.user = &user
		}
	}

	flag, ok, err := r.store.GetItem(ctx, sessionID, KeyProfileCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to load completion flag: %w", err)
	}
	rec.completed = ok && flag == ProfileCompletedFlag

	raw, ok, err = r.store.GetItem(ctx, sessionID, KeyTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}
	if ok {
		var tokens identity.TokenSet
		if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
			r.logger.Warn("discarding unreadable session tokens", "error", err)
		} else {
			rec.tokens = &tokens
		}
	}
	return rec, nil
}

func (r *Reconciler) inputs(rec *record) Inputs {
	return Inputs{
		ProviderAuthenticated: rec.tokens.Authenticated(r.now()),
		User:                  rec.user,
		PersistedCompleted:    rec.completed,
	}
}

func (r *Reconciler) saveUser(ctx context.Context, sessionID string, user *models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := r.store.SetItem(ctx, sessionID, KeyUser, string(raw)); err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}
	return nil
}

func (r *Reconciler) saveTokens(ctx context.Context, sessionID string, tokens *identity.TokenSet) error {
	raw, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to encode tokens: %w", err)
	}
	if err := r.store.SetItem(ctx, sessionID, KeyTokens, string(raw)); err != nil {
		return fmt.Errorf("failed to persist tokens: %w", err)
	}
	return nil
}

func (r *Reconciler) markCompleted(ctx context.Context, sessionID string) error {
	if err := r.store.SetItem(ctx, sessionID, KeyProfileCompleted, ProfileCompletedFlag); err != nil {
		return fmt.Errorf("failed to persist completion flag: %w", err)
	}
	return nil
}

func (r *Reconciler) clear(ctx context.Context, sessionID string) error {
	var errs []error
	for _, key := range []string{KeyUser, KeyProfileCompleted, KeyTokens} {
		if err := r.store.RemoveItem(ctx, sessionID, key); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to clear session: %w", errors.Join(errs...))
	}
	return nil
}

// Snapshot returns the current reconciled view. A session whose provider
// tokens are no longer usable is synced as anonymous.
func (r *Reconciler) Snapshot(ctx context.Context, sessionID string) (*Snapshot, error) {
	rec, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	in := r.inputs(rec)
	if !in.ProviderAuthenticated && (rec.user != nil || rec.completed || rec.tokens != nil) {
		return r.Sync(ctx, sessionID, ProviderState{})
	}
	return snapshotOf(in), nil
}

// Sync applies the provider's view of the session. While the provider is
// loading nothing is written.
func (r *Reconciler) Sync(ctx context.Context, sessionID string, ps ProviderState) (*Snapshot, error) {
	rec, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	from := Derive(r.inputs(rec))

	if ps.Loading {
		return snapshotIn(Transition(from, Event{Kind: EventProviderLoading}), rec.user), nil
	}

	if !ps.Authenticated || ps.Claims == nil || ps.Tokens == nil {
		if err := r.clear(ctx, sessionID); err != nil {
			return nil, err
		}
		return snapshotIn(Transition(from, Event{Kind: EventProviderAnonymous}), nil), nil
	}

	user := userFromClaims(ps.Claims)
	if user.Email == "" {
		email, err := r.idp.UserInfoEmail(ctx, ps.Tokens)
		if err != nil {
			r.logger.Warn("failed to resolve email from user info", pkglogger.SubjectAttr(user.Auth0ID), "error", err)
		} else {
			user.Email = email
		}
	}

	completed := ps.Claims.ProfileCompleted
	if prev := rec.user; prev != nil && prev.Auth0ID == user.Auth0ID {
		mergeProfile(user, prev)
		completed = completed || rec.completed || prev.ProfileCompleted
	} else if rec.completed {
		// Flag left over from a different account.
		if err := r.store.RemoveItem(ctx, sessionID, KeyProfileCompleted); err != nil {
			return nil, fmt.Errorf("failed to reset completion flag: %w", err)
		}
	}
	user.ProfileCompleted = completed

	if err := r.saveUser(ctx, sessionID, user); err != nil {
		return nil, err
	}
	if completed {
		if err := r.markCompleted(ctx, sessionID); err != nil {
			return nil, err
		}
	}
	if err := r.saveTokens(ctx, sessionID, ps.Tokens); err != nil {
		return nil, err
	}

	state := Transition(from, Event{Kind: EventProviderAuthenticated, ProfileCompleted: completed})
	return snapshotIn(state, user), nil
}

func userFromClaims(c *identity.Claims) *models.User {
	first, last := c.SplitName()
	return &models.User{
		ID:               c.Subject,
		Email:            c.Email,
		FirstName:        first,
		LastName:         last,
		Provider:         models.ProviderFromSubject(c.Subject),
		ProfileCompleted: c.ProfileCompleted,
		Auth0ID:          c.Subject,
	}
}

// mergeProfile carries backend-assigned and profile fields of prev over to a
// user rebuilt from fresh claims.
func mergeProfile(user, prev *models.User) {
	if prev.ID != "" {
		user.ID = prev.ID
	}
	if user.Email == "" {
		user.Email = prev.Email
	}
	if prev.ProfileCompleted || prev.JobTitle != "" {
		user.FirstName = firstNonEmpty(prev.FirstName, user.FirstName)
		user.LastName = firstNonEmpty(prev.LastName, user.LastName)
	}
	user.JobTitle = prev.JobTitle
	user.PhoneNumber = prev.PhoneNumber
	user.BusinessModel = prev.BusinessModel
	user.TeamSize = prev.TeamSize
	user.AboutYourself = prev.AboutYourself
}

// BeginLogin prepares the provider redirect for a login or signup.
func (r *Reconciler) BeginLogin(opts identity.LoginOptions) (*identity.AuthRequest, error) {
	return r.idp.AuthorizationRequest(opts)
}

// CompleteLogin finishes a redirect login: it checks the returned state
// against the signed flow, exchanges the code and syncs the session. It
// returns the local path the login started from, if any.
func (r *Reconciler) CompleteLogin(ctx context.Context, sessionID, flowToken, state, code string) (*Snapshot, string, error) {
	flow, err := r.idp.DecodeFlow(flowToken)
	if err != nil {
		r.audit.Log(ctx, pkglogger.AuditEvent{EventType: pkglogger.EventLoginFailed, FailureReason: "invalid_flow"})
		return nil, "", err
	}
	if state == "" || state != flow.State {
		r.audit.Log(ctx, pkglogger.AuditEvent{EventType: pkglogger.EventLoginFailed, FailureReason: "state_mismatch"})
		return nil, "", fmt.Errorf("%w: state mismatch", models.ErrInvalidLoginState)
	}

	result, err := r.idp.Exchange(ctx, code, flow)
	if err != nil {
		r.logger.Warn("authorization code exchange failed", "error", err)
		r.audit.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventLoginFailed,
			Provider:      flow.Connection,
			FailureReason: "code_exchange",
		})
		return nil, "", err
	}

	snap, err := r.signIn(ctx, sessionID, result, flow.Connection)
	if err != nil {
		return nil, "", err
	}
	return snap, flow.ReturnTo, nil
}

// PasswordLogin signs a database-connection user in.
func (r *Reconciler) PasswordLogin(ctx context.Context, sessionID, email, password string) (*Snapshot, error) {
	result, err := r.idp.PasswordLogin(ctx, email, password)
	if err != nil {
		r.audit.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventLoginFailed,
			Email:         email,
			FailureReason: failureReason(err),
		})
		return nil, err
	}
	return r.signIn(ctx, sessionID, result, "password")
}

func (r *Reconciler) signIn(ctx context.Context, sessionID string, result *identity.Result, method string) (*Snapshot, error) {
	tokens := result.Tokens
	snap, err := r.Sync(ctx, sessionID, ProviderState{
		Authenticated: true,
		Claims:        &result.Claims,
		Tokens:        &tokens,
	})
	if err != nil {
		return nil, err
	}

	r.audit.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLogin,
		UserID:    snap.User.Auth0ID,
		Email:     snap.User.Email,
		Provider:  snap.User.Provider,
		Success:   true,
		Metadata:  map[string]string{"method": method},
	})
	return snap, nil
}

// Signup creates a database-connection account and signs it in.
func (r *Reconciler) Signup(ctx context.Context, sessionID string, req identity.SignupRequest) (*Snapshot, error) {
	if err := r.idp.Signup(ctx, req); err != nil {
		r.logger.Warn("signup failed", "email", pkglogger.SanitizedEmail(req.Email), "error", err)
		r.audit.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventSignupFailed,
			Email:         req.Email,
			FailureReason: failureReason(err),
		})
		return nil, err
	}
	r.audit.Log(ctx, pkglogger.AuditEvent{EventType: pkglogger.EventSignup, Email: req.Email, Success: true})

	return r.PasswordLogin(ctx, sessionID, req.Email, req.Password)
}

// Logout clears the session record and returns the provider logout URL that
// lands on returnTo. The record is cleared even if reading it fails.
func (r *Reconciler) Logout(ctx context.Context, sessionID, returnTo string) (string, error) {
	var idTokenHint, userID string
	if rec, err := r.load(ctx, sessionID); err != nil {
		r.logger.Warn("failed to read session before logout", "error", err)
	} else {
		if rec.tokens != nil {
			idTokenHint = rec.tokens.IDToken
		}
		if rec.user != nil {
			userID = rec.user.Auth0ID
		}
	}

	err := r.store.Clear(ctx, sessionID)
	if err != nil {
		err = fmt.Errorf("failed to clear session: %w", err)
	}

	r.audit.Log(ctx, pkglogger.AuditEvent{EventType: pkglogger.EventLogout, UserID: userID, Success: err == nil})
	return r.idp.LogoutURL(returnTo, idTokenHint), err
}

// Discard drops a session record without contacting the provider, used when
// a session ID is rotated.
func (r *Reconciler) Discard(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return r.store.Clear(ctx, sessionID)
}

// SetUser replaces the session's user. The provider identity and the
// completion flag of the current user are kept; only CompleteProfile marks a
// profile complete.
func (r *Reconciler) SetUser(ctx context.Context, sessionID string, user *models.User) (*Snapshot, error) {
	rec, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !rec.tokens.Authenticated(r.now()) || rec.user == nil {
		return nil, models.ErrNotAuthenticated
	}

	next := *user
	next.Auth0ID = rec.user.Auth0ID
	next.Provider = rec.user.Provider
	if next.ID == "" {
		next.ID = rec.user.ID
	}
	if next.ProfileCompleted != rec.user.ProfileCompleted {
		r.logger.Warn("ignoring client-supplied profile completion flag", pkglogger.SubjectAttr(rec.user.Auth0ID))
	}
	next.ProfileCompleted = rec.user.ProfileCompleted || rec.completed

	if err := r.saveUser(ctx, sessionID, &next); err != nil {
		return nil, err
	}

	state := Transition(Derive(r.inputs(rec)), Event{Kind: EventUserReplaced, ProfileCompleted: next.ProfileCompleted})
	return snapshotIn(state, &next), nil
}

// CompleteProfile submits form to the backend with a silently refreshed
// access token. On success the user is updated and marked complete.
func (r *Reconciler) CompleteProfile(ctx context.Context, sessionID string, form forms.ProfileForm, lang string) (*Snapshot, error) {
	rec, err := r.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if rec.user == nil || rec.tokens == nil {
		return nil, models.ErrNotAuthenticated
	}

	tokens, err := r.idp.Token(ctx, rec.tokens)
	if err != nil {
		r.logger.Warn("failed to obtain access token for profile completion", "error", err)
		r.profileFailed(ctx, rec.user, err)
		return nil, err
	}
	if tokens != rec.tokens {
		if err := r.saveTokens(ctx, sessionID, tokens); err != nil {
			return nil, err
		}
	}

	user := *rec.user
	user.FirstName = form.FirstName
	user.LastName = form.LastName
	user.JobTitle = form.JobTitle
	user.PhoneNumber = form.PhoneNumber
	user.BusinessModel = form.BusinessModel
	user.TeamSize = form.TeamSize
	user.AboutYourself = form.AboutYourself

	updated, err := r.backend.CompleteProfile(ctx, tokens.AccessToken, backend.CompleteProfileRequest{
		Auth0ID:       user.Auth0ID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		JobTitle:      user.JobTitle,
		PhoneNumber:   user.PhoneNumber,
		BusinessModel: user.BusinessModel,
		TeamSize:      user.TeamSize,
		AboutYourself: user.AboutYourself,
	})
	if err != nil {
		r.logger.Error("profile completion failed", pkglogger.SubjectAttr(user.Auth0ID), "error", err)
		r.profileFailed(ctx, &user, err)
		return nil, err
	}
	if updated != nil {
		user.ID = firstNonEmpty(updated.ID, user.ID)
		user.Email = firstNonEmpty(updated.Email, user.Email)
	}
	user.ProfileCompleted = true

	if err := r.saveUser(ctx, sessionID, &user); err != nil {
		return nil, err
	}
	if err := r.markCompleted(ctx, sessionID); err != nil {
		return nil, err
	}

	r.audit.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventProfileCompleted,
		UserID:    user.Auth0ID,
		Email:     user.Email,
		Success:   true,
	})

	if r.notifier != nil {
		if err := r.notifier.SendWelcome(ctx, &user, lang); err != nil {
			r.logger.Warn("failed to send welcome email", pkglogger.SubjectAttr(user.Auth0ID), "error", err)
		}
	}

	from := Derive(Inputs{ProviderAuthenticated: true, User: rec.user, PersistedCompleted: rec.completed})
	return snapshotIn(Transition(from, Event{Kind: EventProfileCompleted}), &user), nil
}

func (r *Reconciler) profileFailed(ctx context.Context, user *models.User, err error) {
	r.audit.Log(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.EventProfileFailed,
		UserID:        user.Auth0ID,
		FailureReason: failureReason(err),
	})
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, models.ErrConflict):
		return "conflict"
	case errors.Is(err, models.ErrNetwork):
		return "network"
	case errors.Is(err, models.ErrNotAuthenticated), errors.Is(err, models.ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
