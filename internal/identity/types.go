package identity

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Screen hints understood by the hosted login page.
const (
	ScreenHintLogin  = "login"
	ScreenHintSignup = "signup"
)

// ProfileCompletedClaim is the namespaced ID-token claim the tenant's login
// action sets once the backend has accepted a profile.
const ProfileCompletedClaim = "https://itqan.dev/profile_completed"

// Claims is the subset of ID-token claims the gateway consumes.
type Claims struct {
	Subject          string `json:"sub"`
	Email            string `json:"email"`
	EmailVerified    bool   `json:"email_verified"`
	GivenName        string `json:"given_name"`
	FamilyName       string `json:"family_name"`
	Name             string `json:"name"`
	Nickname         string `json:"nickname"`
	Nonce            string `json:"nonce"`
	ProfileCompleted bool   `json:"https://itqan.dev/profile_completed"`
}

// SplitName returns first and last name, falling back to the full name claim.
func (c *Claims) SplitName() (string, string) {
	if c.GivenName != "" || c.FamilyName != "" {
		return c.GivenName, c.FamilyName
	}
	name := strings.TrimSpace(c.Name)
	if name == "" || strings.Contains(name, "@") {
		return c.Nickname, ""
	}
	first, last, _ := strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}

// TokenSet is the persisted form of the provider tokens for one session.
type TokenSet struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// expiryDelta mirrors oauth2's early-expiry window.
const expiryDelta = 30 * time.Second

// Fresh reports whether the access token can be used without a refresh.
func (t *TokenSet) Fresh(now time.Time) bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return now.Add(expiryDelta).Before(t.Expiry)
}

// Authenticated reports whether the provider session is still usable, either
// directly or through a refresh.
func (t *TokenSet) Authenticated(now time.Time) bool {
	if t == nil {
		return false
	}
	return t.Fresh(now) || t.RefreshToken != ""
}

func (t *TokenSet) oauth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

func tokenSetFrom(tok *oauth2.Token, previous *TokenSet) *TokenSet {
	ts := &TokenSet{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if raw, ok := tok.Extra("id_token").(string); ok {
		ts.IDToken = raw
	}
	if previous != nil {
		if ts.RefreshToken == "" {
			ts.RefreshToken = previous.RefreshToken
		}
		if ts.IDToken == "" {
			ts.IDToken = previous.IDToken
		}
	}
	return ts
}

// Result is the outcome of a successful authentication.
type Result struct {
	Claims Claims
	Tokens TokenSet
}

// LoginOptions parameterise the authorize redirect.
type LoginOptions struct {
	Connection string
	ScreenHint string
	LoginHint  string
	ReturnTo   string
}

// AuthRequest is a prepared authorize redirect plus the signed flow state the
// callback needs to finish it.
type AuthRequest struct {
	URL       string
	FlowToken string
	ExpiresAt time.Time
}

// SignupRequest creates a database-connection user.
type SignupRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// SafeReturnTo keeps only local absolute paths so the login flow cannot be
// turned into an open redirect.
func SafeReturnTo(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return ""
	}
	if strings.ContainsAny(path, "\r\n") {
		return ""
	}
	return path
}
