// Package forms holds the login, signup and profile-completion forms together
// with their field-level validation.
package forms

import (
	"strings"
)

// Form names used to track in-flight submissions.
const (
	FormLogin   = "login"
	FormSignup  = "signup"
	FormProfile = "complete_profile"
)

// LoginForm collects database-connection credentials.
type LoginForm struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

func (f *LoginForm) Normalize() {
	f.Email = normalizeEmail(f.Email)
}

// SignupForm creates a database-connection account at the identity provider.
type SignupForm struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
}

func (f *SignupForm) Normalize() {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.Email = normalizeEmail(f.Email)
}

// ProfileForm holds the business and contact fields collected after signup.
type ProfileForm struct {
	FirstName     string `json:"first_name" validate:"required,max=100"`
	LastName      string `json:"last_name" validate:"required,max=100"`
	JobTitle      string `json:"job_title" validate:"required,max=150"`
	PhoneNumber   string `json:"phone_number" validate:"required,phone"`
	BusinessModel string `json:"business_model" validate:"required,max=100"`
	TeamSize      string `json:"team_size" validate:"required,max=50"`
	AboutYourself string `json:"about_yourself" validate:"omitempty,max=2000"`
}

func (f *ProfileForm) Normalize() {
	f.FirstName = strings.TrimSpace(f.FirstName)
	f.LastName = strings.TrimSpace(f.LastName)
	f.JobTitle = strings.TrimSpace(f.JobTitle)
	f.PhoneNumber = strings.TrimSpace(f.PhoneNumber)
	f.BusinessModel = strings.TrimSpace(f.BusinessModel)
	f.TeamSize = strings.TrimSpace(f.TeamSize)
	f.AboutYourself = strings.TrimSpace(f.AboutYourself)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
