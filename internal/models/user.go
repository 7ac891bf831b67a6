package models

import "strings"

// User is the local view of an identity-provider account.
type User struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Provider         string `json:"provider"`
	ProfileCompleted bool   `json:"profile_completed"`
	Auth0ID          string `json:"auth0_id"`

	// Filled in once the profile-completion form has been accepted by the backend.
	JobTitle      string `json:"job_title,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
	BusinessModel string `json:"business_model,omitempty"`
	TeamSize      string `json:"team_size,omitempty"`
	AboutYourself string `json:"about_yourself,omitempty"`
}

// DisplayName returns "First Last", falling back to the email address.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// ProviderFromSubject extracts the provider tag from a subject such as
// "google-oauth2|1234". Subjects without a separator belong to "auth0".
func ProviderFromSubject(sub string) string {
	if i := strings.Index(sub, "|"); i > 0 {
		return sub[:i]
	}
	return "auth0"
}
