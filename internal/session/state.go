package session

import "github.com/Itqan-community/itqan-cms/internal/models"

// State is the derived authentication state of a browser session.
type State string

const (
	StateLoading    State = "loading"
	StateAnonymous  State = "anonymous"
	StateIncomplete State = "authenticated_incomplete"
	StateComplete   State = "authenticated_complete"
)

// Authenticated reports whether the provider considers the session signed in.
func (s State) Authenticated() bool {
	return s == StateIncomplete || s == StateComplete
}

// Inputs are the facts a State is derived from. None of them is stored as
// state itself.
type Inputs struct {
	Loading               bool
	ProviderAuthenticated bool
	User                  *models.User
	PersistedCompleted    bool
}

// ProfileCompleted merges the user field with the persisted flag.
func (in Inputs) ProfileCompleted() bool {
	return in.PersistedCompleted || (in.User != nil && in.User.ProfileCompleted)
}

// RequiresProfileCompletion is true iff a user exists, the provider session is
// authenticated, and neither the user nor the persisted flag marks the
// profile as completed.
func RequiresProfileCompletion(in Inputs) bool {
	return in.User != nil && in.ProviderAuthenticated && !in.ProfileCompleted()
}

// Derive computes the session state. An authenticated provider session with
// no user record yet counts as complete, so it is never pushed to the
// completion page.
func Derive(in Inputs) State {
	switch {
	case in.Loading:
		return StateLoading
	case !in.ProviderAuthenticated:
		return StateAnonymous
	case RequiresProfileCompletion(in):
		return StateIncomplete
	default:
		return StateComplete
	}
}

// EventKind names what happened to a session.
type EventKind string

const (
	EventProviderLoading       EventKind = "provider_loading"
	EventProviderAuthenticated EventKind = "provider_authenticated"
	EventProviderAnonymous     EventKind = "provider_anonymous"
	EventProfileCompleted      EventKind = "profile_completed"
	EventUserReplaced          EventKind = "user_replaced"
	EventLoggedOut             EventKind = "logged_out"
)

// Event is an input to Transition. ProfileCompleted is the merged completion
// flag of the user involved and only matters for provider_authenticated and
// user_replaced.
type Event struct {
	Kind             EventKind
	ProfileCompleted bool
}

// Transition returns the state after e. Events that do not apply to s leave
// it unchanged.
func Transition(s State, e Event) State {
	switch e.Kind {
	case EventProviderLoading:
		return StateLoading
	case EventProviderAnonymous, EventLoggedOut:
		return StateAnonymous
	case EventProviderAuthenticated:
		return completionState(e.ProfileCompleted)
	case EventProfileCompleted:
		if s == StateIncomplete {
			return StateComplete
		}
	case EventUserReplaced:
		if s.Authenticated() {
			return completionState(e.ProfileCompleted)
		}
	}
	return s
}

func completionState(completed bool) State {
	if completed {
		return StateComplete
	}
	return StateIncomplete
}
