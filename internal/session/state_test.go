package session

import (
	"fmt"
	"testing"

	"github.com/Itqan-community/itqan-cms/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRequiresProfileCompletion_TruthTable(t *testing.T) {
	for _, hasUser := range []bool{false, true} {
		for _, authenticated := range []bool{false, true} {
			for _, userCompleted := range []bool{false, true} {
				for _, persisted := range []bool{false, true} {
					var user *models.User
					if hasUser {
						user = &models.User{ProfileCompleted: userCompleted}
					} else if userCompleted {
						continue
					}

					in := Inputs{ProviderAuthenticated: authenticated, User: user, PersistedCompleted: persisted}
					want := hasUser && authenticated && !userCompleted && !persisted

					name := fmt.Sprintf("user=%v auth=%v userFlag=%v persisted=%v", hasUser, authenticated, userCompleted, persisted)
					assert.Equal(t, want, RequiresProfileCompletion(in), name)
				}
			}
		}
	}
}

func TestDerive(t *testing.T) {
	incomplete := &models.User{}
	complete := &models.User{ProfileCompleted: true}

	tests := []struct {
		name string
		in   Inputs
		want State
	}{
		{"loading wins", Inputs{Loading: true, ProviderAuthenticated: true, User: incomplete}, StateLoading},
		{"anonymous", Inputs{}, StateAnonymous},
		{"stale user without provider session", Inputs{User: incomplete}, StateAnonymous},
		{"incomplete", Inputs{ProviderAuthenticated: true, User: incomplete}, StateIncomplete},
		{"complete by user flag", Inputs{ProviderAuthenticated: true, User: complete}, StateComplete},
		{"complete by persisted flag", Inputs{ProviderAuthenticated: true, User: incomplete, PersistedCompleted: true}, StateComplete},
		{"authenticated without user", Inputs{ProviderAuthenticated: true}, StateComplete},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.in))
		})
	}
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from State
		ev   Event
		want State
	}{
		{StateAnonymous, Event{Kind: EventProviderLoading}, StateLoading},
		{StateLoading, Event{Kind: EventProviderAuthenticated}, StateIncomplete},
		{StateLoading, Event{Kind: EventProviderAuthenticated, ProfileCompleted: true}, StateComplete},
		{StateLoading, Event{Kind: EventProviderAnonymous}, StateAnonymous},
		{StateIncomplete, Event{Kind: EventProfileCompleted}, StateComplete},
		{StateAnonymous, Event{Kind: EventProfileCompleted}, StateAnonymous},
		{StateComplete, Event{Kind: EventUserReplaced}, StateIncomplete},
		{StateIncomplete, Event{Kind: EventUserReplaced, ProfileCompleted: true}, StateComplete},
		{StateAnonymous, Event{Kind: EventUserReplaced, ProfileCompleted: true}, StateAnonymous},
		{StateComplete, Event{Kind: EventLoggedOut}, StateAnonymous},
		{StateIncomplete, Event{Kind: EventLoggedOut}, StateAnonymous},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Transition(tt.from, tt.ev), "%s + %s", tt.from, tt.ev.Kind)
	}
}

// Transition must agree with Derive over the inputs each event produces.
func TestTransition_AgreesWithDerive(t *testing.T) {
	for _, completed := range []bool{false, true} {
		in := Inputs{ProviderAuthenticated: true, User: &models.User{}, PersistedCompleted: completed}
		got := Transition(StateLoading, Event{Kind: EventProviderAuthenticated, ProfileCompleted: in.ProfileCompleted()})
		assert.Equal(t, Derive(in), got)
	}

	in := Inputs{ProviderAuthenticated: true, User: &models.User{}}
	state := Derive(in)
	in.PersistedCompleted = true
	assert.Equal(t, Derive(in), Transition(state, Event{Kind: EventProfileCompleted}))

	assert.Equal(t, Derive(Inputs{}), Transition(StateComplete, Event{Kind: EventLoggedOut}))
}
