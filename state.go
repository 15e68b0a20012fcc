package studenthub

// Phase names where the controller sits in the authentication lifecycle.
type Phase string

const (
	// PhaseSignedOut means no session exists.
	PhaseSignedOut Phase = "signed_out"
	// PhaseAuthenticating means a login or registration exchange is in flight.
	PhaseAuthenticating Phase = "authenticating"
	// PhaseHydrating means a session exists but the profile has not resolved.
	PhaseHydrating Phase = "hydrating"
	// PhaseActive means a session exists and the profile is resolved.
	PhaseActive Phase = "active"
)

// phaseTransitions is the allowed lifecycle graph. Hydrating loops to itself
// through profile refresh retries without transitioning.
var phaseTransitions = map[Phase]map[Phase]struct{}{
	PhaseSignedOut: {
		PhaseAuthenticating: {},
		PhaseHydrating:      {}, // store restore or handoff adoption
	},
	PhaseAuthenticating: {
		PhaseSignedOut: {}, // exchange failed
		PhaseHydrating: {},
		PhaseActive:    {}, // profile returned inline
	},
	PhaseHydrating: {
		PhaseHydrating: {},
		PhaseActive:    {},
		PhaseSignedOut: {}, // logout, expiry, invalid session
	},
	PhaseActive: {
		PhaseAuthenticating: {}, // replacement login without an explicit logout
		PhaseHydrating:      {}, // profile refresh
		PhaseSignedOut:      {},
	},
}

// canTransition reports whether the phase graph permits from → to.
func canTransition(from, to Phase) bool {
	if from == to {
		return true
	}
	allowed, ok := phaseTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// AuthState is the single observable value the rest of the application reads.
// The Controller is its only writer.
//
// Invariants: Profile != nil implies Session != nil; Loading is true only
// while an exchange is in flight or while a session exists whose profile has
// not resolved.
type AuthState struct {
	Phase   Phase
	Session *Session
	Profile *Profile
	Loading bool

	// Message is the last user-visible notice (login failure, expiry reason,
	// pending-approval confirmation). Cleared on the next action.
	Message string

	// HydrationAttempts counts consecutive failed profile fetches for the
	// current session. HydrationFailed is the terminal give-up state that the
	// route guard surfaces as a manual recovery affordance.
	HydrationAttempts int
	HydrationFailed   bool
}

// IsAuthenticated reports whether a session exists, hydrated or not.
func (s AuthState) IsAuthenticated() bool {
	return s.Session != nil
}

// clone returns a deep copy safe to hand to observers.
func (s AuthState) clone() AuthState {
	cp := s
	cp.Session = s.Session.Clone()
	cp.Profile = s.Profile.Clone()
	return cp
}
