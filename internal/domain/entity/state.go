package entity

// SessionPhase is the discriminant of the session subsystem state.
type SessionPhase string

const (
	// PhaseInitializing is the start state, session recovery is in flight.
	PhaseInitializing SessionPhase = "initializing"
	// PhaseAuthenticated means a merged identity is published and current.
	PhaseAuthenticated SessionPhase = "authenticated"
	// PhaseUnauthenticated means no session is held.
	PhaseUnauthenticated SessionPhase = "unauthenticated"
	// PhaseDisabled means the profile reported enabled=false. Externally the
	// state is equivalent to unauthenticated, the flag remains for messaging.
	PhaseDisabled SessionPhase = "disabled"
)

// SessionState is the atomically published state of the session subsystem.
// Exactly one phase is active at any time; Identity is non-nil only while
// the phase is PhaseAuthenticated.
type SessionState struct {
	Phase    SessionPhase
	Identity *ResolvedIdentity
}

// IsAuthenticated reports whether a merged identity is currently published.
func (s SessionState) IsAuthenticated() bool {
	return s.Phase == PhaseAuthenticated && s.Identity != nil
}

// Role returns the published role, or the empty string outside of
// PhaseAuthenticated.
func (s SessionState) Role() Role {
	if !s.IsAuthenticated() {
		return ""
	}

	return s.Identity.Role
}
