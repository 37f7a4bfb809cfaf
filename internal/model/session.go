package model

// SessionPhase enumerates the lifecycle phases of the authentication session.
type SessionPhase int

const (
	SessionLoggedOut SessionPhase = iota
	SessionLoggingIn
	SessionAuthenticated
	SessionAuthError
)

// String returns a human-readable phase name for logging and the status bar.
func (p SessionPhase) String() string {
	switch p {
	case SessionLoggedOut:
		return "logged out"
	case SessionLoggingIn:
		return "logging in"
	case SessionAuthenticated:
		return "authenticated"
	case SessionAuthError:
		return "auth error"
	default:
		return "unknown"
	}
}

// SessionState is a snapshot of the authentication state. Exactly one phase
// is current at any time. Token and Identity are set only while
// Authenticated; Reason only in the AuthError phase.
type SessionState struct {
	Phase SessionPhase

	// Token is the active bearer credential.
	Token string

	// Identity is the profile resolved from Token.
	Identity *Identity

	// Reason is the human-readable failure detail for AuthError.
	Reason string

	// Retryable marks an AuthError caused by a transport failure rather
	// than a rejected credential; the UI offers a retry instead of
	// clearing the form.
	Retryable bool
}

// LoggedOut returns the initial, unauthenticated state.
func LoggedOut() SessionState {
	return SessionState{Phase: SessionLoggedOut}
}

// LoggingIn returns the transitional state while a login or session restore
// is in flight.
func LoggingIn() SessionState {
	return SessionState{Phase: SessionLoggingIn}
}

// Authenticated returns the state holding an accepted credential and the
// identity it resolved to.
func Authenticated(token string, identity Identity) SessionState {
	return SessionState{
		Phase:    SessionAuthenticated,
		Token:    token,
		Identity: &identity,
	}
}

// AuthFailure returns the error state with a user-visible reason.
func AuthFailure(reason string, retryable bool) SessionState {
	return SessionState{
		Phase:     SessionAuthError,
		Reason:    reason,
		Retryable: retryable,
	}
}

// IsAuthenticated reports whether the session currently holds a trusted
// credential and identity.
func (s SessionState) IsAuthenticated() bool {
	return s.Phase == SessionAuthenticated && s.Identity != nil
}
