package session

// StateKind discriminates the three possible auth states.
type StateKind int

const (
	// StateNone means no session has been established yet.
	StateNone StateKind = iota
	// StateAnonymous means a server-issued session id exists but no tokens.
	StateAnonymous
	// StateAuthenticated means a full token pair is held.
	StateAuthenticated
)

func (k StateKind) String() string {
	switch k {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "none"
	}
}

// AuthState is the derived authentication state. Exactly one kind holds at a
// time: Authenticated carries both tokens, Anonymous carries only the session
// id, None carries nothing.
type AuthState struct {
	Kind         StateKind
	SessionID    string
	AccessToken  string
	RefreshToken string
}

// computeAuthState derives the state from the three stored slots. It is the
// single place the three-way invariant lives: authenticated requires both
// tokens, anonymous requires a session id without an access token.
func computeAuthState(accessToken, refreshToken, sessionID string) AuthState {
	if accessToken != "" && refreshToken != "" {
		return AuthState{
			Kind:         StateAuthenticated,
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
		}
	}
	if sessionID != "" {
		return AuthState{Kind: StateAnonymous, SessionID: sessionID}
	}
	return AuthState{Kind: StateNone}
}
