// Package authmodel holds the wire records exchanged with the taskbot auth
// endpoints. JSON field names follow the server's snake_case convention.
package authmodel

// Session is the record returned by GET /auth/sessions/new. It identifies an
// anonymous session used to correlate a pending login handshake. Sessions are
// immutable once issued; a later authenticated token pair supersedes one
// rather than mutating it.
type Session struct {
	ID              string `json:"id"`
	LifetimeMinutes int    `json:"lifetime_minutes,omitempty"`
	CreatedAt       string `json:"created_at,omitempty"`
	ExpiresAt       string `json:"expires_at,omitempty"`
	RefreshToken    string `json:"refresh_token,omitempty"`
	Authenticated   bool   `json:"auth,omitempty"`
	ExternalUserID  int64  `json:"tg_id,omitempty"`
	UserHashID      string `json:"user_hash_id,omitempty"`
}

// TokenPair is the credential pair minted by the login handshake or by the
// refresh endpoint. RefreshToken may be empty: refresh-token rotation is
// optional per response and an empty value must not overwrite a stored one.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// Valid reports whether the pair carries an access token. WebSocket frames
// that unmarshal cleanly but carry no access token are not token payloads.
func (p TokenPair) Valid() bool {
	return p.AccessToken != ""
}

// SubscriptionDescriptor is returned by GET /chats/subscribe/all and scopes
// access to the live chat-event stream. Both fields are optional; an empty
// token means the caller should fall back to its access token.
type SubscriptionDescriptor struct {
	Token string `json:"token,omitempty"`
	URL   string `json:"url,omitempty"`
}
