// Package credentials persists the three secrets the client needs across
// restarts: the access token, the refresh token, and the anonymous session id.
// Implementations stand in for whatever secure storage the host platform
// provides; callers treat any read failure as "value absent".
package credentials

// Key identifies one of the credential slots.
type Key string

const (
	KeyAccessToken  Key = "accessToken"
	KeyRefreshToken Key = "refreshToken"
	KeySessionID    Key = "sessionId"
)

// Store manages the credential slots. Get returns an empty string and false
// when no value is stored. Set and Delete report success; a false return is
// treated by callers the same as an absent value, never as a fatal error.
// Implementations must be safe for concurrent use and must not interleave
// partial writes to the same key.
type Store interface {
	Get(key Key) (string, bool)
	Set(key Key, value string) bool
	Delete(key Key) bool
	ClearAll()
}
