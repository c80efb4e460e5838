// Package session orchestrates identity for the taskbot client: anonymous
// session bootstrap, the QR/WebSocket login handshake, token persistence and
// refresh, and logout. The coordinator owns the three-way auth invariant;
// collaborators are injected so tests can substitute fakes.
package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/taskbotapp/taskbot-go/api"
	"github.com/taskbotapp/taskbot-go/authmodel"
	"github.com/taskbotapp/taskbot-go/credentials"
	"github.com/taskbotapp/taskbot-go/realtime"
)

const sessionEndpoint = "/auth/sessions/new"

// Coordinator drives the session lifecycle.
type Coordinator struct {
	api      *api.Client
	store    credentials.Store
	login    *realtime.LoginSocket
	qrTarget string
	log      zerolog.Logger
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithQRTarget sets the deep-link base embedded in LoginQRTarget.
func WithQRTarget(target string) CoordinatorOption {
	return func(c *Coordinator) { c.qrTarget = target }
}

// WithLogger sets the coordinator logger.
func WithLogger(log zerolog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = log }
}

// New creates a Coordinator over the given collaborators.
func New(client *api.Client, store credentials.Store, login *realtime.LoginSocket, options ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		api:   client,
		store: store,
		login: login,
		log:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// AuthState recomputes the current state from the three credential slots.
func (c *Coordinator) AuthState() AuthState {
	accessToken, _ := c.store.Get(credentials.KeyAccessToken)
	refreshToken, _ := c.store.Get(credentials.KeyRefreshToken)
	sessionID, _ := c.store.Get(credentials.KeySessionID)
	return computeAuthState(accessToken, refreshToken, sessionID)
}

// IsAuthenticated reports whether a full token pair is held.
func (c *Coordinator) IsAuthenticated() bool {
	return c.AuthState().Kind == StateAuthenticated
}

// HasSession reports whether an anonymous session id is stored.
func (c *Coordinator) HasSession() bool {
	return c.CurrentSessionID() != ""
}

// CurrentSessionID returns the stored session id, empty when absent.
func (c *Coordinator) CurrentSessionID() string {
	sessionID, _ := c.store.Get(credentials.KeySessionID)
	return sessionID
}

// BootstrapAnonymousSession asks the server for a fresh anonymous session and
// stores its id. Every call creates a new server-side session, so callers
// should check HasSession first.
func (c *Coordinator) BootstrapAnonymousSession(ctx context.Context) (*authmodel.Session, error) {
	var sess authmodel.Session
	err := c.api.Do(ctx, api.Request{Endpoint: sessionEndpoint}, &sess)
	if err != nil {
		return nil, err
	}
	c.store.Set(credentials.KeySessionID, sess.ID)
	c.log.Info().Str("session_id", sess.ID).Msg("anonymous session established")
	return &sess, nil
}

// BeginLoginHandshake opens the login socket bound to the stored session id
// and forwards its lifecycle to listener. Fails with ErrNoSessionID when no
// session exists. The wait is unbounded; bound it through ctx.
func (c *Coordinator) BeginLoginHandshake(ctx context.Context, listener realtime.LoginListener) error {
	sessionID := c.CurrentSessionID()
	if sessionID == "" {
		return ErrNoSessionID
	}
	return c.login.Connect(ctx, sessionID, listener)
}

// CancelLoginHandshake disconnects the login socket. Idempotent.
func (c *Coordinator) CancelLoginHandshake() {
	c.login.Disconnect()
}

// PersistTokens stores the access token unconditionally and the refresh token
// only when the pair carries one.
func (c *Coordinator) PersistTokens(pair authmodel.TokenPair) {
	c.store.Set(credentials.KeyAccessToken, pair.AccessToken)
	if pair.RefreshToken != "" {
		c.store.Set(credentials.KeyRefreshToken, pair.RefreshToken)
	}
}

// RefreshAccessToken runs the refresh sub-protocol and persists the result.
func (c *Coordinator) RefreshAccessToken(ctx context.Context) (authmodel.TokenPair, error) {
	return c.api.RefreshTokens(ctx)
}

// Logout clears all three credential slots; AuthState is None afterwards.
func (c *Coordinator) Logout() {
	c.store.ClearAll()
	c.log.Info().Msg("logged out, credentials cleared")
}

// LoginQRTarget derives the deep link a QR code should encode for the current
// session, empty when no session exists.
func (c *Coordinator) LoginQRTarget() string {
	sessionID := c.CurrentSessionID()
	if sessionID == "" || c.qrTarget == "" {
		return ""
	}
	return c.qrTarget + "?start=" + sessionID
}

// AccessTokenExpiry reports the exp claim of the stored access token without
// validating the signature. The second return is false when no token is
// stored or the token is not a parseable JWT; expiry is still discovered
// reactively through 401s either way.
func (c *Coordinator) AccessTokenExpiry() (time.Time, bool) {
	accessToken, ok := c.store.Get(credentials.KeyAccessToken)
	if !ok || accessToken == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
