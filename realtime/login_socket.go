package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/taskbotapp/taskbot-go/authmodel"
)

// LoginSocket waits on a WebSocket bound to an anonymous session id until the
// server pushes a token pair, then closes. Candidate endpoints are tried in
// order (secure first); a transport failure on one advances to the next.
// There is no internal timeout: callers bound the wait through the Connect
// context.
type LoginSocket struct {
	bases      []string
	httpClient *http.Client
	log        zerolog.Logger

	mu  sync.Mutex
	run *loginRun
}

// LoginSocketOption configures a LoginSocket.
type LoginSocketOption func(*LoginSocket)

// WithLoginHTTPClient sets the HTTP client used for the WebSocket handshake.
func WithLoginHTTPClient(hc *http.Client) LoginSocketOption {
	return func(s *LoginSocket) { s.httpClient = hc }
}

// WithLoginLogger sets the socket logger.
func WithLoginLogger(log zerolog.Logger) LoginSocketOption {
	return func(s *LoginSocket) { s.log = log }
}

// NewLoginSocket creates a login socket over the given endpoint bases, each
// of the form "wss://host/api/v1/ws/ws/session"; the session id is appended
// as a path segment at connect time.
func NewLoginSocket(bases []string, options ...LoginSocketOption) *LoginSocket {
	s := &LoginSocket{
		bases:      bases,
		httpClient: http.DefaultClient,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// loginRun is the state of one Connect call. Callbacks are emitted only from
// its listen goroutine; canceled flips once and suppresses all later emits.
type loginRun struct {
	listener LoginListener
	cancel   context.CancelFunc
	canceled atomic.Bool

	mu   sync.Mutex
	conn *websocket.Conn
}

func (r *loginRun) emit(f func(LoginListener)) {
	if r.canceled.Load() {
		return
	}
	f(r.listener)
}

func (r *loginRun) setConn(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conn = conn
}

func (r *loginRun) closeConn(code websocket.StatusCode, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		_ = r.conn.Close(code, reason)
		r.conn = nil
	}
}

// Connect starts the handshake for sessionID and reports through listener.
// It replaces any handshake already in flight. The returned error covers only
// immediate endpoint-construction failures; everything later arrives via the
// listener.
func (s *LoginSocket) Connect(ctx context.Context, sessionID string, listener LoginListener) error {
	endpoints := make([]string, 0, len(s.bases))
	for _, base := range s.bases {
		u, err := url.Parse(base + "/" + sessionID)
		if err != nil {
			s.log.Warn().Str("base", base).Msg("skipping unparseable endpoint")
			continue
		}
		endpoints = append(endpoints, u.String())
	}
	if len(endpoints) == 0 {
		return ErrInvalidSocketURL
	}

	s.Disconnect()

	runCtx, cancel := context.WithCancel(ctx)
	run := &loginRun{listener: listener, cancel: cancel}
	s.mu.Lock()
	s.run = run
	s.mu.Unlock()

	go s.listen(runCtx, run, endpoints)
	return nil
}

// Disconnect cancels the active handshake, if any. It is idempotent and safe
// to call from any state, including from listener callbacks.
func (s *LoginSocket) Disconnect() {
	s.mu.Lock()
	run := s.run
	s.run = nil
	s.mu.Unlock()
	if run == nil {
		return
	}
	run.canceled.Store(true)
	run.cancel()
	run.closeConn(websocket.StatusGoingAway, "client disconnect")
}

func (s *LoginSocket) listen(ctx context.Context, run *loginRun, endpoints []string) {
	defer run.cancel()

	var lastErr error
	for _, endpoint := range endpoints {
		if run.canceled.Load() {
			return
		}

		conn, resp, err := websocket.Dial(ctx, endpoint, &websocket.DialOptions{
			HTTPClient: s.httpClient,
		})
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			s.log.Debug().Err(err).Str("endpoint", endpoint).Msg("login socket dial failed")
			lastErr = err
			continue
		}

		run.setConn(conn)
		run.emit(func(l LoginListener) { l.LoginSocketConnected() })

		pair, err := s.waitForTokens(ctx, conn)
		if err != nil {
			// Transport failure mid-wait advances to the next endpoint,
			// matching the dial-failure path.
			run.closeConn(websocket.StatusAbnormalClosure, "read failed")
			if run.canceled.Load() {
				return
			}
			s.log.Debug().Err(err).Str("endpoint", endpoint).Msg("login socket receive failed")
			lastErr = err
			continue
		}

		run.emit(func(l LoginListener) { l.LoginSocketTokensReceived(pair) })
		run.closeConn(websocket.StatusNormalClosure, "tokens received")
		run.emit(func(l LoginListener) { l.LoginSocketDisconnected() })
		return
	}

	if run.canceled.Load() {
		return
	}
	err := ErrConnectionFailed
	if lastErr != nil {
		err = fmt.Errorf("%w: %v", ErrConnectionFailed, lastErr)
	}
	run.emit(func(l LoginListener) { l.LoginSocketFailed(err) })
}

// waitForTokens reads frames until one parses as a token pair. Frames that do
// not parse (keepalives, unrelated payloads) are ignored.
func (s *LoginSocket) waitForTokens(ctx context.Context, conn *websocket.Conn) (authmodel.TokenPair, error) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return authmodel.TokenPair{}, err
		}
		var pair authmodel.TokenPair
		if jsonErr := json.Unmarshal(data, &pair); jsonErr != nil || !pair.Valid() {
			s.log.Debug().Str("frame", string(data)).Msg("login socket ignoring non-token frame")
			continue
		}
		return pair, nil
	}
}
