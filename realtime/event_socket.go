package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/taskbotapp/taskbot-go/api"
	"github.com/taskbotapp/taskbot-go/authmodel"
	"github.com/taskbotapp/taskbot-go/credentials"
)

const subscribeEndpoint = "/chats/subscribe/all"

// maxEventFrame bounds a single event frame.
const maxEventFrame = 1 << 20 // 1MiB

// EventSocket streams chat events over a long-lived WebSocket. Connecting
// first fetches a scoped subscription token over REST; if that call fails the
// socket falls back to the raw access token. The socket never redials after a
// drop — the listener is told and the caller decides.
type EventSocket struct {
	wsURL      string
	api        *api.Client
	store      credentials.Store
	httpClient *http.Client
	log        zerolog.Logger

	mu  sync.Mutex
	run *eventRun
}

// EventSocketOption configures an EventSocket.
type EventSocketOption func(*EventSocket)

// WithEventHTTPClient sets the HTTP client used for the WebSocket handshake.
func WithEventHTTPClient(hc *http.Client) EventSocketOption {
	return func(s *EventSocket) { s.httpClient = hc }
}

// WithEventLogger sets the socket logger.
func WithEventLogger(log zerolog.Logger) EventSocketOption {
	return func(s *EventSocket) { s.log = log }
}

// NewEventSocket creates an event socket dialing wsURL, of the form
// "wss://host/api/v1/ws/ws/chats"; the token is appended as a query
// parameter at connect time.
func NewEventSocket(wsURL string, client *api.Client, store credentials.Store, options ...EventSocketOption) *EventSocket {
	s := &EventSocket{
		wsURL:      wsURL,
		api:        client,
		store:      store,
		httpClient: http.DefaultClient,
		log:        zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

type eventRun struct {
	listener EventListener
	cancel   context.CancelFunc
	canceled atomic.Bool

	mu   sync.Mutex
	conn *websocket.Conn
}

func (r *eventRun) emit(f func(EventListener)) {
	if r.canceled.Load() {
		return
	}
	f(r.listener)
}

func (r *eventRun) setConn(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conn = conn
}

func (r *eventRun) currentConn() *websocket.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn
}

func (r *eventRun) closeConn(code websocket.StatusCode, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		_ = r.conn.Close(code, reason)
		r.conn = nil
	}
}

// ConnectToAllChats opens the stream for every chat the user belongs to.
// Without a stored access token it logs and does nothing. Any connection
// already in flight is replaced.
func (s *EventSocket) ConnectToAllChats(ctx context.Context, listener EventListener) {
	accessToken, ok := s.store.Get(credentials.KeyAccessToken)
	if !ok || accessToken == "" {
		s.log.Error().Msg("no access token stored, not opening chat event socket")
		return
	}

	s.Disconnect()

	runCtx, cancel := context.WithCancel(ctx)
	run := &eventRun{listener: listener, cancel: cancel}
	s.mu.Lock()
	s.run = run
	s.mu.Unlock()

	go s.listen(runCtx, run, accessToken)
}

// Disconnect cancels the live connection, if any. Idempotent.
func (s *EventSocket) Disconnect() {
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

// SendPing probes connection liveness. Failure is logged, nothing more.
func (s *EventSocket) SendPing(ctx context.Context) {
	s.mu.Lock()
	run := s.run
	s.mu.Unlock()
	if run == nil {
		return
	}
	conn := run.currentConn()
	if conn == nil {
		return
	}
	if err := conn.Ping(ctx); err != nil {
		s.log.Warn().Err(err).Msg("chat event socket ping failed")
	}
}

func (s *EventSocket) listen(ctx context.Context, run *eventRun, accessToken string) {
	defer run.cancel()

	token := s.subscriptionToken(ctx, accessToken)
	if run.canceled.Load() {
		return
	}

	target, err := url.Parse(s.wsURL)
	if err != nil {
		run.emit(func(l EventListener) { l.EventSocketFailed(ErrInvalidSocketURL) })
		return
	}
	query := target.Query()
	query.Set("token", token)
	target.RawQuery = query.Encode()

	conn, resp, err := websocket.Dial(ctx, target.String(), &websocket.DialOptions{
		HTTPClient: s.httpClient,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if run.canceled.Load() {
			return
		}
		s.log.Warn().Err(err).Msg("chat event socket dial failed")
		run.emit(func(l EventListener) { l.EventSocketFailed(err) })
		return
	}
	conn.SetReadLimit(maxEventFrame)
	run.setConn(conn)
	run.emit(func(l EventListener) { l.EventSocketConnected() })

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			run.closeConn(websocket.StatusAbnormalClosure, "read failed")
			if run.canceled.Load() {
				return
			}
			if websocket.CloseStatus(err) != -1 {
				s.log.Info().Err(err).Msg("chat event socket closed by peer")
				run.emit(func(l EventListener) { l.EventSocketDisconnected() })
			} else {
				s.log.Warn().Err(err).Msg("chat event socket read failed")
				run.emit(func(l EventListener) { l.EventSocketFailed(err) })
			}
			return
		}

		var event ChatEvent
		if err := json.Unmarshal(data, &event); err != nil {
			// A malformed frame never terminates the stream.
			s.log.Warn().Err(err).Str("frame", string(data)).Msg("dropping unparseable chat event")
			continue
		}
		run.emit(func(l EventListener) { l.EventSocketEvent(event) })
	}
}

// subscriptionToken fetches the scoped stream token, falling back to the raw
// access token when the subscribe call fails or returns an empty descriptor.
func (s *EventSocket) subscriptionToken(ctx context.Context, accessToken string) string {
	var descriptor authmodel.SubscriptionDescriptor
	err := s.api.Do(ctx, api.Request{
		Endpoint:     subscribeEndpoint,
		RequiresAuth: true,
	}, &descriptor)
	if err != nil {
		s.log.Warn().Err(err).Msg("chat subscription fetch failed, using access token")
		return accessToken
	}
	if descriptor.Token == "" {
		return accessToken
	}
	return descriptor.Token
}
