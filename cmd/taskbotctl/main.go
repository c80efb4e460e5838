// Command taskbotctl exercises the taskbot client end to end from a
// terminal: it bootstraps an anonymous session, prints the QR deep link,
// waits for the WebSocket login handshake, then tails the live chat-event
// stream until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/taskbotapp/taskbot-go/api"
	"github.com/taskbotapp/taskbot-go/authmodel"
	"github.com/taskbotapp/taskbot-go/credentials"
	"github.com/taskbotapp/taskbot-go/internal/config"
	"github.com/taskbotapp/taskbot-go/realtime"
	"github.com/taskbotapp/taskbot-go/session"
)

const pingInterval = 30 * time.Second

func main() {
	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("taskbotctl failed")
	}
}

func run(log zerolog.Logger) error {
	c := config.New()
	displayAppname(c.GetAppName())

	store := credentials.NewFile(c.GetCredentialsPath())
	client := api.New(c.GetBaseURL(), store,
		api.WithTimeout(time.Duration(c.GetRequestTimeoutSeconds())*time.Second),
		api.WithLogger(log),
	)
	login := realtime.NewLoginSocket(c.GetLoginSocketBases(), realtime.WithLoginLogger(log))
	coordinator := session.New(client, store, login,
		session.WithQRTarget(c.GetQRTarget()),
		session.WithLogger(log),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !coordinator.HasSession() {
		if _, err := coordinator.BootstrapAnonymousSession(ctx); err != nil {
			return fmt.Errorf("session bootstrap: %w", err)
		}
	}

	if !coordinator.IsAuthenticated() {
		if err := waitForLogin(ctx, coordinator, log); err != nil {
			return err
		}
	}
	if exp, ok := coordinator.AccessTokenExpiry(); ok {
		log.Info().Time("expires_at", exp).Msg("access token active")
	}

	return streamEvents(ctx, c, client, store, log)
}

func waitForLogin(ctx context.Context, coordinator *session.Coordinator, log zerolog.Logger) error {
	fmt.Printf("Scan to log in: %s\n", coordinator.LoginQRTarget())

	listener := &loginListener{
		log:    log,
		tokens: make(chan authmodel.TokenPair, 1),
		failed: make(chan error, 1),
	}
	if err := coordinator.BeginLoginHandshake(ctx, listener); err != nil {
		return fmt.Errorf("login handshake: %w", err)
	}
	defer coordinator.CancelLoginHandshake()

	select {
	case pair := <-listener.tokens:
		coordinator.PersistTokens(pair)
		log.Info().Msg("login complete")
		return nil
	case err := <-listener.failed:
		return fmt.Errorf("login handshake: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func streamEvents(ctx context.Context, c config.Config, client *api.Client, store credentials.Store, log zerolog.Logger) error {
	events := realtime.NewEventSocket(c.GetChatSocketURL(), client, store,
		realtime.WithEventLogger(log))
	defer events.Disconnect()

	events.ConnectToAllChats(ctx, &eventListener{log: log})

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			events.SendPing(ctx)
		case <-ctx.Done():
			log.Info().Msg("shutting down")
			return nil
		}
	}
}

type loginListener struct {
	log    zerolog.Logger
	tokens chan authmodel.TokenPair
	failed chan error
}

func (l *loginListener) LoginSocketConnected() {
	l.log.Info().Msg("login socket connected, waiting for scan")
}

func (l *loginListener) LoginSocketTokensReceived(pair authmodel.TokenPair) {
	l.tokens <- pair
}

func (l *loginListener) LoginSocketFailed(err error) {
	l.failed <- err
}

func (l *loginListener) LoginSocketDisconnected() {
	l.log.Debug().Msg("login socket closed")
}

type eventListener struct {
	log zerolog.Logger
}

func (l *eventListener) EventSocketConnected() {
	l.log.Info().Msg("chat event stream connected")
}

func (l *eventListener) EventSocketEvent(event realtime.ChatEvent) {
	entry := l.log.Info().Str("type", event.Type).Str("chat_id", event.ChatID)
	if event.Message != nil {
		entry = entry.Int64("message_id", event.Message.ID).Str("content", event.Message.Content)
	} else if event.Content != "" {
		entry = entry.Str("content", event.Content)
	}
	entry.Msg("chat event")
}

func (l *eventListener) EventSocketFailed(err error) {
	l.log.Error().Err(err).Msg("chat event stream failed; restart to reconnect")
}

func (l *eventListener) EventSocketDisconnected() {
	l.log.Warn().Msg("chat event stream closed by server")
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
