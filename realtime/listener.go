// Package realtime implements the two WebSocket clients of the taskbot API:
// the single-shot login handshake socket and the long-lived chat-event
// stream. Both report through listener interfaces instead of returning
// errors past their boundary; callbacks are delivered from a single
// goroutine per connection, and a disconnected socket never delivers again.
package realtime

import (
	"github.com/taskbotapp/taskbot-go/authmodel"
	"github.com/taskbotapp/taskbot-go/chats"
)

// LoginListener observes one login handshake. Exactly one of
// TokensReceived or Failed terminates the handshake; Disconnected follows
// TokensReceived once the socket has closed. No callback is delivered after
// Disconnect has been called on the socket.
type LoginListener interface {
	LoginSocketConnected()
	LoginSocketTokensReceived(pair authmodel.TokenPair)
	LoginSocketFailed(err error)
	LoginSocketDisconnected()
}

// EventListener observes the chat-event stream. Event may be delivered any
// number of times after Connected. The stream ends with either Disconnected
// (orderly close) or Failed (transport error); reconnecting afterwards is
// the caller's responsibility, the socket never redials on its own.
type EventListener interface {
	EventSocketConnected()
	EventSocketEvent(event ChatEvent)
	EventSocketFailed(err error)
	EventSocketDisconnected()
}

// ChatEvent is one push frame from the chat stream. Fields are optional on
// the wire; Message is present for new-message events.
type ChatEvent struct {
	Type     string         `json:"type,omitempty"`
	ChatID   string         `json:"chat_id,omitempty"`
	Message  *chats.Message `json:"message,omitempty"`
	SenderID string         `json:"sender_id,omitempty"`
	Content  string         `json:"content,omitempty"`
}
