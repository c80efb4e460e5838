package realtime

import "errors"

var (
	// ErrInvalidSocketURL indicates a WebSocket endpoint that could not be
	// parsed into a dialable URL.
	ErrInvalidSocketURL = errors.New("invalid websocket url")

	// ErrConnectionFailed indicates every candidate endpoint was tried and
	// none produced a working connection.
	ErrConnectionFailed = errors.New("websocket connection failed")
)
