package session

import "errors"

var (
	// ErrNoSessionID is returned when an operation needs an anonymous session
	// id and none is stored.
	ErrNoSessionID = errors.New("no session id stored")
)
