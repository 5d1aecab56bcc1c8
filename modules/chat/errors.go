package chat

import "errors"

var (
	// ErrSessionClosed is returned for events dispatched after disconnect.
	ErrSessionClosed = errors.New("session closed")
	// ErrMalformedEvent is returned for frames that are not a valid envelope.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrUnknownEvent is returned for event names a client may not send.
	ErrUnknownEvent = errors.New("unknown event")
)
