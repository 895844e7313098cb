package obex

import "errors"

var (
	// ErrAlreadyConnected is returned by Connect when the session is Connected.
	ErrAlreadyConnected = errors.New("obex: already connected")

	// ErrConnectInProgress is returned by Connect while another connect
	// attempt owns the session.
	ErrConnectInProgress = errors.New("obex: connect already in progress")

	// ErrNoTarget is returned by Connect when no target device is set.
	ErrNoTarget = errors.New("obex: no target device")

	// ErrNotConnected is returned by request operations outside the
	// Connected state.
	ErrNotConnected = errors.New("obex: not connected")

	// ErrAborted is returned by a server operation write once the client
	// has aborted the transfer.
	ErrAborted = errors.New("obex: operation aborted")
)
