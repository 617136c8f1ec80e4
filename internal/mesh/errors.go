package mesh

import (
	"errors"
	"fmt"
)

var (
	ErrCaptureUnavailable = errors.New("microphone capture unavailable")
	ErrRelayClosed        = errors.New("signaling relay closed")
	ErrAlreadyJoined      = errors.New("already joined a room")
	ErrClosed             = errors.New("coordinator closed")
	ErrEmptyRoom          = errors.New("room id is empty")
)

// Error describes a failed coordinator operation, optionally tied to one
// remote participant.
type Error struct {
	Op   string
	Peer string
	Err  error
}

func (e *Error) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func newPeerError(op, peer string, err error) *Error {
	return &Error{Op: op, Peer: peer, Err: err}
}
