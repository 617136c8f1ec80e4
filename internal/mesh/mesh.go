// Package mesh keeps one audio link per room co-member.
//
// A Coordinator reacts to membership notices and relayed handshake payloads.
// The side that learns of a newcomer through a joined notice initiates; the
// newcomer only ever responds. All state lives on one reactor goroutine.
package mesh

import "encoding/json"

// Role is a link's side of the handshake.
type Role int

const (
	Initiator Role = iota + 1
	Responder
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	}
	return "unknown"
}

// State is a link's lifecycle state. A peer with no link is absent.
type State int

const (
	Negotiating State = iota + 1
	Established
)

func (s State) String() string {
	switch s {
	case Negotiating:
		return "negotiating"
	case Established:
		return "established"
	}
	return "absent"
}

// Signaler is the coordinator's path to the registry and relay.
type Signaler interface {
	JoinRoom(roomID string) error
	LeaveRoom() error
	SendSignal(recipientID string, payload json.RawMessage) error
	Close() error
}

// Media creates the audio side of links.
type Media interface {
	// OpenCapture starts the local microphone stream shared by every link.
	OpenCapture() (Capture, error)
	// NewConn starts a connection to remoteID. An initiator produces its
	// offer through cb.OnSignal without further input.
	NewConn(remoteID string, role Role, cb Callbacks) (Conn, error)
}

// Conn is one direct connection to a remote participant.
type Conn interface {
	// Signal feeds a handshake payload from the remote side.
	Signal(payload json.RawMessage) error
	Close() error
}

// Callbacks report transport events. They may be called from any goroutine.
type Callbacks interface {
	OnSignal(payload json.RawMessage)
	OnStream(p Playback)
	OnFailed(err error)
}

// Capture is the local audio source.
type Capture interface {
	SetEnabled(enabled bool)
	Close() error
}

// Playback renders one remote participant's stream.
type Playback interface {
	SetVolume(v float64)
	Close() error
}
