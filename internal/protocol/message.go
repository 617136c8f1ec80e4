// Package protocol defines the envelope exchanged between participants and the
// signaling server, and the codecs that put it on the wire.
package protocol

import "encoding/json"

// Message is the single envelope used in both directions. Which fields are set
// depends on Type.
type Message struct {
	Type        string          `json:"type" msgpack:"type"`
	RoomID      string          `json:"roomId,omitempty" msgpack:"roomId,omitempty"`
	Users       []string        `json:"users,omitempty" msgpack:"users,omitempty"`
	UserID      string          `json:"userId,omitempty" msgpack:"userId,omitempty"`
	RecipientID string          `json:"recipientId,omitempty" msgpack:"recipientId,omitempty"`
	SenderID    string          `json:"senderId,omitempty" msgpack:"senderId,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty" msgpack:"payload,omitempty"`
	Error       string          `json:"error,omitempty" msgpack:"error,omitempty"`
}

// Client to server.
const (
	TypeJoinRoom  = "join-room"
	TypeLeaveRoom = "leave-room"
	TypeSignal    = "signal"
)

// Server to client.
const (
	TypeWelcome       = "welcome"
	TypeUsersInRoom   = "users-in-room"
	TypeUserJoined    = "user-joined"
	TypeUserLeft      = "user-left"
	TypeReceiveSignal = "receive-signal"
	TypeError         = "error"
)

// Welcome tells a freshly connected participant the id the server assigned.
func Welcome(id string) *Message {
	return &Message{Type: TypeWelcome, UserID: id}
}

// UsersInRoom is the full membership snapshot of a room.
func UsersInRoom(users []string) *Message {
	return &Message{Type: TypeUsersInRoom, Users: users}
}

func UserJoined(id string) *Message {
	return &Message{Type: TypeUserJoined, UserID: id}
}

func UserLeft(id string) *Message {
	return &Message{Type: TypeUserLeft, UserID: id}
}

// ReceiveSignal wraps a relayed handshake payload for its recipient.
func ReceiveSignal(senderID string, payload json.RawMessage) *Message {
	return &Message{Type: TypeReceiveSignal, SenderID: senderID, Payload: payload}
}

func Errorf(text string) *Message {
	return &Message{Type: TypeError, Error: text}
}

// JoinRoom, LeaveRoom and Signal build the client requests.
func JoinRoom(roomID string) *Message {
	return &Message{Type: TypeJoinRoom, RoomID: roomID}
}

func LeaveRoom() *Message {
	return &Message{Type: TypeLeaveRoom}
}

func Signal(recipientID string, payload json.RawMessage) *Message {
	return &Message{Type: TypeSignal, RecipientID: recipientID, Payload: payload}
}
