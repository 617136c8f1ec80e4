package signalclient

import (
	"encoding/json"
	"log/slog"

	"github.com/cagdaskarabulut/yali-speak/internal/protocol"
)

// Receiver consumes the server's events. Methods are called from a single
// goroutine, in arrival order.
type Receiver interface {
	Welcome(selfID string)
	UsersInRoom(ids []string)
	UserJoined(id string)
	UserLeft(id string)
	ReceiveSignal(senderID string, payload json.RawMessage)
	// RelayClosed is called once, after the last message. err is nil when
	// the connection was closed locally.
	RelayClosed(err error)
}

// Handler routes incoming signaling messages to a Receiver.
type Handler struct {
	client   *Client
	receiver Receiver
	log      *slog.Logger
}

// NewHandler creates a new message handler.
func NewHandler(client *Client, receiver Receiver) *Handler {
	return &Handler{
		client:   client,
		receiver: receiver,
		log:      client.log,
	}
}

// Start routes messages until the connection ends. It blocks.
func (h *Handler) Start() {
	for msg := range h.client.Incoming() {
		h.Dispatch(msg)
	}
	h.receiver.RelayClosed(h.client.Err())
}

// Dispatch routes one message.
func (h *Handler) Dispatch(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeWelcome:
		h.receiver.Welcome(msg.UserID)

	case protocol.TypeUsersInRoom:
		h.receiver.UsersInRoom(msg.Users)

	case protocol.TypeUserJoined:
		h.receiver.UserJoined(msg.UserID)

	case protocol.TypeUserLeft:
		h.receiver.UserLeft(msg.UserID)

	case protocol.TypeReceiveSignal:
		if msg.SenderID == "" {
			h.log.Warn("signal without sender")
			return
		}
		h.receiver.ReceiveSignal(msg.SenderID, msg.Payload)

	case protocol.TypeError:
		h.log.Warn("server reported an error", "err", msg.Error)

	default:
		h.log.Debug("ignoring unknown message", "type", msg.Type)
	}
}
