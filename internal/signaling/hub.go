package signaling

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cagdaskarabulut/yali-speak/internal/protocol"
)

// Hub is the signaling server's entry point. It owns the room registry and
// the relay, and dispatches every message a participant sends.
type Hub struct {
	Registry *Registry
	Relay    *Relay

	log     *slog.Logger
	metrics *Metrics
}

// NewHub creates a Hub. Both arguments may be nil.
func NewHub(log *slog.Logger, metrics *Metrics) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		Registry: NewRegistry(log, metrics),
		Relay:    NewRelay(log, metrics),
		log:      log.With("component", "hub"),
		metrics:  metrics,
	}
}

// NewParticipantID returns a fresh identifier for a connection.
func NewParticipantID() string {
	return uuid.NewString()
}

// Register makes p reachable and tells it which id it was given.
func (h *Hub) Register(p Peer) {
	h.Relay.Add(p)
	h.metrics.connected()
	h.log.Debug("participant connected", "peer", p.ID())
	p.Send(protocol.Welcome(p.ID()))
}

// Unregister handles a disconnect: the participant leaves its room and stops
// being a relay target.
func (h *Hub) Unregister(p Peer) {
	h.Relay.Remove(p.ID())
	h.Registry.Leave(p.ID())
	h.metrics.disconnected()
	h.log.Debug("participant disconnected", "peer", p.ID())
}

// Handle processes one message sent by p. Problems are logged and answered
// with an error envelope; they never end the connection.
func (h *Hub) Handle(p Peer, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeJoinRoom:
		h.Registry.Join(p, msg.RoomID)

	case protocol.TypeLeaveRoom:
		h.Registry.Leave(p.ID())

	case protocol.TypeSignal:
		if msg.RecipientID == "" {
			h.log.Warn("signal without recipient", "peer", p.ID())
			p.Send(protocol.Errorf("signal requires recipientId"))
			return
		}
		// The payload is opaque but travels as raw JSON, which a binary
		// sender could otherwise violate.
		if !json.Valid(msg.Payload) {
			h.metrics.dropped()
			h.log.Debug("dropping signal with non-JSON payload", "peer", p.ID(), "to", msg.RecipientID)
			p.Send(protocol.Errorf("signal payload must be JSON"))
			return
		}
		h.Relay.Forward(p.ID(), msg.RecipientID, msg.Payload)

	default:
		h.log.Warn("unknown message type", "peer", p.ID(), "type", msg.Type)
		p.Send(protocol.Errorf("unknown message type: " + msg.Type))
	}
}
