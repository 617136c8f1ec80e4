package signaling

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/cagdaskarabulut/yali-speak/internal/protocol"
)

// Relay forwards opaque handshake payloads between connected participants.
// It is scoped by participant identity only and never looks inside payloads.
type Relay struct {
	mu    sync.RWMutex
	peers map[string]Peer

	log     *slog.Logger
	metrics *Metrics
}

// NewRelay creates an empty relay. metrics may be nil.
func NewRelay(log *slog.Logger, metrics *Metrics) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		peers:   make(map[string]Peer),
		log:     log.With("component", "relay"),
		metrics: metrics,
	}
}

// Add makes p reachable as a recipient.
func (r *Relay) Add(p Peer) {
	r.mu.Lock()
	r.peers[p.ID()] = p
	r.mu.Unlock()
}

// Remove makes the participant unreachable. Unknown ids are ignored.
func (r *Relay) Remove(id string) {
	r.mu.Lock()
	delete(r.peers, id)
	r.mu.Unlock()
}

// Forward delivers payload from senderID to recipientID. A recipient that has
// disconnected is dropped silently; the sender is never told. It reports
// whether the message was handed to the recipient's connection.
func (r *Relay) Forward(senderID, recipientID string, payload json.RawMessage) bool {
	r.mu.RLock()
	target, ok := r.peers[recipientID]
	r.mu.RUnlock()

	if !ok {
		r.metrics.dropped()
		r.log.Debug("dropping signal for unknown recipient", "from", senderID, "to", recipientID)
		return false
	}

	if !target.Send(protocol.ReceiveSignal(senderID, payload)) {
		r.metrics.dropped()
		r.log.Debug("recipient did not accept signal", "from", senderID, "to", recipientID)
		return false
	}

	r.metrics.relayed()
	return true
}

// Len returns the number of reachable participants.
func (r *Relay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
