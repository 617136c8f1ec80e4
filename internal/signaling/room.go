package signaling

import (
	"sync"

	"github.com/cagdaskarabulut/yali-speak/internal/protocol"
)

// Peer is a connected participant as seen by the registry and the relay.
type Peer interface {
	// ID is the identifier the server assigned to the connection.
	ID() string

	// Send queues a message for delivery. It returns false when the peer is
	// gone or cannot keep up; callers drop the message.
	Send(msg *protocol.Message) bool
}

// RoomInfo is a read-only view of a room.
type RoomInfo struct {
	ID      string `json:"id"`
	Members int    `json:"members"`
}

// room is a named set of present participants. Every field is guarded by mu.
type room struct {
	id string

	mu      sync.Mutex
	order   []string
	members map[string]Peer

	// closed is set when the last member leaves and the room is removed from
	// the registry. A joiner holding a stale pointer must look up again.
	closed bool
}

func newRoom(id string) *room {
	return &room{
		id:      id,
		members: make(map[string]Peer),
	}
}

func (r *room) has(id string) bool {
	_, ok := r.members[id]
	return ok
}

func (r *room) add(p Peer) {
	r.members[p.ID()] = p
	r.order = append(r.order, p.ID())
}

func (r *room) remove(id string) {
	delete(r.members, id)
	for i, member := range r.order {
		if member == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// snapshot returns member ids in join order.
func (r *room) snapshot() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	return ids
}

// sendAll delivers msg to every member except skip.
func (r *room) sendAll(msg *protocol.Message, skip string) {
	for _, id := range r.order {
		if id == skip {
			continue
		}
		r.members[id].Send(msg)
	}
}
