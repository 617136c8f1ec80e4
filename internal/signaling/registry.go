package signaling

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/cagdaskarabulut/yali-speak/internal/protocol"
)

// Registry is the authoritative record of which participant is in which room.
//
// Each room serializes its own mutations and notifications, so joins and
// leaves in different rooms proceed independently. mu only guards the two
// lookup maps. Lock order is room.mu before Registry.mu.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*room
	roomOf map[string]*room

	log     *slog.Logger
	metrics *Metrics
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(log *slog.Logger, metrics *Metrics) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		rooms:   make(map[string]*room),
		roomOf:  make(map[string]*room),
		log:     log.With("component", "registry"),
		metrics: metrics,
	}
}

// Join adds p to roomID, creating the room if needed. Every member receives
// the new snapshot; members that were already present also receive a
// user-joined notice so that only they initiate links to the joiner.
//
// An empty roomID is a no-op. Joining another room leaves the current one
// first. Joining the current room again only re-sends the snapshot to p.
func (r *Registry) Join(p Peer, roomID string) {
	if roomID == "" {
		r.log.Debug("ignoring join without room", "peer", p.ID())
		return
	}

	if current, ok := r.RoomOf(p.ID()); ok && current != roomID {
		r.Leave(p.ID())
	}

	for {
		rm := r.lockRoom(roomID)
		if rm.closed {
			rm.mu.Unlock()
			continue
		}

		if rm.has(p.ID()) {
			p.Send(protocol.UsersInRoom(rm.snapshot()))
			rm.mu.Unlock()
			return
		}

		rm.add(p)
		r.mu.Lock()
		r.roomOf[p.ID()] = rm
		r.mu.Unlock()

		r.metrics.joined()
		r.log.Info("participant joined", "room", roomID, "peer", p.ID(), "members", len(rm.order))

		rm.sendAll(protocol.UsersInRoom(rm.snapshot()), "")
		rm.sendAll(protocol.UserJoined(p.ID()), p.ID())
		rm.mu.Unlock()
		return
	}
}

// Leave removes the participant from its room. The room is discarded when it
// becomes empty; otherwise the remaining members get the new snapshot and a
// user-left notice. Leaving while in no room is a no-op.
func (r *Registry) Leave(participantID string) {
	r.mu.Lock()
	rm := r.roomOf[participantID]
	r.mu.Unlock()
	if rm == nil {
		return
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if !rm.has(participantID) {
		return
	}
	rm.remove(participantID)

	r.mu.Lock()
	if r.roomOf[participantID] == rm {
		delete(r.roomOf, participantID)
	}
	empty := len(rm.members) == 0
	if empty {
		rm.closed = true
		delete(r.rooms, rm.id)
	}
	r.mu.Unlock()

	if empty {
		r.metrics.roomDeleted()
		r.log.Info("room deleted", "room", rm.id)
		return
	}

	r.log.Info("participant left", "room", rm.id, "peer", participantID, "members", len(rm.order))
	rm.sendAll(protocol.UsersInRoom(rm.snapshot()), "")
	rm.sendAll(protocol.UserLeft(participantID), "")
}

// RoomOf reports the room the participant is currently in.
func (r *Registry) RoomOf(participantID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.roomOf[participantID]
	if !ok {
		return "", false
	}
	return rm.id, true
}

// Members returns the member ids of roomID in join order, or nil if the room
// does not exist.
func (r *Registry) Members(roomID string) []string {
	r.mu.Lock()
	rm := r.rooms[roomID]
	r.mu.Unlock()
	if rm == nil {
		return nil
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.closed {
		return nil
	}
	return rm.snapshot()
}

// Rooms lists every room, sorted by id.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.Lock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.Unlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, rm := range rooms {
		rm.mu.Lock()
		if !rm.closed {
			infos = append(infos, RoomInfo{ID: rm.id, Members: len(rm.members)})
		}
		rm.mu.Unlock()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Len returns the number of rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// lockRoom returns roomID's room with its mutex held, creating it if needed.
// A new room is locked before it is published, so nobody can observe it
// without its first member.
func (r *Registry) lockRoom(roomID string) *room {
	r.mu.Lock()
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = newRoom(roomID)
		rm.mu.Lock()
		r.rooms[roomID] = rm
		r.mu.Unlock()

		r.metrics.roomCreated()
		r.log.Debug("room created", "room", roomID)
		return rm
	}
	r.mu.Unlock()

	rm.mu.Lock()
	return rm
}
