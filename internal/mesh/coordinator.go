package mesh

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// DefaultVolume is the playback volume before any SetVolume call.
const DefaultVolume = 0.75

// Options configures a Coordinator.
type Options struct {
	Signaler Signaler
	Media    Media
	Logger   *slog.Logger
	// Volume is the initial playback volume. Zero means DefaultVolume.
	Volume float64
	// Muted starts with the microphone disabled.
	Muted bool
}

// LinkStatus describes one link.
type LinkStatus struct {
	Remote string
	Role   Role
	State  State
}

// Status is a point-in-time copy of the coordinator's state.
type Status struct {
	SelfID  string
	RoomID  string
	Joined  bool
	Members []string
	Links   []LinkStatus
	Muted   bool
	Volume  float64
}

// Link returns the status of the link to remote, if any.
func (s Status) Link(remote string) (LinkStatus, bool) {
	for _, l := range s.Links {
		if l.Remote == remote {
			return l, true
		}
	}
	return LinkStatus{}, false
}

// Coordinator maintains the full mesh for one participant. Its exported
// methods are safe for concurrent use; it implements signalclient.Receiver.
type Coordinator struct {
	signaler Signaler
	media    Media
	log      *slog.Logger
	queue    *queue
	backlog  []event

	// Reactor state.
	selfID  string
	roomID  string
	joined  bool
	members []string
	links   map[string]*link
	capture Capture
	muted   bool
	volume  float64

	statusMu sync.Mutex
	status   Status
	updates  chan struct{}

	done chan struct{}
	err  error
}

// New creates a coordinator and starts its reactor. Events that arrive
// before Join are kept in order.
func New(opts Options) *Coordinator {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	volume := opts.Volume
	if volume == 0 {
		volume = DefaultVolume
	}
	c := &Coordinator{
		signaler: opts.Signaler,
		media:    opts.Media,
		log:      log.With("component", "mesh"),
		queue:    newQueue(),
		links:    make(map[string]*link),
		muted:    opts.Muted,
		volume:   clamp(volume),
		updates:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	c.publish()
	go c.run()
	return c
}

// Join opens the microphone and asks to join roomID. A capture failure is
// returned as ErrCaptureUnavailable and nothing is sent.
func (c *Coordinator) Join(ctx context.Context, roomID string) error {
	reply := make(chan error, 1)
	if !c.queue.push(joinCmd{roomID: roomID, reply: reply}) {
		return newError("join", ErrClosed)
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return newError("join", ErrClosed)
		}
	}
}

// Leave announces the departure, stops capture, tears down every link and
// closes the signaling connection. Calling it again does nothing.
func (c *Coordinator) Leave() error {
	reply := make(chan error, 1)
	if !c.queue.push(leaveCmd{reply: reply}) {
		return nil
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return nil
	}
}

// SetMuted enables or disables the local microphone.
func (c *Coordinator) SetMuted(muted bool) {
	c.queue.push(muteCmd{muted: muted})
}

// SetVolume sets the playback volume of every link, clamped to [0, 1].
func (c *Coordinator) SetVolume(v float64) {
	c.queue.push(volumeCmd{volume: clamp(v)})
}

// Snapshot returns the latest published status.
func (c *Coordinator) Snapshot() Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	s := c.status
	s.Members = slices.Clone(s.Members)
	s.Links = slices.Clone(s.Links)
	return s
}

// Updates receives a value whenever the status changes. Notifications are
// coalesced; read Snapshot for the current state.
func (c *Coordinator) Updates() <-chan struct{} {
	return c.updates
}

// Done is closed when the coordinator has stopped.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Err reports why the coordinator stopped. It is nil after Leave and while
// still running.
func (c *Coordinator) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Receiver side. These only enqueue.

func (c *Coordinator) Welcome(selfID string) { c.queue.push(welcomed{id: selfID}) }

func (c *Coordinator) UsersInRoom(ids []string) {
	c.queue.push(membersSeen{ids: slices.Clone(ids)})
}

func (c *Coordinator) UserJoined(id string) { c.queue.push(userJoined{id: id}) }
func (c *Coordinator) UserLeft(id string)   { c.queue.push(userLeft{id: id}) }

func (c *Coordinator) ReceiveSignal(senderID string, payload json.RawMessage) {
	c.queue.push(signalIn{from: senderID, payload: payload})
}

func (c *Coordinator) RelayClosed(err error) {
	c.queue.push(relayClosed{err: err})
}

// run is the reactor. Events taken from the queue but not yet handled stay
// in backlog so finish can release them.
func (c *Coordinator) run() {
	for range c.queue.ready {
		c.backlog = c.queue.take()
		for len(c.backlog) > 0 {
			ev := c.backlog[0]
			c.backlog = c.backlog[1:]
			if stop := c.handle(ev); stop {
				return
			}
		}
	}
}

// handle applies one event. It reports true once the coordinator has
// finished.
func (c *Coordinator) handle(ev event) bool {
	switch ev := ev.(type) {
	case joinCmd:
		ev.reply <- c.join(ev.roomID)

	case leaveCmd:
		c.leave()
		ev.reply <- nil
		c.finish(nil)
		return true

	case muteCmd:
		c.muted = ev.muted
		if c.capture != nil {
			c.capture.SetEnabled(!c.muted)
		}

	case volumeCmd:
		c.volume = ev.volume
		for _, l := range c.links {
			if l.playback != nil {
				l.playback.SetVolume(c.volume)
			}
		}

	case welcomed:
		c.selfID = ev.id
		c.log = c.log.With("self", ev.id)

	case membersSeen:
		c.membersChanged(ev.ids)

	case userJoined:
		c.userJoined(ev.id)

	case userLeft:
		c.log.Debug("participant left", "peer", ev.id)
		c.teardown(ev.id)

	case signalIn:
		c.signalReceived(ev.from, ev.payload)

	case outboundSignal:
		if c.current(ev.link) {
			if err := c.signaler.SendSignal(ev.link.remote, ev.payload); err != nil {
				c.log.Warn("failed to send handshake payload", "peer", ev.link.remote, "err", err)
			}
		}

	case streamStarted:
		c.streamStarted(ev.link, ev.playback)

	case linkFailed:
		if c.current(ev.link) {
			c.log.Warn("link failed", "peer", ev.link.remote, "err", ev.err)
			c.teardown(ev.link.remote)
		}

	case relayClosed:
		c.log.Warn("signaling connection lost", "err", ev.err)
		c.teardownAll()
		c.stopCapture()
		c.signaler.Close()
		if ev.err != nil {
			c.finish(fmt.Errorf("%w: %w", ErrRelayClosed, ev.err))
		} else {
			c.finish(ErrRelayClosed)
		}
		return true
	}

	c.publish()
	return false
}

func (c *Coordinator) join(roomID string) error {
	if roomID == "" {
		return newError("join", ErrEmptyRoom)
	}
	if c.joined {
		return newError("join", ErrAlreadyJoined)
	}

	capture, err := c.media.OpenCapture()
	if err != nil {
		return newError("join", fmt.Errorf("%w: %w", ErrCaptureUnavailable, err))
	}
	capture.SetEnabled(!c.muted)

	if err := c.signaler.JoinRoom(roomID); err != nil {
		capture.Close()
		return newError("join", err)
	}

	c.capture = capture
	c.roomID = roomID
	c.joined = true
	c.log = c.log.With("room", roomID)
	c.log.Info("joined room")
	return nil
}

// leave tells the room first, then releases local resources.
func (c *Coordinator) leave() {
	if c.joined {
		if err := c.signaler.LeaveRoom(); err != nil {
			c.log.Debug("failed to announce leave", "err", err)
		}
	}
	c.stopCapture()
	c.teardownAll()
	if err := c.signaler.Close(); err != nil {
		c.log.Debug("failed to close signaling", "err", err)
	}
	c.log.Info("left room")
}

// membersChanged records a snapshot and drops links to anyone not in it.
func (c *Coordinator) membersChanged(ids []string) {
	c.members = ids
	if !c.joined {
		return
	}
	for remote := range c.links {
		if !slices.Contains(ids, remote) {
			c.log.Debug("pruning link absent from snapshot", "peer", remote)
			c.teardown(remote)
		}
	}
}

// userJoined makes this side the initiator toward a newcomer.
func (c *Coordinator) userJoined(remote string) {
	if !c.joined || remote == "" || remote == c.selfID {
		return
	}
	if _, ok := c.links[remote]; ok {
		c.log.Debug("ignoring duplicate joined notice", "peer", remote)
		return
	}
	c.open(remote, Initiator)
}

// signalReceived feeds a payload to the link for from, creating a responder
// link when there is none.
func (c *Coordinator) signalReceived(from string, payload json.RawMessage) {
	if !c.joined || from == c.selfID {
		return
	}
	l, ok := c.links[from]
	if !ok {
		if l = c.open(from, Responder); l == nil {
			return
		}
	}
	if err := l.conn.Signal(payload); err != nil {
		c.log.Warn("failed to apply handshake payload", "peer", from, "err", err)
	}
}

func (c *Coordinator) open(remote string, role Role) *link {
	l := &link{remote: remote, role: role, state: Negotiating}
	conn, err := c.media.NewConn(remote, role, linkCallbacks{c: c, l: l})
	if err != nil {
		c.log.Error("failed to create link", "err", newPeerError("connect", remote, err))
		return nil
	}
	l.conn = conn
	c.links[remote] = l
	c.log.Debug("link created", "peer", remote, "role", role)
	return l
}

func (c *Coordinator) streamStarted(l *link, p Playback) {
	if !c.current(l) || l.playback != nil {
		p.Close()
		return
	}
	l.playback = p
	l.state = Established
	p.SetVolume(c.volume)
	c.log.Info("link established", "peer", l.remote, "role", l.role)
}

func (c *Coordinator) current(l *link) bool {
	return c.links[l.remote] == l
}

// teardown discards the link to remote, if any.
func (c *Coordinator) teardown(remote string) {
	l, ok := c.links[remote]
	if !ok {
		return
	}
	delete(c.links, remote)
	if err := l.conn.Close(); err != nil {
		c.log.Debug("closing link", "peer", remote, "err", err)
	}
	if l.playback != nil {
		l.playback.Close()
	}
}

func (c *Coordinator) teardownAll() {
	for remote := range c.links {
		c.teardown(remote)
	}
}

func (c *Coordinator) stopCapture() {
	if c.capture != nil {
		c.capture.Close()
		c.capture = nil
	}
}

// finish stops the reactor. Pending events, both the rest of the current
// batch and anything still queued, are discarded; playback handed over in
// them is released.
func (c *Coordinator) finish(err error) {
	pending := append(c.backlog, c.queue.close()...)
	c.backlog = nil
	for _, ev := range pending {
		switch ev := ev.(type) {
		case streamStarted:
			ev.playback.Close()
		case joinCmd:
			ev.reply <- newError("join", ErrClosed)
		case leaveCmd:
			ev.reply <- nil
		}
	}
	c.joined = false
	c.members = nil
	c.err = err
	c.publish()
	close(c.done)
}

// publish copies reactor state for Snapshot and notifies Updates.
func (c *Coordinator) publish() {
	s := Status{
		SelfID:  c.selfID,
		RoomID:  c.roomID,
		Joined:  c.joined,
		Members: slices.Clone(c.members),
		Muted:   c.muted,
		Volume:  c.volume,
	}
	for _, l := range c.links {
		s.Links = append(s.Links, LinkStatus{Remote: l.remote, Role: l.role, State: l.state})
	}
	slices.SortFunc(s.Links, func(a, b LinkStatus) int {
		return cmp.Compare(a.Remote, b.Remote)
	})

	c.statusMu.Lock()
	c.status = s
	c.statusMu.Unlock()

	select {
	case c.updates <- struct{}{}:
	default:
	}
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
