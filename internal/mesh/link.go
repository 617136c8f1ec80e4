package mesh

import "encoding/json"

// link is the local end of one direct connection. The pointer identifies
// the link: events from a replaced or torn down link no longer match the
// current entry and are ignored.
type link struct {
	remote   string
	role     Role
	state    State
	conn     Conn
	playback Playback
}

// linkCallbacks forwards transport events for one link into the reactor.
type linkCallbacks struct {
	c *Coordinator
	l *link
}

func (cb linkCallbacks) OnSignal(payload json.RawMessage) {
	cb.c.queue.push(outboundSignal{link: cb.l, payload: payload})
}

func (cb linkCallbacks) OnStream(p Playback) {
	if !cb.c.queue.push(streamStarted{link: cb.l, playback: p}) {
		p.Close()
	}
}

func (cb linkCallbacks) OnFailed(err error) {
	cb.c.queue.push(linkFailed{link: cb.l, err: err})
}

// event is anything the reactor consumes.
type event interface{}

// Relay notices.
type (
	welcomed     struct{ id string }
	membersSeen  struct{ ids []string }
	userJoined   struct{ id string }
	userLeft     struct{ id string }
	signalIn     struct {
		from    string
		payload json.RawMessage
	}
	relayClosed struct{ err error }
)

// Transport callbacks.
type (
	outboundSignal struct {
		link    *link
		payload json.RawMessage
	}
	streamStarted struct {
		link     *link
		playback Playback
	}
	linkFailed struct {
		link *link
		err  error
	}
)

// Local commands.
type (
	joinCmd struct {
		roomID string
		reply  chan error
	}
	leaveCmd  struct{ reply chan error }
	muteCmd   struct{ muted bool }
	volumeCmd struct{ volume float64 }
)
