package media

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/cagdaskarabulut/yali-speak/internal/mesh"
)

// signal is the handshake payload. Descriptions are sent whole once ICE
// gathering has finished; a candidate is accepted for peers that trickle.
type signal struct {
	Type      string                 `json:"type,omitempty"`
	SDP       string                 `json:"sdp,omitempty"`
	Candidate *pion.ICECandidateInit `json:"candidate,omitempty"`
}

// decodeSignal parses a payload and rejects ones that carry nothing usable.
func decodeSignal(payload json.RawMessage) (*signal, error) {
	var s signal
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("parse signal: %w", err)
	}
	switch {
	case s.Candidate != nil:
		return &s, nil
	case s.Type == pion.SDPTypeOffer.String(), s.Type == pion.SDPTypeAnswer.String():
		if s.SDP == "" {
			return nil, fmt.Errorf("%w: %s without sdp", ErrUnexpectedSignal, s.Type)
		}
		return &s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnexpectedSignal, s.Type)
}

// peerConn is one pion peer connection. It implements mesh.Conn.
type peerConn struct {
	pc        *pion.PeerConnection
	remote    string
	role      mesh.Role
	cb        mesh.Callbacks
	recordDir string
	log       *slog.Logger

	closed    chan struct{}
	closeOnce sync.Once
	failOnce  sync.Once
}

// attach sends the shared capture track, or only receives when there is
// none.
func (c *peerConn) attach(track *pion.TrackLocalStaticSample) error {
	if track == nil {
		_, err := c.pc.AddTransceiverFromKind(pion.RTPCodecTypeAudio, pion.RTPTransceiverInit{
			Direction: pion.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			return fmt.Errorf("add audio transceiver: %w", err)
		}
		return nil
	}

	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add audio track: %w", err)
	}

	// Read incoming RTCP so interceptors run.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

// watch wires the connection's callbacks to the link.
func (c *peerConn) watch() {
	c.pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		if track.Kind() != pion.RTPCodecTypeAudio {
			return
		}
		c.log.Debug("remote track", "codec", track.Codec().MimeType)

		p, err := newPlayback(c.remote, c.recordDir, c.log)
		if err != nil {
			c.log.Warn("recording disabled", "err", err)
		}
		go p.run(track)
		c.cb.OnStream(p)
	})

	c.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		c.log.Debug("connection state", "state", state.String())
		if state == pion.PeerConnectionStateFailed {
			c.fail(ErrConnectionFailed)
		}
	})
}

func (c *peerConn) fail(err error) {
	c.failOnce.Do(func() { c.cb.OnFailed(err) })
}

// offer creates the local offer and hands it to the link once gathering
// has completed.
func (c *peerConn) offer() {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		c.fail(fmt.Errorf("create offer: %w", err))
		return
	}
	gathered := pion.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(offer); err != nil {
		c.fail(fmt.Errorf("set local description: %w", err))
		return
	}
	c.answer(gathered)
}

// answer waits for gathering and sends the local description.
func (c *peerConn) answer(gathered <-chan struct{}) {
	select {
	case <-gathered:
		c.sendLocalDescription()
	case <-c.closed:
	}
}

func (c *peerConn) sendLocalDescription() {
	desc := c.pc.LocalDescription()
	if desc == nil {
		return
	}
	payload, err := json.Marshal(signal{Type: desc.Type.String(), SDP: desc.SDP})
	if err != nil {
		c.fail(fmt.Errorf("encode description: %w", err))
		return
	}
	c.cb.OnSignal(payload)
}

// Signal applies a payload from the remote side.
func (c *peerConn) Signal(payload json.RawMessage) error {
	s, err := decodeSignal(payload)
	if err != nil {
		return err
	}

	if s.Candidate != nil {
		if err := c.pc.AddICECandidate(*s.Candidate); err != nil {
			return fmt.Errorf("add ICE candidate: %w", err)
		}
		return nil
	}

	desc := pion.SessionDescription{Type: pion.NewSDPType(s.Type), SDP: s.SDP}
	if err := c.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	if desc.Type != pion.SDPTypeOffer {
		return nil
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	gathered := pion.GatheringCompletePromise(c.pc)
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	go c.answer(gathered)
	return nil
}

// Close closes the peer connection, which also ends playback reads.
func (c *peerConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.pc.Close()
	})
	return err
}
