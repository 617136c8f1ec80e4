// Package media connects mesh links to pion WebRTC peer connections and
// provides the local capture track and per-link playback.
package media

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/cagdaskarabulut/yali-speak/internal/config"
	"github.com/cagdaskarabulut/yali-speak/internal/mesh"
)

var (
	ErrConnectionFailed = errors.New("peer connection failed")
	ErrUnexpectedSignal = errors.New("unexpected signal type")
)

// Audio format of the shared capture track.
const (
	sampleRate   = 48000
	channelCount = 2
)

// Engine creates peer connections sharing one capture track. It implements
// mesh.Media.
type Engine struct {
	cfg *config.Config
	log *slog.Logger

	mu    sync.Mutex
	track *pion.TrackLocalStaticSample
}

// NewEngine creates an engine using cfg's ICE and capture settings.
func NewEngine(cfg *config.Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, log: log.With("component", "media")}
}

// OpenCapture starts the capture source: the configured Ogg/Opus file, or
// silence when none is set.
func (e *Engine) OpenCapture() (mesh.Capture, error) {
	src, err := openSource(e.cfg.CaptureFile)
	if err != nil {
		return nil, err
	}

	track, err := e.localTrack()
	if err != nil {
		src.close()
		return nil, err
	}

	c := newCapture(track, src, e.log)
	go c.run()
	return c, nil
}

// localTrack returns the shared outgoing track, creating it on first use.
func (e *Engine) localTrack() (*pion.TrackLocalStaticSample, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.track != nil {
		return e.track, nil
	}
	track, err := pion.NewTrackLocalStaticSample(
		pion.RTPCodecCapability{MimeType: pion.MimeTypeOpus, ClockRate: sampleRate, Channels: channelCount},
		"audio", "yali",
	)
	if err != nil {
		return nil, fmt.Errorf("create audio track: %w", err)
	}
	e.track = track
	return track, nil
}

// NewConn creates a peer connection to remote. An initiator starts the
// offer immediately.
func (e *Engine) NewConn(remote string, role mesh.Role, cb mesh.Callbacks) (mesh.Conn, error) {
	pc, err := NewPeerConnection(e.cfg)
	if err != nil {
		return nil, err
	}

	c := &peerConn{
		pc:        pc,
		remote:    remote,
		role:      role,
		cb:        cb,
		recordDir: e.cfg.RecordDir,
		closed:    make(chan struct{}),
		log:       e.log.With("peer", remote, "role", role),
	}

	e.mu.Lock()
	track := e.track
	e.mu.Unlock()

	if err := c.attach(track); err != nil {
		pc.Close()
		return nil, err
	}
	c.watch()

	if role == mesh.Initiator {
		go c.offer()
	}
	return c, nil
}

// NewPeerConnection builds a peer connection from the configured ICE
// servers. Relay-only policy is used when TURN is available and relay is
// forced or the host looks to be behind a tunnel.
func NewPeerConnection(cfg *config.Config) (*pion.PeerConnection, error) {
	var iceServers []pion.ICEServer
	if len(cfg.STUNServers) > 0 {
		iceServers = append(iceServers, pion.ICEServer{URLs: cfg.STUNServers})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || behindTunnel()) {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return pc, nil
}
