package media

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/pion/rtp"
	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// Playback consumes one remote audio track. It implements mesh.Playback.
//
// Decoding and rendering are left to the host; packets are counted and,
// when a recording directory is set, written to <peer>.ogg.
type Playback struct {
	remote string
	log    *slog.Logger

	volume   atomic.Uint64 // math.Float64bits
	received atomic.Uint64
	dropped  atomic.Uint64

	mu     sync.Mutex
	writer *oggwriter.OggWriter
	closed bool
}

// newPlayback prepares playback for remote. A recording failure is
// returned alongside a usable Playback without a writer.
func newPlayback(remote, recordDir string, log *slog.Logger) (*Playback, error) {
	p := &Playback{remote: remote, log: log}
	p.volume.Store(math.Float64bits(1))
	if recordDir == "" {
		return p, nil
	}

	if err := os.MkdirAll(recordDir, 0o755); err != nil {
		return p, fmt.Errorf("create recording directory: %w", err)
	}
	path := filepath.Join(recordDir, sanitize(remote)+".ogg")
	w, err := oggwriter.New(path, sampleRate, channelCount)
	if err != nil {
		return p, fmt.Errorf("create recording %s: %w", path, err)
	}
	p.writer = w
	return p, nil
}

// SetVolume records the output level. Zero silences the link.
func (p *Playback) SetVolume(v float64) {
	p.volume.Store(math.Float64bits(v))
}

func (p *Playback) Volume() float64 {
	return math.Float64frombits(p.volume.Load())
}

// Stats reports packets accepted and packets dropped while silenced.
func (p *Playback) Stats() (received, dropped uint64) {
	return p.received.Load(), p.dropped.Load()
}

// run reads RTP until the track ends.
func (p *Playback) run(track *pion.TrackRemote) {
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			p.log.Debug("remote track ended", "err", err)
			return
		}
		if err := p.handle(pkt); err != nil {
			p.log.Warn("recording failed", "err", err)
		}
	}
}

func (p *Playback) handle(pkt *rtp.Packet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	if p.Volume() == 0 {
		p.dropped.Add(1)
		return nil
	}
	p.received.Add(1)
	if p.writer == nil {
		return nil
	}
	return p.writer.WriteRTP(pkt)
}

// Close finishes the recording. Packets arriving afterwards are ignored.
func (p *Playback) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// sanitize keeps a participant id safe as a file name.
func sanitize(id string) string {
	out := []rune(id)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			out[i] = '_'
		}
	}
	if len(out) == 0 {
		return "peer"
	}
	return string(out)
}
