package media

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// Capture paces frames from a source onto the shared track. It implements
// mesh.Capture.
type Capture struct {
	track   *pion.TrackLocalStaticSample
	src     source
	log     *slog.Logger
	enabled atomic.Bool
	written atomic.Uint64

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func newCapture(track *pion.TrackLocalStaticSample, src source, log *slog.Logger) *Capture {
	c := &Capture{
		track: track,
		src:   src,
		log:   log,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	c.enabled.Store(true)
	return c
}

// SetEnabled mutes or unmutes. While muted no samples are written; the
// track itself is untouched.
func (c *Capture) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

// Written reports how many frames reached the track.
func (c *Capture) Written() uint64 {
	return c.written.Load()
}

func (c *Capture) run() {
	defer close(c.done)
	defer c.src.close()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		frame, duration, err := c.src.next()
		if err != nil {
			c.log.Error("capture stopped", "err", err)
			return
		}

		select {
		case <-c.stop:
			return
		case <-timer.C:
		}
		timer.Reset(duration)

		if !c.enabled.Load() {
			continue
		}
		if err := c.track.WriteSample(media.Sample{Data: frame, Duration: duration}); err != nil {
			c.log.Debug("write sample", "err", err)
			continue
		}
		c.written.Add(1)
	}
}

// Close stops the source. The shared track stays attached to existing
// connections.
func (c *Capture) Close() error {
	c.once.Do(func() { close(c.stop) })
	<-c.done
	return nil
}
