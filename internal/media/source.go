package media

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

// frameDuration is the Opus frame length used for silence and as a fallback
// when page timing is unusable.
const frameDuration = 20 * time.Millisecond

// opusSilence is a single Opus frame that decodes to 20 ms of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// source produces Opus frames for the capture track.
type source interface {
	next() ([]byte, time.Duration, error)
	close() error
}

// openSource opens path as an Ogg/Opus source, or silence when path is empty.
func openSource(path string) (source, error) {
	if path == "" {
		return silenceSource{}, nil
	}
	s := &oggSource{path: path}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

type silenceSource struct{}

func (silenceSource) next() ([]byte, time.Duration, error) {
	return opusSilence, frameDuration, nil
}

func (silenceSource) close() error { return nil }

// oggSource loops over an Ogg/Opus file, one page per frame. Durations come
// from the granule position.
type oggSource struct {
	path        string
	file        *os.File
	reader      *oggreader.OggReader
	lastGranule uint64
}

func (s *oggSource) open() error {
	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open capture file: %w", err)
	}
	reader, _, err := oggreader.NewWith(file)
	if err != nil {
		file.Close()
		return fmt.Errorf("read capture file %s: %w", s.path, err)
	}
	s.file = file
	s.reader = reader
	s.lastGranule = 0
	return nil
}

func (s *oggSource) next() ([]byte, time.Duration, error) {
	rewound := false
	for {
		page, header, err := s.reader.ParseNextPage()
		if errors.Is(err, io.EOF) {
			if rewound {
				return nil, 0, fmt.Errorf("capture file %s has no audio", s.path)
			}
			s.file.Close()
			if err := s.open(); err != nil {
				return nil, 0, err
			}
			rewound = true
			continue
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read capture file: %w", err)
		}
		if bytes.HasPrefix(page, []byte("OpusTags")) || len(page) == 0 {
			continue
		}

		samples := header.GranulePosition - s.lastGranule
		s.lastGranule = header.GranulePosition

		duration := time.Duration(samples) * time.Second / sampleRate
		if duration < time.Millisecond {
			duration = frameDuration
		}
		return page, duration, nil
	}
}

func (s *oggSource) close() error {
	if s.file == nil {
		return nil
	}
	return s.file.Close()
}
