package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// SimpleSpinner is a blocking-free line spinner for work that happens
// before the room view starts.
type SimpleSpinner struct {
	out      io.Writer
	spinner  spinner.Spinner
	interval time.Duration

	mu      sync.Mutex
	message string

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// NewConnectionSpinner creates a spinner for network operations (Globe style)
func NewConnectionSpinner(message string) *SimpleSpinner {
	return &SimpleSpinner{
		out:      os.Stderr,
		message:  message,
		spinner:  spinner.Globe,
		interval: 180 * time.Millisecond,
		done:     make(chan struct{}),
	}
}

// NewWaitingSpinner creates a spinner for waiting on peers (Points style)
func NewWaitingSpinner(message string) *SimpleSpinner {
	return &SimpleSpinner{
		out:      os.Stderr,
		message:  message,
		spinner:  spinner.Points,
		interval: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}
}

func (s *SimpleSpinner) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		frames := s.spinner.Frames
		for i := 0; ; i++ {
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			fmt.Fprintf(s.out, "\r%s %s", SpinnerStyle.Render(frames[i%len(frames)]), msg)

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop ends the spinner and clears its line. Safe to call more than once.
func (s *SimpleSpinner) Stop() {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		fmt.Fprint(s.out, "\r\033[K")
	})
}

func (s *SimpleSpinner) Success(message string) {
	s.Stop()
	successNotice.fprint(s.out, message)
}

func (s *SimpleSpinner) Error(message string) {
	s.Stop()
	errorNotice.fprint(s.out, message)
}

func (s *SimpleSpinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}
