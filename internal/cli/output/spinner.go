package output

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultSpinnerInterval is the delay between animation frames.
const DefaultSpinnerInterval = 100 * time.Millisecond

// Spinner displays a progress animation on a single line.
//
// Start may be skipped; Success and Fail then print only their final line.
// Exactly one of Stop, Success or Fail should be called.
type Spinner struct {
	w        io.Writer
	message  string
	frames   []string
	interval time.Duration

	mu       sync.Mutex
	done     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

// NewSpinner creates a new spinner.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:        w,
		message:  message,
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval: DefaultSpinnerInterval,
		done:     make(chan struct{}),
	}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.finished != nil {
		s.mu.Unlock()
		return
	}
	s.finished = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.finished)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			s.mu.Lock()
			fmt.Fprintf(s.w, "\r%s %s", s.frames[i%len(s.frames)], s.message)
			s.mu.Unlock()
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// halt stops the animation and waits for the last frame to be written.
func (s *Spinner) halt() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		finished := s.finished
		s.mu.Unlock()
		if finished != nil {
			<-finished
		}
	})
}

// Stop stops the spinner and clears the line.
func (s *Spinner) Stop() {
	s.halt()
	fmt.Fprint(s.w, "\r\033[K")
}

// Success stops the spinner with a success message.
func (s *Spinner) Success(message string) {
	s.halt()
	fmt.Fprintf(s.w, "\r\033[K✓ %s\n", message)
}

// Fail stops the spinner with a failure message.
func (s *Spinner) Fail(message string) {
	s.halt()
	fmt.Fprintf(s.w, "\r\033[K✗ %s\n", message)
}
