package utils

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const spinnerFrames = `⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏`

// Spinner is a terminal progress indicator shared by concurrently running
// jobs. It keeps spinning while at least one job is active.
type Spinner struct {
	mu         sync.Mutex
	delay      time.Duration
	writer     io.Writer
	message    string
	lastOutput string
	hideCursor bool

	active int
	stop   chan struct{}
	done   chan struct{}
}

// NewSpinner instantiates a new progress indicator writing to stderr.
func NewSpinner(msg string, d time.Duration, hideCursor bool) *Spinner {
	return &Spinner{
		delay:      d,
		writer:     os.Stderr,
		message:    msg,
		hideCursor: hideCursor,
	}
}

// SetWriter redirects the spinner output.
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Start registers a new job and starts spinning if it is the first one.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active++
	if s.active > 1 {
		return
	}
	if s.hideCursor && runtime.GOOS != "windows" {
		// hides the cursor
		fmt.Fprint(s.writer, "\033[?25l")
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.spin(s.stop, s.done)
}

func (s *Spinner) spin(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.delay)
	defer ticker.Stop()

	frames := []rune(spinnerFrames)
	for i := 0; ; i++ {
		s.mu.Lock()
		output := fmt.Sprintf("\r%s%s %c%s", s.message, SuccessColor, frames[i%len(frames)], DefaultColor)
		fmt.Fprint(s.writer, output)
		s.lastOutput = output
		s.mu.Unlock()

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// Stop ends one job and prints msg in place of the spinner line. The spinner
// only stops once every started job has ended.
func (s *Spinner) Stop(msg string) {
	s.mu.Lock()
	if s.active == 0 {
		s.mu.Unlock()
		return
	}
	s.active--
	if s.active > 0 {
		s.clear()
		if msg != "" {
			fmt.Fprintln(s.writer, msg)
		}
		s.mu.Unlock()
		return
	}
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	s.restoreCursor()
	fmt.Fprint(s.writer, msg)
}

// restoreCursor makes the cursor visible again. Caller must hold the lock.
func (s *Spinner) restoreCursor() {
	if s.hideCursor && runtime.GOOS != "windows" {
		fmt.Fprint(s.writer, "\033[?25h")
	}
}

// clear deletes the last line. Caller must hold the lock.
func (s *Spinner) clear() {
	n := utf8.RuneCountInString(s.lastOutput)
	if n == 0 {
		return
	}
	if runtime.GOOS == "windows" {
		fmt.Fprint(s.writer, "\r"+strings.Repeat(" ", n)+"\r")
		s.lastOutput = ""
		return
	}
	fmt.Fprint(s.writer, "\r\033[K") // clear line
	s.lastOutput = ""
}
