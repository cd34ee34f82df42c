package tui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner animates a single status line on w while a blocking call, such as
// waiting for an instance to exit, is in flight.
type Spinner struct {
	w     io.Writer
	label string
	start time.Time
	quit  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// StartSpinner begins redrawing label on w.
func StartSpinner(w io.Writer, label string) *Spinner {
	s := &Spinner{w: w, label: label, start: time.Now(), quit: make(chan struct{})}
	s.wg.Add(1)
	go s.run()
	return s
}

// Stop erases the line. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.quit)
		s.wg.Wait()
		fmt.Fprint(s.w, "\r\033[K")
	})
}

func (s *Spinner) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for frame := 0; ; frame++ {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			waited := time.Since(s.start).Round(100 * time.Millisecond)
			fmt.Fprintf(s.w, "\r\033[K%s %s %s", spinnerFrames[frame%len(spinnerFrames)], s.label, waited)
		}
	}
}
