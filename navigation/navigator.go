// Package navigation routes the user between frontend surfaces. Flows decide
// where to go; a Navigator decides how (HTTP redirect, printed URL, test
// recording).
package navigation

import (
	"sync"
)

type Navigator interface {
	Navigate(target string)
}

// NavigatorFunc adapts a function to the Navigator interface
type NavigatorFunc func(target string)

func (f NavigatorFunc) Navigate(target string) {
	f(target)
}

// Recorder remembers every navigation in order
type Recorder struct {
	mu      sync.Mutex
	targets []string
	notify  chan string
}

func NewRecorder() *Recorder {
	return &Recorder{notify: make(chan string, 16)}
}

func (r *Recorder) Navigate(target string) {
	r.mu.Lock()
	r.targets = append(r.targets, target)
	r.mu.Unlock()

	select {
	case r.notify <- target:
	default:
	}
}

// Targets returns a copy of every recorded target
func (r *Recorder) Targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.targets...)
}

// Last returns the most recent target, or "" when none
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.targets) == 0 {
		return ""
	}
	return r.targets[len(r.targets)-1]
}

// C delivers targets as they are recorded. Deliveries are dropped when the
// buffer is full; Targets is authoritative.
func (r *Recorder) C() <-chan string {
	return r.notify
}
