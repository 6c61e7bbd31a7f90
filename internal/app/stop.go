package app

import "sync/atomic"

// StopFlag is the cooperative cancellation token. The signal handler is its
// only writer; the driver reads it at item boundaries, so an in-flight
// transfer always runs to completion or natural failure.
type StopFlag struct {
	requested atomic.Bool
}

// Request asks the driver to stop once the in-flight item resolves
func (s *StopFlag) Request() {
	s.requested.Store(true)
}

// Requested reports whether a stop has been requested
func (s *StopFlag) Requested() bool {
	return s.requested.Load()
}
