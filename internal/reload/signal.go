package reload

import (
	"context"
	"sync"
)

// Signal is a write-once cancellation token shared by the watchdog, the
// orchestrator and every checker worker. Once set it stays set for the life
// of the process.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Set marks the signal. Extra calls are no-ops.
func (s *Signal) Set() {
	s.once.Do(func() { close(s.ch) })
}

func (s *Signal) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Done is closed once Set has been called.
func (s *Signal) Done() <-chan struct{} { return s.ch }

// Fire adapts Set to the watchdog Callback signature.
func (s *Signal) Fire(context.Context) error {
	s.Set()
	return nil
}
