// Package lifecycle starts, stops and restarts streamrec as a background
// daemon tracked by a pid file.
//
// On unix hosts Start re-executes the binary detached from the terminal; the
// detached copy owns the pid file for as long as its entry function runs.
// Elsewhere the entry simply runs in the foreground.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	logx "streamrec/pkg/logx"
)

var (
	ErrAlreadyRunning = errors.New("daemon already running")
	ErrNotRunning     = errors.New("daemon not running")
	ErrStopTimeout    = errors.New("daemon did not exit in time")
	ErrUnsupported    = errors.New("daemon control not supported on this platform")
)

// Error carries the pid file and pid a lifecycle operation acted on.
type Error struct {
	Op      string
	PidFile string
	PID     int
	Err     error
}

func (e *Error) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("%s: %v (pid %d, pid file %s)", e.Op, e.Err, e.PID, e.PidFile)
	}
	return fmt.Sprintf("%s: %v (pid file %s)", e.Op, e.Err, e.PidFile)
}

func (e *Error) Unwrap() error { return e.Err }

// Entry is the long-running body of the process.
type Entry func(ctx context.Context) error

type State int

const (
	StateAbsent State = iota
	StateRunning
	StateStale
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStale:
		return "stale"
	default:
		return "absent"
	}
}

type Status struct {
	PidFile string
	PID     int
	State   State
}

// Lifecycle is the daemon control capability of the host.
type Lifecycle interface {
	// Start launches entry in a detached process, or runs it when called in
	// the detached process itself.
	Start(ctx context.Context, entry Entry) error
	Stop(ctx context.Context) error
	// Restart is Stop (tolerating ErrNotRunning) followed by Start.
	Restart(ctx context.Context, entry Entry) error
	Status() (Status, error)
	// Detached reports whether this process is the detached daemon copy.
	Detached() bool
}

// Spawner launches the detached copy and returns its pid.
type Spawner interface {
	Spawn() (int, error)
}

type SpawnerFunc func() (int, error)

func (f SpawnerFunc) Spawn() (int, error) { return f() }

type settings struct {
	log         logx.Logger
	spawner     Spawner
	alive       func(pid int) bool
	terminate   func(pid int) error
	stopTimeout time.Duration
	detached    *bool
}

type Option func(*settings)

func WithLogger(log logx.Logger) Option { return func(s *settings) { s.log = log } }

func WithSpawner(sp Spawner) Option { return func(s *settings) { s.spawner = sp } }

// WithStopTimeout bounds how long Stop waits for the process to exit (default 10s).
func WithStopTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.stopTimeout = d
		}
	}
}

// WithProcessOps replaces the liveness check and the terminate signal.
func WithProcessOps(alive func(pid int) bool, terminate func(pid int) error) Option {
	return func(s *settings) {
		s.alive = alive
		s.terminate = terminate
	}
}

// WithDetached overrides detection of the detached copy.
func WithDetached(v bool) Option { return func(s *settings) { s.detached = &v } }

const DefaultStopTimeout = 10 * time.Second

func newSettings(opts []Option) settings {
	s := settings{stopTimeout: DefaultStopTimeout}
	for _, o := range opts {
		o(&s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}
