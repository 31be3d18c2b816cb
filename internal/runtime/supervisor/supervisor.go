package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	logx "streamrec/pkg/logx"
)

// Supervisor manages goroutines tied to a shared context.
//   - Named goroutines (for logging/debug)
//   - Panic recovery: a panicking goroutine ends alone, the process keeps running
//   - Optional cancel-on-first-error
//   - Graceful stop with timeout-aware waiting
//
// Goroutines are never restarted; once one exits it stays exited.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	started uint64
	active  int64

	log         logx.Logger
	cancelOnErr bool
	errOnce     sync.Once
	firstErr    atomic.Value // stores error
	doneOnce    sync.Once
	doneCh      chan struct{}
	wg          sync.WaitGroup

	mu    sync.Mutex
	stats map[string]*gorStats
}

type SupervisorOption func(*Supervisor)

// Counters exposes best-effort goroutine counters.
// These are operational signals only (not a synchronization primitive).
type Counters struct {
	Active  int64  `json:"active"`
	Started uint64 `json:"started"`
}

// GoroutineStats is a best-effort view of one named goroutine.
type GoroutineStats struct {
	Name        string        `json:"name"`
	Active      bool          `json:"active"`
	Panics      uint64        `json:"panics"`
	StartedAt   time.Time     `json:"started_at"`
	StoppedAt   time.Time     `json:"stopped_at,omitempty"`
	LastErr     string        `json:"last_err,omitempty"`
	LastPanic   string        `json:"last_panic,omitempty"`
	Runtime     time.Duration `json:"runtime"`
	ExitedClean bool          `json:"exited_clean"`
}

// Snapshot is a point-in-time snapshot of a supervisor.
type Snapshot struct {
	Counters   Counters         `json:"counters"`
	FirstError string           `json:"first_error,omitempty"`
	Goroutines []GoroutineStats `json:"goroutines"`
}

type gorStats struct {
	name      string
	active    bool
	panics    uint64
	startedAt time.Time
	stoppedAt time.Time
	lastErr   string
	lastPanic string
}

func WithLogger(log logx.Logger) SupervisorOption {
	return func(s *Supervisor) { s.log = log }
}

// WithCancelOnError makes the first non-nil error from any goroutine cancel the supervisor context.
func WithCancelOnError(enabled bool) SupervisorOption {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func NewSupervisor(parent context.Context, opts ...SupervisorOption) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
		stats:  map[string]*gorStats{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the supervisor context without waiting for goroutines to exit.
func (s *Supervisor) Cancel() { s.cancel() }

func (s *Supervisor) Err() error {
	v := s.firstErr.Load()
	if v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}

// Counters returns best-effort goroutine counters for this supervisor.
func (s *Supervisor) Counters() Counters {
	if s == nil {
		return Counters{}
	}
	return Counters{
		Active:  atomic.LoadInt64(&s.active),
		Started: atomic.LoadUint64(&s.started),
	}
}

// Alive reports whether the goroutine registered under name is still running.
func (s *Supervisor) Alive(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[name]
	return st != nil && st.active
}

// Snapshot returns a point-in-time snapshot of the supervisor.
func (s *Supervisor) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	snap := Snapshot{Counters: s.Counters()}
	if err := s.Err(); err != nil {
		snap.FirstError = err.Error()
	}

	now := time.Now()
	s.mu.Lock()
	gs := make([]GoroutineStats, 0, len(s.stats))
	for _, st := range s.stats {
		end := st.stoppedAt
		if st.active {
			end = now
		}
		gs = append(gs, GoroutineStats{
			Name:        st.name,
			Active:      st.active,
			Panics:      st.panics,
			StartedAt:   st.startedAt,
			StoppedAt:   st.stoppedAt,
			LastErr:     st.lastErr,
			LastPanic:   st.lastPanic,
			Runtime:     end.Sub(st.startedAt),
			ExitedClean: !st.active && st.lastErr == "" && st.panics == 0,
		})
	}
	s.mu.Unlock()

	sort.Slice(gs, func(i, j int) bool { return gs[i].Name < gs[j].Name })
	snap.Goroutines = gs
	return snap
}

func (s *Supervisor) noteStart(name string) {
	s.mu.Lock()
	s.stats[name] = &gorStats{name: name, active: true, startedAt: time.Now()}
	s.mu.Unlock()
}

func (s *Supervisor) noteStop(name string, err error, pan any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats[name]
	if st == nil {
		return
	}
	st.active = false
	st.stoppedAt = time.Now()
	if err != nil {
		st.lastErr = err.Error()
	}
	if pan != nil {
		st.panics++
		st.lastPanic = fmt.Sprint(pan)
	}
}

// Go runs fn on its own goroutine under name. A returned error or a panic is
// recorded and logged; neither affects sibling goroutines unless
// WithCancelOnError is set.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	atomic.AddUint64(&s.started, 1)
	atomic.AddInt64(&s.active, 1)
	s.noteStart(name)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer atomic.AddInt64(&s.active, -1)

		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic in %s: %v", name, r)
				s.log.Error("goroutine panicked", logx.String("name", name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
				s.noteStop(name, err, r)
				s.fail(err)
			}
		}()

		s.log.Debug("goroutine started", logx.String("name", name))
		err := fn(s.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%s: %w", name, err)
			s.log.Error("goroutine failed", logx.String("name", name), logx.Err(err))
			s.noteStop(name, err, nil)
			s.fail(err)
			return
		}
		s.noteStop(name, nil, nil)
		s.log.Debug("goroutine stopped", logx.String("name", name))
	}()
}

func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	s.Go(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

// Wait blocks until every goroutine has returned or ctx is done.
func (s *Supervisor) Wait(ctx context.Context) error {
	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.doneCh)
		}()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneCh:
		return nil
	}
}

func (s *Supervisor) fail(err error) {
	s.errOnce.Do(func() { s.firstErr.Store(err) })
	if s.cancelOnErr {
		s.cancel()
	}
}
