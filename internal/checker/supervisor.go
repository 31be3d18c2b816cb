package checker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"streamrec/internal/eventbus"
	"streamrec/internal/reload"
	"streamrec/internal/runtime/supervisor"
	logx "streamrec/pkg/logx"
)

// Observer receives per-check and per-worker outcomes (metrics).
type Observer interface {
	CheckDone(plugin string, live bool, err error, took time.Duration)
	WorkerExited(plugin string, err error)
}

type nopObserver struct{}

func (nopObserver) CheckDone(string, bool, error, time.Duration) {}
func (nopObserver) WorkerExited(string, error)                   {}

// WorkerStatus is a point-in-time view of one checker worker.
type WorkerStatus struct {
	Plugin   string        `json:"plugin"`
	Schedule string        `json:"schedule"`
	Targets  []Target      `json:"targets"`
	Alive    bool          `json:"alive"`
	LiveNow  []string      `json:"live_now"`
	LastErr  string        `json:"last_err,omitempty"`
	Runtime  time.Duration `json:"runtime"`
}

// Supervisor runs one worker goroutine per registry entry. A worker that
// fails stays down; the plugin is reported as unavailable.
type Supervisor struct {
	bus eventbus.Bus
	sig *reload.Signal
	log logx.Logger
	obs Observer
	rt  *supervisor.Supervisor

	mu      sync.Mutex
	reg     *Registry
	workers map[string]*worker
	dead    map[string]error
}

type Option func(*Supervisor)

func WithLogger(log logx.Logger) Option { return func(s *Supervisor) { s.log = log } }

func WithObserver(o Observer) Option {
	return func(s *Supervisor) {
		if o != nil {
			s.obs = o
		}
	}
}

func NewSupervisor(ctx context.Context, bus eventbus.Bus, sig *reload.Signal, opts ...Option) *Supervisor {
	s := &Supervisor{
		bus:     bus,
		sig:     sig,
		log:     logx.Nop(),
		obs:     nopObserver{},
		workers: map[string]*worker{},
		dead:    map[string]error{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	s.rt = supervisor.NewSupervisor(ctx,
		supervisor.WithLogger(s.log),
		supervisor.WithCancelOnError(false),
	)
	return s
}

func goroutineName(plugin string) string { return "checker." + plugin }

// Start launches exactly reg.Len() workers. It may be called once.
func (s *Supervisor) Start(reg *Registry) error {
	s.mu.Lock()
	if s.reg != nil {
		s.mu.Unlock()
		return ErrAlreadyActive
	}
	s.reg = reg
	for _, e := range reg.Entries() {
		s.workers[e.Plugin] = newWorker(e, s.bus, s.sig, s.log, s.obs)
	}
	s.mu.Unlock()

	for _, e := range reg.Entries() {
		w := s.workers[e.Plugin]
		plugin := e.Plugin
		s.rt.Go(goroutineName(plugin), func(ctx context.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &WorkerError{Plugin: plugin, Err: fmt.Errorf("worker panicked: %v", r)}
				}
				s.exited(plugin, err)
			}()
			return w.run(ctx)
		})
	}
	s.log.Info("checkers started", logx.Int("workers", reg.Len()), logx.Strings("plugins", reg.Names()))
	return nil
}

func (s *Supervisor) exited(plugin string, err error) {
	s.obs.WorkerExited(plugin, err)
	if err == nil {
		return
	}
	s.mu.Lock()
	s.dead[plugin] = err
	s.mu.Unlock()
	var we *WorkerError
	if errors.As(err, &we) {
		s.log.Error("checker unavailable", logx.String("plugin", plugin), logx.String("target", we.Target.Name), logx.Err(we.Err))
	}
}

// Running counts workers that have not exited.
func (s *Supervisor) Running() int {
	s.mu.Lock()
	names := make([]string, 0, len(s.workers))
	for n := range s.workers {
		names = append(names, n)
	}
	s.mu.Unlock()

	n := 0
	for _, name := range names {
		if s.rt.Alive(goroutineName(name)) {
			n++
		}
	}
	return n
}

// Unavailable lists plugins whose worker ended with an error.
func (s *Supervisor) Unavailable() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.dead))
	for n := range s.dead {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s *Supervisor) Snapshot() []WorkerStatus {
	rt := map[string]supervisor.GoroutineStats{}
	for _, g := range s.rt.Snapshot().Goroutines {
		rt[g.Name] = g
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WorkerStatus, 0, len(s.workers))
	for _, e := range s.reg.Entries() {
		w := s.workers[e.Plugin]
		g := rt[goroutineName(e.Plugin)]
		st := WorkerStatus{
			Plugin:   e.Plugin,
			Schedule: e.ScheduleSpec,
			Targets:  e.Targets,
			Alive:    g.Active,
			LiveNow:  w.liveTargets(),
			Runtime:  g.Runtime,
		}
		if err := s.dead[e.Plugin]; err != nil {
			st.LastErr = err.Error()
		}
		out = append(out, st)
	}
	return out
}

// Wait blocks until every worker returned or ctx is done. Workers return on
// their own once the reload signal is set.
func (s *Supervisor) Wait(ctx context.Context) error { return s.rt.Wait(ctx) }

// Stop cancels in-flight checks and waits, bounded by ctx.
func (s *Supervisor) Stop(ctx context.Context) error { return s.rt.Stop(ctx) }
