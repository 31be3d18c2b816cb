// Package web is the optional HTTP service: health, checker status, recent
// live events, Prometheus metrics and the static UI directory.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"streamrec/internal/checker"
	"streamrec/internal/notifier"
	"streamrec/internal/observability/pprof"
	"streamrec/internal/storage"
	logx "streamrec/pkg/logx"
)

// AuthUser is the basic-auth user name when a password is set.
const AuthUser = "streamrec"

type Options struct {
	Host      string
	Port      int
	StaticDir string
	Password  string
	// Profiling mounts the runtime profiler at ProfilingPrefix
	// (default /debug/pprof/) behind the same auth.
	Profiling       bool
	ProfilingPrefix string
	// ShutdownTimeout bounds Cleanup; default 5s.
	ShutdownTimeout time.Duration
}

const defaultShutdownTimeout = 5 * time.Second

func (o Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// CheckerView is implemented by checker.Supervisor.
type CheckerView interface {
	Snapshot() []checker.WorkerStatus
	Unavailable() []string
}

// EventSource is implemented by storage.Store.
type EventSource interface {
	RecentLive(ctx context.Context, limit int) ([]storage.LiveRecord, error)
}

// DropCounter is implemented by eventbus.Bus.
type DropCounter interface {
	Dropped() uint64
}

// NotifyHistory is implemented by notifier.Service.
type NotifyHistory interface {
	History() []notifier.HistoryItem
}

type Deps struct {
	Checkers      CheckerView
	Events        EventSource
	Bus           DropCounter
	Notifications NotifyHistory
	Metrics       http.Handler
	Version       string
}

type Server struct {
	opts    Options
	deps    Deps
	log     logx.Logger
	router  chi.Router
	started time.Time

	mu      sync.Mutex
	srv     *http.Server
	ln      net.Listener
	cleaned bool
}

func New(opts Options, deps Deps, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}
	s := &Server{opts: opts, deps: deps, log: log, started: time.Now()}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)
	if s.opts.Password != "" {
		r.Use(middleware.BasicAuth("streamrec", map[string]string{AuthUser: s.opts.Password}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/health", s.health)
		r.Get("/checkers", s.checkers)
		r.Get("/events", s.events)
		r.Get("/notifications", s.notifications)
	})
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}
	if s.opts.Profiling {
		pprof.Mount(r, s.opts.ProfilingPrefix)
	}
	if s.opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	return r
}

// Start listens on Options.Addr and serves until ctx is done or Cleanup runs.
// A bind failure is returned immediately.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cleaned {
		s.mu.Unlock()
		return nil
	}
	ln, err := net.Listen("tcp", s.opts.Addr())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.srv, s.ln = srv, ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = s.Cleanup(context.WithoutCancel(ctx))
	})
	defer stop()

	s.log.Info("web service started", logx.String("addr", ln.Addr().String()), logx.Bool("auth", s.opts.Password != ""))
	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr is the bound address, empty until Start has listened.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Cleanup shuts the listener down gracefully so the port is free before the
// process re-executes. In-flight requests get at most ShutdownTimeout (or
// until ctx is done) before connections are closed. Safe to call more than once.
func (s *Server) Cleanup(ctx context.Context) error {
	s.mu.Lock()
	if s.cleaned {
		s.mu.Unlock()
		return nil
	}
	s.cleaned = true
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()
	err := srv.Shutdown(ctx)
	if err != nil {
		_ = srv.Close()
	}
	s.log.Info("web service stopped")
	return err
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Int("status", ww.Status()),
			logx.Duration("took", time.Since(start)),
			logx.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
