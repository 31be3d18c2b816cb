package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"streamrec/internal/checker"
	"streamrec/internal/notifier"
	"streamrec/internal/storage"
	logx "streamrec/pkg/logx"
)

type fakeCheckers struct{ down []string }

func (f fakeCheckers) Snapshot() []checker.WorkerStatus {
	return []checker.WorkerStatus{{Plugin: "hls", Alive: true, Targets: []checker.Target{{Name: "a", URL: "u"}}}}
}
func (f fakeCheckers) Unavailable() []string { return f.down }

type fakeEvents struct {
	gotLimit int
	err      error
}

func (f *fakeEvents) RecentLive(_ context.Context, limit int) ([]storage.LiveRecord, error) {
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []storage.LiveRecord{{ID: "1", Plugin: "hls", Streamer: "a"}}, nil
}

func get(t *testing.T, h http.Handler, path string, mod ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, m := range mod {
		m(req)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAPI(t *testing.T) {
	ev := &fakeEvents{}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("m 1\n")) })
	s := New(Options{}, Deps{Checkers: fakeCheckers{down: []string{"x"}}, Events: ev, Metrics: metrics, Version: "v1"}, logx.Nop())
	h := s.Handler()

	rec := get(t, h, "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "degraded", health["status"])
	require.Equal(t, "v1", health["version"])

	rec = get(t, h, "/api/checkers")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"plugin":"hls"`)

	rec = get(t, h, "/api/events?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, ev.gotLimit)
	require.Contains(t, rec.Body.String(), `"streamer":"a"`)

	require.Equal(t, http.StatusBadRequest, get(t, h, "/api/events?limit=abc").Code)

	ev.err = errors.New("db locked")
	require.Equal(t, http.StatusInternalServerError, get(t, h, "/api/events").Code)

	rec = get(t, h, "/metrics")
	require.Equal(t, "m 1\n", rec.Body.String())
}

func TestEventsWithoutStorage(t *testing.T) {
	s := New(Options{}, Deps{}, logx.Nop())
	require.Equal(t, http.StatusServiceUnavailable, get(t, s.Handler(), "/api/events").Code)
	require.Equal(t, http.StatusOK, get(t, s.Handler(), "/api/checkers").Code)
}

func TestBasicAuth(t *testing.T) {
	s := New(Options{Password: "secret"}, Deps{}, logx.Nop())
	h := s.Handler()

	require.Equal(t, http.StatusUnauthorized, get(t, h, "/api/health").Code)
	rec := get(t, h, "/api/health", func(r *http.Request) { r.SetBasicAuth(AuthUser, "secret") })
	require.Equal(t, http.StatusOK, rec.Code)
	rec = get(t, h, "/api/health", func(r *http.Request) { r.SetBasicAuth(AuthUser, "wrong") })
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStaticDirAndProfiling(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>ui</h1>"), 0o644))

	s := New(Options{StaticDir: dir, Profiling: true}, Deps{}, logx.Nop())
	rec := get(t, s.Handler(), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "<h1>ui</h1>")

	rec = get(t, s.Handler(), "/debug/pprof/")
	require.Equal(t, http.StatusOK, rec.Code)

	s = New(Options{Profiling: true, ProfilingPrefix: "/_prof"}, Deps{}, logx.Nop())
	rec = get(t, s.Handler(), "/_prof/goroutine?debug=1")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = get(t, s.Handler(), "/debug/pprof/")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

type dropCounter uint64

func (d dropCounter) Dropped() uint64 { return uint64(d) }

type fakeHistory []notifier.HistoryItem

func (f fakeHistory) History() []notifier.HistoryItem { return f }

func TestHealthDropsAndNotifications(t *testing.T) {
	s := New(Options{}, Deps{
		Bus:           dropCounter(3),
		Notifications: fakeHistory{{Text: "alice is live"}},
	}, logx.Nop())

	rec := get(t, s.Handler(), "/api/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, float64(3), health["events_dropped"])

	rec = get(t, s.Handler(), "/api/notifications")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "alice is live")

	rec = get(t, New(Options{}, Deps{}, logx.Nop()).Handler(), "/api/notifications")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCleanupIsBoundedByShutdownTimeout(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	stuck := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(entered)
		<-release
	})

	s := New(Options{Host: "127.0.0.1", Port: 0, ShutdownTimeout: 100 * time.Millisecond}, Deps{Metrics: stuck}, logx.Nop())
	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()
	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 5*time.Millisecond)

	go func() {
		resp, err := http.Get("http://" + s.Addr() + "/metrics")
		if err == nil {
			_ = resp.Body.Close()
		}
	}()
	<-entered

	start := time.Now()
	err := s.Cleanup(context.Background())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 2*time.Second)
	require.NoError(t, <-done)
}

func TestStartAndCleanup(t *testing.T) {
	s := New(Options{Host: "127.0.0.1", Port: 0}, Deps{}, logx.Nop())
	done := make(chan error, 1)
	go func() { done <- s.Start(context.Background()) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 5*time.Millisecond)
	resp, err := http.Get("http://" + s.Addr() + "/api/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Cleanup(ctx))
	require.NoError(t, s.Cleanup(ctx))
	require.NoError(t, <-done)
}

func TestStartStopsOnContext(t *testing.T) {
	s := New(Options{Host: "127.0.0.1", Port: 0}, Deps{}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestStartBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	s := New(Options{Host: "127.0.0.1", Port: port}, Deps{}, logx.Nop())
	require.Error(t, s.Start(context.Background()))
}

func TestCleanupBeforeStart(t *testing.T) {
	s := New(Options{Host: "127.0.0.1", Port: 0}, Deps{}, logx.Nop())
	require.NoError(t, s.Cleanup(context.Background()))
	require.NoError(t, s.Start(context.Background()))
}
