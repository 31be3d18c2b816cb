package reload

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Source reports whether a watched artifact changed since the last call.
type Source interface {
	Name() string
	Changed() (bool, error)
}

// StatSource fingerprints a file by modification time and size.
type StatSource struct {
	path string

	mu    sync.Mutex
	mtime time.Time
	size  int64
}

// NewStatSource records the current fingerprint of path as the baseline.
func NewStatSource(path string) (*StatSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}
	return &StatSource{path: path, mtime: fi.ModTime(), size: fi.Size()}, nil
}

func (s *StatSource) Name() string { return "stat:" + s.path }

func (s *StatSource) Changed() (bool, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if fi.ModTime().Equal(s.mtime) && fi.Size() == s.size {
		return false, nil
	}
	s.mtime, s.size = fi.ModTime(), fi.Size()
	return true, nil
}

// Drifter is implemented by config.ConfigManager.
type Drifter interface {
	Path() string
	Drifted() (bool, []string, error)
}

// ConfigSource reports a change only when the effective config content
// differs from what was loaded. Touching the file is not a change and a file
// that fails to parse is reported as an error.
type ConfigSource struct {
	cfg Drifter

	mu       sync.Mutex
	sections []string
}

func NewConfigSource(cfg Drifter) *ConfigSource { return &ConfigSource{cfg: cfg} }

func (s *ConfigSource) Name() string { return "config:" + s.cfg.Path() }

func (s *ConfigSource) Changed() (bool, error) {
	changed, sections, err := s.cfg.Drifted()
	if err != nil || !changed {
		return false, err
	}
	s.mu.Lock()
	s.sections = sections
	s.mu.Unlock()
	return true, nil
}

// Sections lists the top-level config sections of the last detected change.
func (s *ConfigSource) Sections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sections...)
}

// NotifySource collects fsnotify events for a set of files. Parent
// directories are watched so editors and installers that replace a file by
// rename are still seen.
type NotifySource struct {
	w     *fsnotify.Watcher
	files map[string]struct{}
	done  chan struct{}

	mu      sync.Mutex
	dirty   bool
	lastErr error
}

func NewNotifySource(paths ...string) (*NotifySource, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	s := &NotifySource{w: w, files: map[string]struct{}{}, done: make(chan struct{})}
	dirs := map[string]struct{}{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = w.Close()
			return nil, err
		}
		s.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for d := range dirs {
		if err := w.Add(d); err != nil {
			_ = w.Close()
			return nil, fmt.Errorf("watch %q: %w", d, err)
		}
	}
	go s.loop()
	return s, nil
}

func (s *NotifySource) loop() {
	defer close(s.done)
	for {
		select {
		case ev, ok := <-s.w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if _, ok := s.files[abs]; !ok {
				continue
			}
			s.mu.Lock()
			s.dirty = true
			s.mu.Unlock()
		case err, ok := <-s.w.Errors:
			if !ok {
				return
			}
			s.mu.Lock()
			s.lastErr = err
			s.mu.Unlock()
		}
	}
}

func (s *NotifySource) Name() string { return "notify" }

// Changed reports and clears the pending event flag. A watcher error is
// returned once and then cleared.
func (s *NotifySource) Changed() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr != nil {
		err := s.lastErr
		s.lastErr = nil
		return false, err
	}
	d := s.dirty
	s.dirty = false
	return d, nil
}

func (s *NotifySource) Close() error {
	err := s.w.Close()
	<-s.done
	return err
}
