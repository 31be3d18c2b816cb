package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

var errBadPidFile = errors.New("malformed pid file")

// readPID returns the pid stored at path. A missing file is os.ErrNotExist.
func readPID(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, errBadPidFile
	}
	return pid, nil
}

// pidFile is an acquired pid file: created exclusively, holding this
// process's pid and an advisory lock until released.
type pidFile struct {
	path string
	lock *flock.Flock
}

// acquirePidFile creates path with O_EXCL and writes the current pid. An
// existing file holding this process's own pid (left behind by an exec
// restart) is adopted. A file held by a live process yields
// ErrAlreadyRunning; a stale one is removed and creation retried once.
func acquirePidFile(path string, alive func(int) bool) (*pidFile, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	self := os.Getpid()

	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(self) + "\n")
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, errors.Join(werr, cerr)
			}
			return lockPidFile(path)
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}

		pid, rerr := readPID(path)
		switch {
		case rerr == nil && pid == self:
			return lockPidFile(path)
		case rerr == nil && alive(pid):
			return nil, &Error{Op: "start", PidFile: path, PID: pid, Err: ErrAlreadyRunning}
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("create pid file %q: lost race with another process", path)
}

func lockPidFile(path string) (*pidFile, error) {
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock pid file %q: %w", path, err)
	}
	if !ok {
		return nil, &Error{Op: "start", PidFile: path, Err: ErrAlreadyRunning}
	}
	return &pidFile{path: path, lock: l}, nil
}

// release removes the file if it still names this process.
func (p *pidFile) release() error {
	defer func() { _ = p.lock.Unlock() }()
	pid, err := readPID(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// removeIfPID deletes path when it still holds pid.
func removeIfPID(path string, pid int) error {
	cur, err := readPID(path)
	if err != nil && !errors.Is(err, errBadPidFile) {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err == nil && cur != pid {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
