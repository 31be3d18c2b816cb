//go:build unix

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	logx "streamrec/pkg/logx"
)

// envDetached marks the re-executed daemon copy.
const envDetached = "STREAMREC_DETACHED"

// Daemon controls a detached copy of the running binary through a pid file.
type Daemon struct {
	pidPath string
	s       settings
}

// New returns the host's Lifecycle implementation.
func New(pidPath string, opts ...Option) Lifecycle {
	return NewDaemon(pidPath, opts...)
}

func NewDaemon(pidPath string, opts ...Option) *Daemon {
	s := newSettings(opts)
	if s.alive == nil {
		s.alive = processAlive
	}
	if s.terminate == nil {
		s.terminate = terminate
	}
	if s.spawner == nil {
		s.spawner = SpawnerFunc(spawnSelf)
	}
	return &Daemon{pidPath: pidPath, s: s}
}

func (d *Daemon) Detached() bool {
	if d.s.detached != nil {
		return *d.s.detached
	}
	return os.Getenv(envDetached) == "1"
}

func (d *Daemon) Status() (Status, error) {
	st := Status{PidFile: d.pidPath}
	pid, err := readPID(d.pidPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		st.State = StateAbsent
		return st, nil
	case errors.Is(err, errBadPidFile):
		st.State = StateStale
		return st, nil
	case err != nil:
		return st, &Error{Op: "status", PidFile: d.pidPath, Err: err}
	}
	st.PID = pid
	if d.s.alive(pid) {
		st.State = StateRunning
	} else {
		st.State = StateStale
	}
	return st, nil
}

func (d *Daemon) Start(ctx context.Context, entry Entry) error {
	if d.Detached() {
		return d.runDetached(ctx, entry)
	}

	st, err := d.Status()
	if err != nil {
		return err
	}
	switch st.State {
	case StateRunning:
		return &Error{Op: "start", PidFile: d.pidPath, PID: st.PID, Err: ErrAlreadyRunning}
	case StateStale:
		d.s.log.Warn("removing stale pid file", logx.String("pid_file", d.pidPath), logx.Int("pid", st.PID))
		if err := os.Remove(d.pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return &Error{Op: "start", PidFile: d.pidPath, PID: st.PID, Err: err}
		}
	}

	pid, err := d.s.spawner.Spawn()
	if err != nil {
		return &Error{Op: "start", PidFile: d.pidPath, Err: err}
	}
	d.s.log.Info("daemon started", logx.Int("pid", pid), logx.String("pid_file", d.pidPath))
	return nil
}

// runDetached owns the pid file while entry runs.
func (d *Daemon) runDetached(ctx context.Context, entry Entry) error {
	pf, err := acquirePidFile(d.pidPath, d.s.alive)
	if err != nil {
		var le *Error
		if errors.As(err, &le) {
			return err
		}
		return &Error{Op: "start", PidFile: d.pidPath, Err: err}
	}
	defer func() {
		if err := pf.release(); err != nil {
			d.s.log.Warn("remove pid file failed", logx.String("pid_file", d.pidPath), logx.Err(err))
		}
	}()
	return entry(ctx)
}

func (d *Daemon) Stop(ctx context.Context) error {
	st, err := d.Status()
	if err != nil {
		return err
	}
	switch st.State {
	case StateAbsent:
		return &Error{Op: "stop", PidFile: d.pidPath, Err: ErrNotRunning}
	case StateStale:
		d.s.log.Warn("removing stale pid file", logx.String("pid_file", d.pidPath), logx.Int("pid", st.PID))
		_ = removeIfPID(d.pidPath, st.PID)
		return &Error{Op: "stop", PidFile: d.pidPath, PID: st.PID, Err: ErrNotRunning}
	}

	pid := st.PID
	if pid == os.Getpid() {
		return &Error{Op: "stop", PidFile: d.pidPath, PID: pid, Err: errors.New("refusing to signal the current process")}
	}
	if err := d.s.terminate(pid); err != nil && !errors.Is(err, syscall.ESRCH) {
		return &Error{Op: "stop", PidFile: d.pidPath, PID: pid, Err: err}
	}

	if err := d.waitExit(ctx, pid); err != nil {
		return &Error{Op: "stop", PidFile: d.pidPath, PID: pid, Err: err}
	}
	if err := removeIfPID(d.pidPath, pid); err != nil {
		return &Error{Op: "stop", PidFile: d.pidPath, PID: pid, Err: err}
	}
	d.s.log.Info("daemon stopped", logx.Int("pid", pid))
	return nil
}

// waitExit polls with exponential backoff until pid is gone or the stop
// timeout elapses.
func (d *Daemon) waitExit(ctx context.Context, pid int) error {
	ctx, cancel := context.WithTimeout(ctx, d.s.stopTimeout)
	defer cancel()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 20 * time.Millisecond
	eb.MaxInterval = 500 * time.Millisecond
	eb.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		if d.s.alive(pid) {
			return errStillAlive
		}
		return nil
	}, backoff.WithContext(eb, ctx))
	if err == nil {
		return nil
	}
	if errors.Is(err, errStillAlive) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrStopTimeout, d.s.stopTimeout)
	}
	return err
}

var errStillAlive = errors.New("process still alive")

// Restart in the detached copy only runs entry: the parent already stopped
// the previous daemon, and after a reload re-exec the pid file names this
// process, which Start adopts.
func (d *Daemon) Restart(ctx context.Context, entry Entry) error {
	if d.Detached() {
		return d.runDetached(ctx, entry)
	}
	if err := d.Stop(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}
	return d.Start(ctx, entry)
}

// spawnSelf re-executes the current binary in a new session with stdio on
// /dev/null and the detached marker set.
func spawnSelf() (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("resolve executable: %w", err)
	}
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, err
	}
	defer devnull.Close()

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), envDetached+"=1")
	cmd.Stdin, cmd.Stdout, cmd.Stderr = devnull, devnull, devnull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("launch daemon: %w", err)
	}
	pid := cmd.Process.Pid
	return pid, cmd.Process.Release()
}
