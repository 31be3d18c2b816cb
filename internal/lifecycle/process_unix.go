//go:build unix

package lifecycle

import (
	"errors"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"
)

// processAlive asks gopsutil first and falls back to signal 0, where EPERM
// still means the process exists under another user.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	if ok, err := process.PidExists(int32(pid)); err == nil {
		return ok
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func terminate(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}
