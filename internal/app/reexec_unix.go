//go:build unix

package app

import "syscall"

// execSelf replaces the process image; the pid stays the same.
func execSelf(argv0 string, argv, env []string) error {
	return syscall.Exec(argv0, argv, env)
}
