//go:build !unix

package app

import (
	"os"
	"os/exec"
)

// execSelf starts a fresh copy and lets the caller exit.
func execSelf(argv0 string, argv, env []string) error {
	cmd := exec.Command(argv0, argv[1:]...)
	cmd.Env = env
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
