package checker

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownPlugin = errors.New("unknown plugin")
	ErrNoPlugin      = errors.New("no enabled plugin matches url")
	ErrBadSchedule   = errors.New("invalid schedule")
	ErrAlreadyActive = errors.New("checker supervisor already started")
)

// ConfigError is a fatal registry build failure. Build never returns a
// partial registry together with it.
type ConfigError struct {
	Plugin   string
	Streamer string
	URL      string
	Err      error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Streamer != "":
		return fmt.Sprintf("streamer %q url %q: %v", e.Streamer, e.URL, e.Err)
	default:
		return fmt.Sprintf("plugin %q: %v", e.Plugin, e.Err)
	}
}

func (e *ConfigError) Unwrap() error { return e.Err }

// WorkerError ends a single checker worker. Other workers keep running.
type WorkerError struct {
	Plugin string
	Target Target
	Err    error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("checker %s: target %s (%s): %v", e.Plugin, e.Target.Name, e.Target.URL, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }
