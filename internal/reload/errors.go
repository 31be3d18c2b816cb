package reload

import "fmt"

// WatchError is a transient failure while inspecting a Source. The watchdog
// logs it and tries again on the next interval.
type WatchError struct {
	Source string
	Err    error
}

func (e *WatchError) Error() string {
	return fmt.Sprintf("watch %s: %v", e.Source, e.Err)
}

func (e *WatchError) Unwrap() error { return e.Err }
