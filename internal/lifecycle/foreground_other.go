//go:build !unix

package lifecycle

import "context"

// Foreground runs the entry in the calling process. There is no pid file and
// no way to stop another instance.
type Foreground struct {
	s settings
}

func New(_ string, opts ...Option) Lifecycle {
	return &Foreground{s: newSettings(opts)}
}

func (f *Foreground) Start(ctx context.Context, entry Entry) error {
	f.s.log.Warn("daemon mode not supported on this platform, running in foreground")
	return entry(ctx)
}

func (f *Foreground) Stop(context.Context) error {
	return &Error{Op: "stop", Err: ErrUnsupported}
}

func (f *Foreground) Restart(ctx context.Context, entry Entry) error {
	return f.Start(ctx, entry)
}

func (f *Foreground) Status() (Status, error) {
	return Status{State: StateAbsent}, nil
}

func (f *Foreground) Detached() bool { return false }
