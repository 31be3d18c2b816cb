package reload

import (
	"context"
	"sync/atomic"
	"time"

	logx "streamrec/pkg/logx"
)

const DefaultInterval = 15 * time.Second

// Callback runs once when a change is detected. A callback error is logged
// and does not stop the callbacks after it.
type Callback func(ctx context.Context) error

// Observer is told about every source inspection.
type Observer func(source string, changed bool, err error)

type Watchdog struct {
	sources   []Source
	callbacks []Callback
	interval  time.Duration
	log       logx.Logger
	observe   Observer

	triggered atomic.Bool
}

type Option func(*Watchdog)

func WithInterval(d time.Duration) Option {
	return func(w *Watchdog) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithLogger(log logx.Logger) Option { return func(w *Watchdog) { w.log = log } }

func WithObserver(o Observer) Option { return func(w *Watchdog) { w.observe = o } }

func NewWatchdog(sources []Source, callbacks []Callback, opts ...Option) *Watchdog {
	w := &Watchdog{
		sources:   sources,
		callbacks: callbacks,
		interval:  DefaultInterval,
		log:       logx.Nop(),
	}
	for _, o := range opts {
		o(w)
	}
	if w.log.IsZero() {
		w.log = logx.Nop()
	}
	return w
}

// Triggered reports whether Run detected a change and started the callbacks.
func (w *Watchdog) Triggered() bool { return w.triggered.Load() }

// Run sleeps one interval, inspects every source and repeats until a change
// is seen. On change it runs the callbacks once, in order, and returns.
// Cancellation returns nil; callbacks not yet started are skipped.
func (w *Watchdog) Run(ctx context.Context) error {
	w.log.Info("watchdog started", logx.Duration("interval", w.interval), logx.Int("sources", len(w.sources)))
	t := time.NewTimer(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("watchdog cancelled")
			return nil
		case <-t.C:
		}

		if src := w.poll(); src != nil {
			w.triggered.Store(true)
			fields := []logx.Field{logx.String("source", src.Name())}
			if sc, ok := src.(sectioned); ok {
				fields = append(fields, logx.Strings("sections", sc.Sections()))
			}
			w.log.Info("change detected, reloading", fields...)
			w.fire(ctx)
			return nil
		}
		t.Reset(w.interval)
	}
}

// sectioned sources can say which config sections a change touched.
type sectioned interface {
	Sections() []string
}

// poll returns the first changed source. Every source is inspected each
// round so baselines stay current.
func (w *Watchdog) poll() Source {
	var first Source
	for _, s := range w.sources {
		changed, err := s.Changed()
		if w.observe != nil {
			w.observe(s.Name(), changed, err)
		}
		if err != nil {
			werr := &WatchError{Source: s.Name(), Err: err}
			w.log.Warn("watch failed", logx.Err(werr))
			continue
		}
		if changed && first == nil {
			first = s
		}
	}
	return first
}

func (w *Watchdog) fire(ctx context.Context) {
	for i, cb := range w.callbacks {
		if ctx.Err() != nil {
			w.log.Warn("reload callbacks skipped", logx.Int("remaining", len(w.callbacks)-i))
			return
		}
		if err := cb(ctx); err != nil {
			w.log.Error("reload callback failed", logx.Int("index", i), logx.Err(err))
		}
	}
}
