package checker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"streamrec/internal/eventbus"
	"streamrec/internal/reload"
	logx "streamrec/pkg/logx"
)

// worker polls every target of one Entry until the reload signal is set.
type worker struct {
	entry Entry
	bus   eventbus.Bus
	sig   *reload.Signal
	log   logx.Logger
	obs   Observer

	mu   sync.Mutex
	live map[Target]bool
}

func newWorker(e Entry, bus eventbus.Bus, sig *reload.Signal, log logx.Logger, obs Observer) *worker {
	return &worker{
		entry: e,
		bus:   bus,
		sig:   sig,
		log:   log.With(logx.String("plugin", e.Plugin)),
		obs:   obs,
		live:  map[Target]bool{},
	}
}

func (w *worker) run(ctx context.Context) error {
	// The reload signal also cancels rate-limit waits and in-flight checks.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.sig.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	w.log.Debug("checker started", logx.Int("targets", len(w.entry.Targets)), logx.String("schedule", w.entry.ScheduleSpec))
	for {
		if w.stopped(ctx) {
			return nil
		}
		if err := w.round(ctx); err != nil {
			return err
		}

		wait := time.Until(w.entry.Schedule.Next(time.Now()))
		if wait < 0 {
			wait = 0
		}
		t := time.NewTimer(wait)
		select {
		case <-w.sig.Done():
			t.Stop()
			w.log.Debug("checker stopping on reload signal")
			return nil
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (w *worker) stopped(ctx context.Context) bool {
	return w.sig.IsSet() || ctx.Err() != nil
}

func (w *worker) round(ctx context.Context) error {
	for _, t := range w.entry.Targets {
		if w.stopped(ctx) {
			return nil
		}
		if w.entry.Limiter != nil {
			if err := w.entry.Limiter.Wait(ctx); err != nil {
				// only fails on cancellation or a wait beyond the deadline
				return nil
			}
		}

		start := time.Now()
		live, err := w.check(ctx, t)
		w.obs.CheckDone(w.entry.Plugin, live, err, time.Since(start))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrTransient) {
				w.log.Warn("check failed, retrying next round", logx.String("target", t.Name), logx.String("url", t.URL), logx.Err(err))
				continue
			}
			return &WorkerError{Plugin: w.entry.Plugin, Target: t, Err: err}
		}

		if w.transition(t, live) {
			w.log.Info("stream live", logx.String("target", t.Name), logx.String("url", t.URL))
			w.bus.Publish(eventbus.Event{
				Type: eventbus.TypeStreamLive,
				Data: LiveEvent{Plugin: w.entry.Plugin, Target: t, At: time.Now()},
			})
		}
	}
	return nil
}

// transition records the verdict and reports a not-live to live edge.
func (w *worker) transition(t Target, live bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	prev := w.live[t]
	w.live[t] = live
	return live && !prev
}

func (w *worker) check(ctx context.Context, t Target) (live bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("checker panicked: %v", r)
		}
	}()
	return w.entry.Checker.Check(ctx, t)
}

func (w *worker) liveTargets() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := []string{}
	for t, live := range w.live {
		if live {
			out = append(out, t.Name)
		}
	}
	sort.Strings(out)
	return out
}
