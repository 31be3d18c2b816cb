// Package service runs the long-lived service tasks of one process
// lifetime (web listener, reload watchdog) side by side.
package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "streamrec/pkg/logx"
)

// Task is one service. Run should return when ctx is done.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Result is how a task ended. Err is nil for a clean exit.
type Result struct {
	Name string
	Err  error
	Took time.Duration
}

// Runner fans in a fixed set of tasks. A failing or panicking task is logged
// and recorded; it never cancels its siblings.
type Runner struct {
	log    logx.Logger
	tasks  []Task
	onExit func(name string, err error)
	notify func(state string) (bool, error)
}

func NewRunner(log logx.Logger, tasks ...Task) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{
		log:   log,
		tasks: tasks,
		notify: func(state string) (bool, error) {
			return daemon.SdNotify(false, state)
		},
	}
}

// OnExit registers a hook called as each task returns.
func (r *Runner) OnExit(fn func(name string, err error)) *Runner {
	r.onExit = fn
	return r
}

// Run starts every task and blocks until all of them have returned. Results
// keep task order.
func (r *Runner) Run(ctx context.Context) []Result {
	results := make([]Result, len(r.tasks))
	var wg sync.WaitGroup
	for i, t := range r.tasks {
		wg.Add(1)
		go func(i int, t Task) {
			defer wg.Done()
			start := time.Now()
			err := r.runOne(ctx, t)
			results[i] = Result{Name: t.Name, Err: err, Took: time.Since(start)}
			if err != nil {
				r.log.Error("service task failed", logx.String("task", t.Name), logx.Err(err))
			} else {
				r.log.Debug("service task finished", logx.String("task", t.Name))
			}
			if r.onExit != nil {
				r.onExit(t.Name, err)
			}
		}(i, t)
	}
	r.sdNotify(daemon.SdNotifyReady)

	wg.Wait()
	r.sdNotify(daemon.SdNotifyStopping)
	return results
}

func (r *Runner) runOne(ctx context.Context, t Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("service task panicked", logx.String("task", t.Name), logx.Stack(string(debug.Stack())))
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	if t.Run == nil {
		return nil
	}
	return t.Run(ctx)
}

func (r *Runner) sdNotify(state string) {
	if r.notify == nil {
		return
	}
	if _, err := r.notify(state); err != nil {
		r.log.Debug("sd_notify failed", logx.String("state", state), logx.Err(err))
	}
}
