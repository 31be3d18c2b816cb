// Package app wires one process lifetime: storage, checker workers, event
// consumers, the optional web service and the reload watchdog.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"streamrec/internal/checker"
	"streamrec/internal/config"
	"streamrec/internal/eventbus"
	"streamrec/internal/metrics"
	"streamrec/internal/notifier"
	"streamrec/internal/observability/pprof"
	"streamrec/internal/reload"
	"streamrec/internal/runtime/supervisor"
	"streamrec/internal/service"
	"streamrec/internal/storage"
	"streamrec/internal/web"
	logx "streamrec/pkg/logx"
)

const (
	checkersStopMax  = 5 * time.Second
	consumersStopMax = 3 * time.Second
	storageStopMax   = 2 * time.Second

	eventBuffer = 256
)

type Options struct {
	// HTTP enables the web service on Host:Port.
	HTTP      bool
	Host      string
	Port      int
	StaticDir string
	Password  string
	Version   string

	Catalog checker.Catalog

	// WatchdogInterval overrides check_sourcecode when > 0.
	WatchdogInterval time.Duration
	// Exec replaces the process image after a reload; defaults to syscall.Exec.
	Exec func(argv0 string, argv, env []string) error
	// Args is the command line used for the re-exec; defaults to os.Args.
	Args []string
}

type App struct {
	opts Options
	cfgm *config.ConfigManager
	log  logx.Logger
}

func New(opts Options, cfgm *config.ConfigManager, log logx.Logger) *App {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.Exec == nil {
		opts.Exec = execSelf
	}
	if opts.Args == nil {
		opts.Args = os.Args
	}
	return &App{opts: opts, cfgm: cfgm, log: log}
}

// Run blocks until the context is cancelled or a reload was triggered. In the
// latter case the process image is replaced and Run only returns on failure.
func (a *App) Run(ctx context.Context) error {
	cfg := a.cfgm.Get()
	if cfg == nil {
		return errors.New("config not loaded")
	}
	log := a.log

	store, err := a.openStorage(cfg)
	if err != nil {
		return err
	}
	if err := removeTempDir(cfg.TempDir); err != nil {
		log.Warn("clear temp dir failed", logx.String("dir", cfg.TempDir), logx.Err(err))
	}
	closeStore := func(context.Context) error {
		if store == nil {
			return nil
		}
		return store.Close()
	}

	reg, err := checker.Build(cfg, a.opts.Catalog)
	if err != nil {
		_ = closeStore(ctx)
		return err
	}
	log.Info("checkers configured", logx.Strings("plugins", reg.Names()))

	m := metrics.New()
	bus := eventbus.New()
	sig := reload.NewSignal()

	// Consumers subscribe before any worker can publish and outlive the
	// process context so buffered events are drained on shutdown.
	consCtx, consCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer consCancel()
	consumers := supervisor.NewSupervisor(consCtx, supervisor.WithLogger(log.With(logx.String("comp", "consumers"))))
	var (
		unsubs  []func()
		history web.NotifyHistory
	)

	recEvents, unsub := bus.Subscribe(eventBuffer, eventbus.TypeStreamLive)
	unsubs = append(unsubs, unsub)
	rec := &recorder{store: store, metrics: m, log: log.With(logx.String("comp", "recorder"))}
	consumers.Go0("recorder", func(ctx context.Context) { rec.run(ctx, recEvents) })

	if tg := cfg.Notify.Telegram; tg.Enabled {
		sender, err := notifier.NewTelegram(tg.Token, tg.ChatID)
		if err != nil {
			for _, u := range unsubs {
				u()
			}
			_ = closeStore(ctx)
			return fmt.Errorf("telegram notifier: %w", err)
		}
		ncfg := notifier.DefaultConfig()
		ncfg.RatePerSec = float64(tg.RatePerSec)
		svc := notifier.New(ncfg, sender, store, log.With(logx.String("comp", "notifier")))
		history = svc
		notEvents, unsub := bus.Subscribe(eventBuffer, eventbus.TypeStreamLive)
		unsubs = append(unsubs, unsub)
		consumers.Go("notifier", func(ctx context.Context) error { return svc.Run(ctx, notEvents) })
	}

	checkers := checker.NewSupervisor(ctx, bus, sig,
		checker.WithLogger(log.With(logx.String("comp", "checker"))),
		checker.WithObserver(m),
	)
	if err := checkers.Start(reg); err != nil {
		for _, u := range unsubs {
			u()
		}
		_ = closeStore(ctx)
		return err
	}

	var tasks []service.Task
	callbacks := []reload.Callback{sig.Fire}
	if a.opts.HTTP {
		var events web.EventSource
		if store != nil {
			events = store
		}
		wopts := a.webOptions(cfg)
		if wopts.Profiling {
			pprof.ApplyRates(pprof.Rates{
				MutexProfileFraction: cfg.Pprof.MutexProfileFraction,
				BlockProfileRate:     cfg.Pprof.BlockProfileRate,
			})
		}
		srv := web.New(wopts, web.Deps{
			Checkers:      checkers,
			Events:        events,
			Bus:           bus,
			Notifications: history,
			Metrics:       m.Handler(),
			Version:       a.opts.Version,
		}, log.With(logx.String("comp", "web")))
		tasks = append(tasks, service.Task{Name: "web", Run: srv.Start})
		// The listener must be released before the signal lets workers go.
		callbacks = []reload.Callback{srv.Cleanup, sig.Fire}
	}

	sources, closeSources := a.watchSources(cfg)
	defer closeSources()
	interval := cfg.WatchdogInterval()
	if a.opts.WatchdogInterval > 0 {
		interval = a.opts.WatchdogInterval
	}
	wd := reload.NewWatchdog(sources, callbacks,
		reload.WithInterval(interval),
		reload.WithLogger(log.With(logx.String("comp", "watchdog"))),
		reload.WithObserver(m.WatchObserved),
	)
	tasks = append(tasks, service.Task{Name: "watchdog", Run: wd.Run})

	for _, r := range service.NewRunner(log, tasks...).OnExit(m.TaskExited).Run(ctx) {
		if r.Err != nil {
			log.Warn("service ended with error", logx.String("task", r.Name), logx.Err(r.Err))
		}
	}

	// Make sure workers leave even when no reload happened.
	sig.Set()
	stopCtx := context.WithoutCancel(ctx)
	step(stopCtx, log, "checkers", checkersStopMax, func(ctx context.Context) error {
		if err := checkers.Wait(ctx); err != nil {
			return checkers.Stop(ctx)
		}
		return nil
	})
	// Subscriptions close only after the checkers step; a worker that
	// outlived it publishes to nobody.
	step(stopCtx, log, "consumers", consumersStopMax, func(ctx context.Context) error {
		for _, u := range unsubs {
			u()
		}
		if err := consumers.Wait(ctx); err != nil {
			consCancel()
			return err
		}
		return nil
	})
	step(stopCtx, log, "storage", storageStopMax, closeStore)

	if !wd.Triggered() || ctx.Err() != nil {
		log.Info("stopped")
		return nil
	}
	return a.reexec()
}

func (a *App) webOptions(cfg *config.Config) web.Options {
	return web.Options{
		Host:            a.opts.Host,
		Port:            a.opts.Port,
		StaticDir:       a.opts.StaticDir,
		Password:        a.opts.Password,
		Profiling:       cfg.Pprof.Enabled,
		ProfilingPrefix: cfg.Pprof.Prefix,
	}
}

func (a *App) openStorage(cfg *config.Config) (storage.Store, error) {
	sc, enabled, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	if !enabled {
		a.log.Info("storage disabled")
		return nil, nil
	}
	store, err := storage.Open(sc, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return store, nil
}

// watchSources picks the artifacts the watchdog inspects: the running
// executable and the config file.
func (a *App) watchSources(cfg *config.Config) ([]reload.Source, func()) {
	var sources []reload.Source
	closeFn := func() {}

	exe, err := os.Executable()
	if err != nil {
		a.log.Warn("executable not resolvable, only config is watched", logx.Err(err))
	}
	if exe != "" {
		switch cfg.WatchMode {
		case config.WatchModeNotify:
			ns, err := reload.NewNotifySource(exe)
			if err != nil {
				a.log.Warn("fsnotify unavailable, falling back to polling", logx.Err(err))
				break
			}
			sources = append(sources, ns)
			closeFn = func() { _ = ns.Close() }
		}
		if len(sources) == 0 {
			ss, err := reload.NewStatSource(exe)
			if err != nil {
				a.log.Warn("stat executable failed", logx.String("path", exe), logx.Err(err))
			} else {
				sources = append(sources, ss)
			}
		}
	}
	sources = append(sources, reload.NewConfigSource(a.cfgm))
	return sources, closeFn
}

func (a *App) reexec() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	a.log.Info("restarting", logx.String("exe", exe))
	if err := a.opts.Exec(exe, a.opts.Args, os.Environ()); err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	return nil
}
