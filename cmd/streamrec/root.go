package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"streamrec/internal/app"
	"streamrec/internal/config"
	"streamrec/internal/lifecycle"
	logx "streamrec/pkg/logx"
)

const defaultPort = 19159

type rootFlags struct {
	host      string
	port      int
	http      bool
	staticDir string
	password  string
	verbose   bool
	config    string
}

// cliContext carries what every subcommand needs once flags are parsed.
type cliContext struct {
	flags rootFlags

	cfgm *config.ConfigManager
	logs *logx.Service
	log  logx.Logger
	lc   lifecycle.Lifecycle
}

func newRootCommand() *cobra.Command {
	c := &cliContext{}

	root := &cobra.Command{
		Use:           "streamrec",
		Short:         "Watch live streams and hand them to the recorder",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return c.setup()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer c.close()
			return c.entry()(cmd.Context())
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&c.flags.host, "host", "H", "0.0.0.0", "Web service bind host")
	f.IntVarP(&c.flags.port, "port", "P", defaultPort, "Web service port")
	f.BoolVar(&c.flags.http, "http", false, "Enable the web service")
	f.StringVar(&c.flags.staticDir, "static-dir", "", "Serve this directory at /")
	f.StringVar(&c.flags.password, "password", "", "Protect the web service with basic auth (user streamrec)")
	f.BoolVarP(&c.flags.verbose, "verbose", "v", false, "Debug logging")
	f.StringVar(&c.flags.config, "config", config.DefaultPath, "Configuration file")

	root.AddCommand(newDaemonCommands(c)...)
	root.AddCommand(newVersionCommand())
	return root
}

func (c *cliContext) setup() error {
	c.cfgm = config.NewConfigManager(c.flags.config)
	c.cfgm.SetLogger(logx.NewConsole("info"))

	var (
		cfg *config.Config
		err error
	)
	if c.flags.http {
		cfg, err = c.cfgm.LoadOrCreate()
	} else {
		cfg, err = c.cfgm.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	detached := lifecycle.New(cfg.PidFile).Detached()
	c.logs, c.log = logx.New(c.logConfig(cfg, detached))
	c.cfgm.SetLogger(c.log.With(logx.String("comp", "config")))
	c.lc = lifecycle.New(cfg.PidFile, lifecycle.WithLogger(c.log.With(logx.String("comp", "lifecycle"))))
	return nil
}

func (c *cliContext) logConfig(cfg *config.Config, detached bool) logx.Config {
	lc := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		JSON:    cfg.Logging.JSON,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	}
	if c.flags.verbose {
		lc.Level = "debug"
	}
	// A detached daemon has no terminal; keep its output somewhere.
	if detached {
		lc.File.Enabled = true
	}
	return lc
}

func (c *cliContext) close() {
	if c.logs != nil {
		_ = c.logs.Close()
	}
}

func (c *cliContext) entry() lifecycle.Entry {
	return app.New(app.Options{
		HTTP:      c.flags.http,
		Host:      c.flags.host,
		Port:      c.flags.port,
		StaticDir: c.flags.staticDir,
		Password:  c.flags.password,
		Version:   version,
		Catalog:   catalog(),
	}, c.cfgm, c.log).Run
}
