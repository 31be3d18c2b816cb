package config

import (
	"strings"
	"time"
)

const (
	DefaultPath              = "./config.yaml"
	DefaultPidFile           = "watch_process.pid"
	DefaultTempDir           = "./cache/temp"
	DefaultCheckSourcecode   = 15
	DefaultEventLoopInterval = 30
	DefaultStoragePath       = "./data/data.sqlite3"
	DefaultPprofPrefix       = "/debug/pprof/"

	WatchModePoll   = "poll"
	WatchModeNotify = "notify"
)

// defaultYAML is written by LoadOrCreate on first start.
const defaultYAML = `# streamrec configuration
check_sourcecode: 15
event_loop_interval: 30
watch_mode: poll
pid_file: watch_process.pid
temp_dir: ./cache/temp

logging:
  level: info
  file:
    enabled: false
    path: ./logs/streamrec.log

storage:
  driver: sqlite
  path: ./data/data.sqlite3
  busy_timeout: 5s

notify:
  telegram:
    enabled: false

pprof:
  enabled: false

plugins: {}
streamers: {}
`

// Default returns a config with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.CheckSourcecode <= 0 {
		c.CheckSourcecode = DefaultCheckSourcecode
	}
	if c.EventLoopInterval <= 0 {
		c.EventLoopInterval = DefaultEventLoopInterval
	}
	c.WatchMode = strings.ToLower(strings.TrimSpace(c.WatchMode))
	if c.WatchMode == "" {
		c.WatchMode = WatchModePoll
	}
	if strings.TrimSpace(c.PidFile) == "" {
		c.PidFile = DefaultPidFile
	}
	if strings.TrimSpace(c.TempDir) == "" {
		c.TempDir = DefaultTempDir
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if strings.TrimSpace(c.Storage.Driver) == "" {
		c.Storage.Driver = "sqlite"
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		c.Storage.Path = DefaultStoragePath
	}
	if strings.TrimSpace(c.Pprof.Prefix) == "" {
		c.Pprof.Prefix = DefaultPprofPrefix
	}
	if c.Notify.Telegram.RatePerSec <= 0 {
		c.Notify.Telegram.RatePerSec = 1
	}
}

// WatchdogInterval is check_sourcecode as a duration.
func (c *Config) WatchdogInterval() time.Duration {
	return time.Duration(c.CheckSourcecode) * time.Second
}

// CheckInterval is event_loop_interval as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.EventLoopInterval) * time.Second
}
