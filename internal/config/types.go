package config

import (
	"bytes"
	"encoding/json"
)

type Config struct {
	// CheckSourcecode is the watchdog interval in seconds (default 15).
	CheckSourcecode int `json:"check_sourcecode,omitempty"`
	// EventLoopInterval is the default checker cadence in seconds (default 30).
	EventLoopInterval int `json:"event_loop_interval,omitempty"`
	// WatchMode selects how the watchdog inspects artifacts: "poll" (stat) or "notify" (fsnotify).
	WatchMode string `json:"watch_mode,omitempty"`

	PidFile string `json:"pid_file,omitempty"`
	TempDir string `json:"temp_dir,omitempty"`

	Logging LoggingConfig `json:"logging"`
	Storage StorageConfig `json:"storage"`
	Notify  NotifyConfig  `json:"notify"`
	Pprof   PprofConfig   `json:"pprof"`

	Plugins   map[string]PluginConfigRaw `json:"plugins,omitempty"`
	Streamers map[string]StreamerConfig  `json:"streamers,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level,omitempty"`
	Console bool        `json:"console,omitempty"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	storage: { driver: sqlite, path: ./data/data.sqlite3, busy_timeout: 5s }
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// PprofConfig mounts the runtime profiler on the web service (only with
// --http, behind the same password).
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Prefix  string `json:"prefix,omitempty"`
	// MutexProfileFraction and BlockProfileRate are passed to the runtime
	// when > 0.
	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty"`
	BlockProfileRate     int `json:"block_profile_rate,omitempty"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

// TelegramConfig enables "stream is live" messages.
// The token is never logged.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
	// RatePerSec bounds outgoing messages (default 1).
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// StreamerConfig is one monitored streamer; every URL is resolved to a checker plugin.
type StreamerConfig struct {
	URL []string `json:"url"`
}

type PluginConfigRaw struct {
	// Enabled defaults to true when omitted.
	Enabled *bool `json:"enabled,omitempty"`
	// Schedule overrides event_loop_interval for this plugin.
	// Accepts cron ("*/1 * * * *", "@every 20s"), Go durations ("45s") or HH:MM.
	Schedule string `json:"schedule,omitempty"`
	// RatePerSec paces consecutive target checks within one round (0 = unlimited).
	RatePerSec float64         `json:"rate_per_sec,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON disallows unknown fields so typos in plugin sections fail at load time.
func (p *PluginConfigRaw) UnmarshalJSON(b []byte) error {
	type tmp struct {
		Enabled    *bool           `json:"enabled,omitempty"`
		Schedule   string          `json:"schedule,omitempty"`
		RatePerSec float64         `json:"rate_per_sec,omitempty"`
		Config     json.RawMessage `json:"config,omitempty"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var t tmp
	if err := dec.Decode(&t); err != nil {
		return err
	}
	*p = PluginConfigRaw{Enabled: t.Enabled, Schedule: t.Schedule, RatePerSec: t.RatePerSec, Config: t.Config}
	return nil
}

// IsEnabled reports the effective enable flag.
func (p PluginConfigRaw) IsEnabled() bool { return p.Enabled == nil || *p.Enabled }

// UnmarshalJSON accepts both `url: "..."` and `url: ["...", "..."]`.
func (s *StreamerConfig) UnmarshalJSON(b []byte) error {
	var raw struct {
		URL json.RawMessage `json:"url"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if len(raw.URL) == 0 {
		*s = StreamerConfig{}
		return nil
	}
	var one string
	if err := json.Unmarshal(raw.URL, &one); err == nil {
		*s = StreamerConfig{URL: []string{one}}
		return nil
	}
	var many []string
	if err := json.Unmarshal(raw.URL, &many); err != nil {
		return err
	}
	*s = StreamerConfig{URL: many}
	return nil
}
