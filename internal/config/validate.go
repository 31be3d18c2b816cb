package config

import (
	"fmt"
	"strings"
)

// Validate checks cross-field constraints that decoding cannot express.
func (c *Config) Validate() error {
	switch c.WatchMode {
	case WatchModePoll, WatchModeNotify:
	default:
		return fmt.Errorf("watch_mode: unsupported %q (use %q or %q)", c.WatchMode, WatchModePoll, WatchModeNotify)
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "sqlite", "sqlite3", "none":
	default:
		return fmt.Errorf("storage.driver: unsupported %q", c.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if t := c.Notify.Telegram; t.Enabled {
		if strings.TrimSpace(t.Token) == "" {
			return fmt.Errorf("notify.telegram.token is required when enabled")
		}
		if t.ChatID == 0 {
			return fmt.Errorf("notify.telegram.chat_id is required when enabled")
		}
	}
	if c.Pprof.MutexProfileFraction < 0 || c.Pprof.BlockProfileRate < 0 {
		return fmt.Errorf("pprof: profile rates must be >= 0")
	}
	if p := strings.TrimSpace(c.Pprof.Prefix); p != "" && !strings.HasPrefix(p, "/") {
		return fmt.Errorf("pprof.prefix must start with /")
	}
	for name, p := range c.Plugins {
		if p.RatePerSec < 0 {
			return fmt.Errorf("plugins.%s.rate_per_sec must be >= 0", name)
		}
	}
	for name, s := range c.Streamers {
		if len(s.URL) == 0 {
			return fmt.Errorf("streamers.%s.url is required", name)
		}
		for i, u := range s.URL {
			if strings.TrimSpace(u) == "" {
				return fmt.Errorf("streamers.%s.url[%d] is empty", name, i)
			}
		}
	}
	return nil
}
