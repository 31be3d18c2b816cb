package config

import (
	"reflect"
)

// ChangedSections returns the top-level config sections that differ between
// oldCfg and newCfg. Values are never returned, so secrets stay out of logs.
func ChangedSections(oldCfg, newCfg *Config) []string {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	if oldCfg.CheckSourcecode != newCfg.CheckSourcecode || oldCfg.WatchMode != newCfg.WatchMode {
		changed = append(changed, "watchdog")
	}
	if oldCfg.EventLoopInterval != newCfg.EventLoopInterval {
		changed = append(changed, "event_loop_interval")
	}
	if oldCfg.PidFile != newCfg.PidFile || oldCfg.TempDir != newCfg.TempDir {
		changed = append(changed, "paths")
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
	}
	if !reflect.DeepEqual(oldCfg.Notify, newCfg.Notify) {
		changed = append(changed, "notify")
	}
	if oldCfg.Pprof != newCfg.Pprof {
		changed = append(changed, "pprof")
	}
	if !reflect.DeepEqual(oldCfg.Plugins, newCfg.Plugins) {
		changed = append(changed, "plugins")
	}
	if !reflect.DeepEqual(oldCfg.Streamers, newCfg.Streamers) {
		changed = append(changed, "streamers")
	}
	return changed
}
