package checker

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"streamrec/internal/config"
)

// Factory builds a plugin's Checker from its raw `plugins.<name>.config` section.
type Factory func(raw json.RawMessage) (Checker, error)

// Plugin describes a site checker the binary knows about.
type Plugin struct {
	Name  string
	Match *regexp.Regexp
	New   Factory
}

// Catalog is the ordered list of known plugins. When several plugins match
// a URL the first enabled one wins, so specific plugins go before generic ones.
type Catalog []Plugin

func (c Catalog) lookup(name string) (Plugin, bool) {
	for _, p := range c {
		if p.Name == name {
			return p, true
		}
	}
	return Plugin{}, false
}

// Entry is one plugin with work to do. It owns exactly one worker.
type Entry struct {
	Plugin       string
	Checker      Checker
	Targets      []Target
	Schedule     Schedule
	ScheduleSpec string
	// Limiter paces target checks inside one round; nil means unlimited.
	Limiter *rate.Limiter
}

// Registry is immutable once built and shared read-only.
type Registry struct {
	entries []Entry
}

// NewRegistry orders entries by plugin name.
func NewRegistry(entries ...Entry) *Registry {
	es := append([]Entry(nil), entries...)
	sort.Slice(es, func(i, j int) bool { return es[i].Plugin < es[j].Plugin })
	return &Registry{entries: es}
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Entries returns a copy of the entries in plugin-name order.
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	return append([]Entry(nil), r.entries...)
}

func (r *Registry) Names() []string {
	out := make([]string, 0, r.Len())
	for _, e := range r.Entries() {
		out = append(out, e.Plugin)
	}
	return out
}

// Build resolves every configured streamer URL to a plugin and constructs
// one Entry per plugin that received at least one target.
func Build(cfg *config.Config, catalog Catalog) (*Registry, error) {
	for name := range cfg.Plugins {
		if _, ok := catalog.lookup(name); !ok {
			return nil, &ConfigError{Plugin: name, Err: ErrUnknownPlugin}
		}
	}

	enabled := func(p Plugin) bool {
		raw, ok := cfg.Plugins[p.Name]
		return !ok || raw.IsEnabled()
	}

	names := make([]string, 0, len(cfg.Streamers))
	for n := range cfg.Streamers {
		names = append(names, n)
	}
	sort.Strings(names)

	targets := map[string][]Target{}
	for _, n := range names {
		for _, u := range cfg.Streamers[n].URL {
			u = strings.TrimSpace(u)
			owner := ""
			for _, p := range catalog {
				if p.Match != nil && p.Match.MatchString(u) && enabled(p) {
					owner = p.Name
					break
				}
			}
			if owner == "" {
				return nil, &ConfigError{Streamer: n, URL: u, Err: ErrNoPlugin}
			}
			targets[owner] = append(targets[owner], Target{Name: n, URL: u})
		}
	}

	def := cfg.CheckInterval()
	entries := make([]Entry, 0, len(targets))
	for _, p := range catalog {
		ts := targets[p.Name]
		if len(ts) == 0 {
			continue
		}
		raw := cfg.Plugins[p.Name]
		chk, err := p.New(raw.Config)
		if err != nil {
			return nil, &ConfigError{Plugin: p.Name, Err: err}
		}
		sch, err := ParseSchedule(raw.Schedule, def)
		if err != nil {
			return nil, &ConfigError{Plugin: p.Name, Err: err}
		}
		spec := raw.Schedule
		if spec == "" {
			spec = "@every " + def.String()
		}
		e := Entry{Plugin: p.Name, Checker: chk, Targets: ts, Schedule: sch, ScheduleSpec: spec}
		if raw.RatePerSec > 0 {
			e.Limiter = rate.NewLimiter(rate.Limit(raw.RatePerSec), 1)
		}
		entries = append(entries, e)
	}
	return NewRegistry(entries...), nil
}

// FixedInterval is a Schedule without cron's one-second floor.
type FixedInterval time.Duration

func (d FixedInterval) Next(t time.Time) time.Time { return t.Add(time.Duration(d)) }
