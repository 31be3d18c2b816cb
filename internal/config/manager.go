package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	logx "streamrec/pkg/logx"
)

// ConfigManager owns the configuration file: it loads it once at startup and
// later answers whether the file on disk drifted from what was loaded.
type ConfigManager struct {
	path string

	mu  sync.RWMutex
	cfg *Config
	// lastHash tracks the last successfully committed config content so
	// editor saves without content changes do not count as drift.
	lastHash uint64

	log logx.Logger
}

func NewConfigManager(path string) *ConfigManager {
	if path == "" {
		path = DefaultPath
	}
	return &ConfigManager{path: path}
}

func (m *ConfigManager) SetLogger(log logx.Logger) { m.log = log }

// Path returns the file this manager reads.
func (m *ConfigManager) Path() string { return m.path }

// Parse reads and strictly decodes the config file without committing it.
func (m *ConfigManager) Parse() (*Config, error) {
	b, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}
	return decode(m.path, b)
}

func decode(path string, b []byte) (*Config, error) {
	jb, format, err := coerceToJSONBytes(path, b)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s config %q: %w", format, path, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config %q: trailing data", path)
		}
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

func (m *ConfigManager) Commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.mu.Unlock()
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}

func (m *ConfigManager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

// LoadOrCreate writes the default template when the file does not exist yet
// and then loads it. Used when the web service is requested so a fresh
// install can be configured from the UI.
func (m *ConfigManager) LoadOrCreate() (*Config, error) {
	if _, err := os.Stat(m.path); errors.Is(err, os.ErrNotExist) {
		if dir := filepath.Dir(m.path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create config dir: %w", err)
			}
		}
		if err := os.WriteFile(m.path, []byte(defaultYAML), 0o644); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		if !m.log.IsZero() {
			m.log.Info("default config created", logx.String("path", m.path))
		}
	}
	return m.Load()
}

func (m *ConfigManager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// Drifted re-reads the file and reports whether its effective content differs
// from the committed config, together with the changed top-level sections.
// A file that fails to parse is reported as an error, not as drift.
func (m *ConfigManager) Drifted() (bool, []string, error) {
	next, err := m.Parse()
	if err != nil {
		return false, nil, err
	}
	h := hashConfig(next)

	m.mu.RLock()
	prev := m.cfg
	unchanged := h != 0 && h == m.lastHash
	m.mu.RUnlock()
	if unchanged {
		return false, nil, nil
	}
	return true, ChangedSections(prev, next), nil
}
