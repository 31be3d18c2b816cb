package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDurationField reads an optional duration setting. Go duration strings
// ("1500ms", "2m") and bare integers (seconds, like check_sourcecode) are
// accepted; empty means zero. key names the setting in errors.
func ParseDurationField(key, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	var d time.Duration
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		d = time.Duration(n) * time.Second
	} else if d, err = time.ParseDuration(s); err != nil {
		return 0, fmt.Errorf("%s: %q is neither seconds nor a duration", key, raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", key, raw)
	}
	return d, nil
}

// ParseDurationOrDefault falls back to def when the setting is unset or zero.
func ParseDurationOrDefault(key, raw string, def time.Duration) (time.Duration, error) {
	switch d, err := ParseDurationField(key, raw); {
	case err != nil:
		return 0, err
	case d == 0:
		return def, nil
	default:
		return d, nil
	}
}
