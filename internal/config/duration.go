package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration fields in the config file are plain strings in Go syntax ("90s",
// "5m"). An empty field means unset; callers pick the fallback.

func ParseDurationField(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: bad duration %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s: negative duration %q", key, raw)
	}
	return d, nil
}

// ParseDurationOrDefault substitutes def when the field is unset or zero.
// Timeout keys use it so a missing value never means "no timeout".
func ParseDurationOrDefault(key, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(key, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
