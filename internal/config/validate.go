package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Validate checks values that cannot work. It does not mutate cfg.
func Validate(cfg *Config) error {
	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", cfg.Timeout)
	}
	// The allocation length field of RECEIVE DIAGNOSTIC RESULTS is 16 bits
	// and a page needs at least its 4-byte header.
	if cfg.MaxResponseLen < 4 || cfg.MaxResponseLen > 0xffff {
		return fmt.Errorf("max_response_len must be between 4 and 65535, got %d", cfg.MaxResponseLen)
	}
	if cfg.MaxElementHeaders < 1 {
		return fmt.Errorf("max_element_headers must be positive, got %d", cfg.MaxElementHeaders)
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}
	if cfg.Watch.Interval < 0 {
		return fmt.Errorf("watch.interval must not be negative, got %s", cfg.Watch.Interval)
	}
	if cfg.Watch.Page != 0x02 {
		return fmt.Errorf("watch.page 0x%x not supported, only 0x2 is tracked", cfg.Watch.Page)
	}
	if cfg.History.Enabled && cfg.History.Path == "" {
		return fmt.Errorf("history.enabled requires history.path")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return fmt.Errorf("metrics.enabled requires metrics.listen")
	}
	r := cfg.Notify.Redis
	if r.Enabled && (r.Addr == "" || r.Channel == "") {
		return fmt.Errorf("notify.redis.enabled requires addr and channel")
	}
	if r.DB < 0 {
		return fmt.Errorf("notify.redis.db must not be negative, got %d", r.DB)
	}
	return nil
}
