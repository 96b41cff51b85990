package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Device is the sg node of the enclosure, e.g. /dev/sg3.
	Device            string        `yaml:"device,omitempty"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxResponseLen    int           `yaml:"max_response_len"`
	MaxElementHeaders int           `yaml:"max_element_headers"`
	Log               Log           `yaml:"log"`
	History           History       `yaml:"history"`
	Watch             Watch         `yaml:"watch"`
	Metrics           Metrics       `yaml:"metrics"`
	Notify            Notify        `yaml:"notify"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type History struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Watch struct {
	Interval time.Duration `yaml:"interval"`
	// Page is the page polled by watch; only the Enclosure Status page is
	// tracked for transitions.
	Page uint8 `yaml:"page"`
}

type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type Notify struct {
	Redis Redis `yaml:"redis"`
}

type Redis struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// Default returns the baseline settings applied under a loaded file.
func Default() *Config {
	return &Config{
		Timeout:           60 * time.Second,
		MaxResponseLen:    4096,
		MaxElementHeaders: 512,
		Log: Log{
			Level:  "warn",
			Format: "text",
		},
		History: History{
			Path: "/var/lib/sesdiag/history.db",
		},
		Watch: Watch{
			Interval: 30 * time.Second,
			Page:     0x02,
		},
		Metrics: Metrics{
			Listen: ":9464",
		},
		Notify: Notify{Redis: Redis{
			Addr:    "localhost:6379",
			Channel: "sesdiag:changes",
		}},
	}
}

// Candidates lists the files tried when no path is given.
func Candidates() []string {
	return []string{
		"/etc/sesdiag/config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/sesdiag/config.yaml"),
		"config.yaml",
	}
}

// Load reads the config at path, or the first existing candidate when path
// is empty. No file at all yields the defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		for _, c := range Candidates() {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case explicit:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero values from Default.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Timeout == 0 {
		c.Timeout = d.Timeout
	}
	if c.MaxResponseLen == 0 {
		c.MaxResponseLen = d.MaxResponseLen
	}
	if c.MaxElementHeaders == 0 {
		c.MaxElementHeaders = d.MaxElementHeaders
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.History.Path == "" {
		c.History.Path = d.History.Path
	}
	if c.Watch.Interval == 0 {
		c.Watch.Interval = d.Watch.Interval
	}
	if c.Watch.Page == 0 {
		c.Watch.Page = d.Watch.Page
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = d.Metrics.Listen
	}
	if c.Notify.Redis.Addr == "" {
		c.Notify.Redis.Addr = d.Notify.Redis.Addr
	}
	if c.Notify.Redis.Channel == "" {
		c.Notify.Redis.Channel = d.Notify.Redis.Channel
	}
}
