package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Chat      ChatConfig      `yaml:"chat"`
	Detection DetectionConfig `yaml:"detection"`
	Pricing   PricingConfig   `yaml:"pricing"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig holds http and storage settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	DBPath  string `yaml:"db_path"`
}

// SecurityConfig holds CORS and rate limit settings for the HTTP edge.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LedgerConfig holds balance defaults and the audit sink directory.
type LedgerConfig struct {
	// DefaultBalances seeds a currency -> starting balance map for
	// owners with no persisted balance. Reset() restores these values.
	DefaultBalances map[string]float64 `yaml:"default_balances"`
	AuditDir        string             `yaml:"audit_dir"`
}

// ChatConfig holds chat store behavior.
type ChatConfig struct {
	// AutosaveInterval is the periodic persistence safety net; zero
	// disables the timer (mutations still persist immediately).
	AutosaveInterval Duration `yaml:"autosave_interval"`
	WelcomeTitle     string   `yaml:"welcome_title"`
	WelcomeText      string   `yaml:"welcome_text"`
}

// DetectionConfig holds the external detection endpoint settings.
type DetectionConfig struct {
	URL     string   `yaml:"url"`
	Timeout Duration `yaml:"timeout"`
	// MaxImageSize caps the accepted inline image payload; accepts
	// humanized values like "5MB".
	MaxImageSize ByteSize `yaml:"max_image_size"`
}

// PricingConfig holds per-call message costs.
type PricingConfig struct {
	Currency string `yaml:"currency"`
	// Prompt is charged for text-only messages, Generation for messages
	// with an attached image; the two are mutually exclusive per call.
	Prompt     float64 `yaml:"prompt"`
	Generation float64 `yaml:"generation"`
}

// RetentionConfig holds configuration for the tombstone purge runner.
type RetentionConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	// Period is the minimum tombstone age before a soft-deleted thread
	// is purged, e.g. "720h".
	Period Duration `yaml:"period"`
	DryRun bool     `yaml:"dry_run"`
}

// Duration wraps time.Duration with yaml string parsing ("30s", "5m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// ByteSize wraps a byte count with humanized yaml parsing ("5MB").
type ByteSize uint64

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if strings.TrimSpace(s) == "" {
		*b = 0
		return nil
	}
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", s, err)
	}
	*b = ByteSize(v)
	return nil
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	host := c.Server.Address
	if host == "" {
		host = "127.0.0.1"
	}
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}
