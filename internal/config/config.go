// Package config loads the immutable application configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"

	"cloudmon/internal/model"
)

// Telegram holds the MTProto client settings.
type Telegram struct {
	APIID       int    `mapstructure:"api_id"`
	APIHash     string `mapstructure:"api_hash"`
	SessionFile string `mapstructure:"session_file"`
}

// Sink holds the downstream indexing API settings.
type Sink struct {
	URL string `mapstructure:"url"`
	Key string `mapstructure:"key"`
}

// Drives holds the per-provider extraction switches.
type Drives struct {
	Tianyi bool `mapstructure:"tianyi"`
	UC     bool `mapstructure:"uc"`
	Pan123 bool `mapstructure:"pan123"`
	Pan115 bool `mapstructure:"pan115"`
}

// Proxy holds the optional SOCKS proxy for the Telegram transport.
type Proxy struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// Monitoring holds the scan-loop tuning knobs.
type Monitoring struct {
	DataDir               string   `mapstructure:"data_dir"`
	Loop                  bool     `mapstructure:"loop"`
	IntervalHours         int      `mapstructure:"interval_hours"`
	MaxConcurrentRequests int64    `mapstructure:"max_concurrent_requests"`
	MonitorLimit          int      `mapstructure:"monitor_limit"`
	MonitorDays           int      `mapstructure:"monitor_days"`
	SmartStopCount        int      `mapstructure:"smart_stop_count"`
	RetentionDays         int      `mapstructure:"retention_days"`
	Channels              []string `mapstructure:"channels"`
}

// Config is the application configuration, built once at startup and
// read-only afterwards.
type Config struct {
	Telegram        Telegram     `mapstructure:"telegram"`
	Sink            Sink         `mapstructure:"sink"`
	Drives          Drives       `mapstructure:"drives"`
	Proxy           Proxy        `mapstructure:"proxy"`
	Monitoring      Monitoring   `mapstructure:"monitoring"`
	ExcludeKeywords []string     `mapstructure:"exclude_keywords"`
	Rules           []model.Rule `mapstructure:"rules"`
	LogLevel        string       `mapstructure:"log_level"`
}

// defaultExcludes is the global pre-filter applied when the config file
// provides none.
var defaultExcludes = []string{"小程序", "预告", "书籍", "电子书", "课程", "教程", "写真", "MP3", "音乐"}

// Load reads configuration from the JSON file at path, layered over built-in
// defaults, with environment variables (CLOUDMON_ prefix, dots replaced by
// underscores) overriding both. A missing file is not an error; missing
// required values are.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("cloudmon")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only surfaces keys viper already knows about. The secrets
	// have no defaults, so bind them explicitly for env-only setups.
	v.MustBindEnv("telegram.api_id")
	v.MustBindEnv("telegram.api_hash")
	v.MustBindEnv("sink.url")
	v.MustBindEnv("sink.key")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.ExcludeKeywords) == 0 {
		cfg.ExcludeKeywords = defaultExcludes
	}
	if len(cfg.Rules) == 0 {
		cfg.Rules = []model.Rule{{Name: "Default", TryJoin: true}}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.session_file", "./data/session.json")
	v.SetDefault("drives.tianyi", true)
	v.SetDefault("drives.uc", false)
	v.SetDefault("drives.pan123", false)
	v.SetDefault("drives.pan115", false)
	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.url", "socks5://192.168.2.1:7891")
	v.SetDefault("monitoring.data_dir", "./data")
	v.SetDefault("monitoring.loop", false)
	v.SetDefault("monitoring.interval_hours", 3)
	v.SetDefault("monitoring.max_concurrent_requests", 10)
	v.SetDefault("monitoring.monitor_limit", 3000)
	v.SetDefault("monitoring.monitor_days", 365)
	v.SetDefault("monitoring.smart_stop_count", 50)
	v.SetDefault("monitoring.retention_days", 30)
	v.SetDefault("log_level", "info")
}

func (c *Config) validate() error {
	var missing []string
	if c.Telegram.APIID == 0 {
		missing = append(missing, "telegram.api_id")
	}
	if c.Telegram.APIHash == "" {
		missing = append(missing, "telegram.api_hash")
	}
	if c.Sink.URL == "" {
		missing = append(missing, "sink.url")
	}
	if c.Sink.Key == "" {
		missing = append(missing, "sink.key")
	}
	if len(c.Monitoring.Channels) == 0 {
		missing = append(missing, "monitoring.channels")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if len(c.EnabledDrives()) == 0 {
		return errors.New("no drive types enabled")
	}
	return nil
}

// EnabledDrives returns the drive types switched on in the configuration.
func (c *Config) EnabledDrives() []model.DriveType {
	var out []model.DriveType
	if c.Drives.Tianyi {
		out = append(out, model.DriveTianyi)
	}
	if c.Drives.UC {
		out = append(out, model.DriveUC)
	}
	if c.Drives.Pan123 {
		out = append(out, model.Drive123)
	}
	if c.Drives.Pan115 {
		out = append(out, model.Drive115)
	}
	return out
}
