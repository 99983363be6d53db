package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cloudmon/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `{
  "telegram": {"api_id": 12345, "api_hash": "abcdef"},
  "sink": {"url": "http://sink.test/push", "key": "secret"},
  "monitoring": {"channels": ["https://t.me/testchan"]}
}`

func TestLoadMinimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Telegram.APIID != 12345 {
		t.Errorf("api_id = %d, want 12345", cfg.Telegram.APIID)
	}
	if cfg.Monitoring.MonitorLimit != 3000 {
		t.Errorf("monitor_limit default = %d, want 3000", cfg.Monitoring.MonitorLimit)
	}
	if cfg.Monitoring.SmartStopCount != 50 {
		t.Errorf("smart_stop_count default = %d, want 50", cfg.Monitoring.SmartStopCount)
	}
	if cfg.Monitoring.IntervalHours != 3 {
		t.Errorf("interval_hours default = %d, want 3", cfg.Monitoring.IntervalHours)
	}

	wantRules := []model.Rule{{Name: "Default", TryJoin: true}}
	if diff := cmp.Diff(wantRules, cfg.Rules); diff != "" {
		t.Errorf("default rules mismatch (-want +got):\n%s", diff)
	}
	if len(cfg.ExcludeKeywords) == 0 {
		t.Error("default exclude keywords not applied")
	}

	if diff := cmp.Diff([]model.DriveType{model.DriveTianyi}, cfg.EnabledDrives()); diff != "" {
		t.Errorf("enabled drives mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFull(t *testing.T) {
	path := writeConfig(t, `{
  "telegram": {"api_id": 1, "api_hash": "h", "session_file": "/tmp/s.json"},
  "sink": {"url": "http://sink.test", "key": "k"},
  "drives": {"tianyi": false, "uc": true, "pan115": true},
  "monitoring": {
    "channels": ["@chan"],
    "loop": true,
    "monitor_limit": 500,
    "smart_stop_count": 10
  },
  "exclude_keywords": ["广告"],
  "rules": [
    {"name": "Movies", "folder_prefix": "电影/", "required_keywords": ["电影"], "try_join": true},
    {"name": "Rest"}
  ],
  "log_level": "debug"
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff([]model.DriveType{model.DriveUC, model.Drive115}, cfg.EnabledDrives()); diff != "" {
		t.Errorf("enabled drives mismatch (-want +got):\n%s", diff)
	}
	if !cfg.Monitoring.Loop {
		t.Error("loop not set")
	}
	if cfg.Monitoring.MonitorLimit != 500 {
		t.Errorf("monitor_limit = %d, want 500", cfg.Monitoring.MonitorLimit)
	}
	if diff := cmp.Diff([]string{"广告"}, cfg.ExcludeKeywords); diff != "" {
		t.Errorf("exclude keywords mismatch (-want +got):\n%s", diff)
	}
	if len(cfg.Rules) != 2 || cfg.Rules[0].Name != "Movies" || cfg.Rules[0].FolderPrefix != "电影/" {
		t.Errorf("rules not loaded: %+v", cfg.Rules)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadSecretsFromEnv(t *testing.T) {
	t.Setenv("CLOUDMON_TELEGRAM_API_ID", "98765")
	t.Setenv("CLOUDMON_TELEGRAM_API_HASH", "envhash")
	t.Setenv("CLOUDMON_SINK_URL", "http://sink.test/env")
	t.Setenv("CLOUDMON_SINK_KEY", "envkey")

	path := writeConfig(t, `{"monitoring": {"channels": ["@chan"]}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load with env secrets: %v", err)
	}
	if cfg.Telegram.APIID != 98765 {
		t.Errorf("api_id = %d, want 98765", cfg.Telegram.APIID)
	}
	if cfg.Telegram.APIHash != "envhash" {
		t.Errorf("api_hash = %q, want envhash", cfg.Telegram.APIHash)
	}
	if cfg.Sink.URL != "http://sink.test/env" {
		t.Errorf("sink url = %q", cfg.Sink.URL)
	}
	if cfg.Sink.Key != "envkey" {
		t.Errorf("sink key = %q", cfg.Sink.Key)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("CLOUDMON_SINK_KEY", "from-env")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Sink.Key != "from-env" {
		t.Errorf("sink key = %q, want env value over file value", cfg.Sink.Key)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	path := writeConfig(t, `{"telegram": {"api_id": 1, "api_hash": "h"}}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing required values")
	}
	for _, want := range []string{"sink.url", "sink.key", "monitoring.channels"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %s", err, want)
		}
	}
}

func TestLoadNoDrivesEnabled(t *testing.T) {
	path := writeConfig(t, `{
  "telegram": {"api_id": 1, "api_hash": "h"},
  "sink": {"url": "u", "key": "k"},
  "drives": {"tianyi": false},
  "monitoring": {"channels": ["@c"]}
}`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error when every drive type is disabled")
	}
}

func TestLoadMissingFileUsesDefaultsAndFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error, not a read error")
	}
	if !strings.Contains(err.Error(), "missing required config") {
		t.Errorf("unexpected error: %v", err)
	}
}
