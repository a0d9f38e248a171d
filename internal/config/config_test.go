package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("app:\n  name: test\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Scheduler.Interval() != 5*time.Minute {
		t.Fatalf("expected 5m interval, got %s", cfg.Scheduler.Interval())
	}
	if cfg.Alerting.NearLevelPct != 0.005 {
		t.Fatalf("expected default threshold 0.005, got %v", cfg.Alerting.NearLevelPct)
	}
	if got := cfg.Provider.TickerMap["STM"]; got != "STMMI.MI" {
		t.Fatalf("ticker map should keep upper-case aliases, got %#v", cfg.Provider.TickerMap)
	}
	if !cfg.Scheduler.SkipWeekends {
		t.Fatal("weekend skip should default to true")
	}
	if cfg.Scheduler.RunOnStart {
		t.Fatal("run_on_start should default to false")
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
scheduler:
  check_interval_minutes: 2
  workers: 8
  run_on_start: true
alerting:
  near_level_pct: 0.01
provider:
  ticker_map:
    asml: ASML.AS
http:
  broadcast_timeout: 2s
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Scheduler.Interval() != 2*time.Minute || cfg.Scheduler.Workers != 8 || !cfg.Scheduler.RunOnStart {
		t.Fatalf("scheduler overrides not applied: %+v", cfg.Scheduler)
	}
	if cfg.Provider.TickerMap["ASML"] != "ASML.AS" {
		t.Fatalf("ticker alias not normalised: %#v", cfg.Provider.TickerMap)
	}
	if cfg.HTTP.BroadcastTimeout != 2*time.Second {
		t.Fatalf("broadcast timeout = %s", cfg.HTTP.BroadcastTimeout)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Scheduler: SchedulerConfig{CheckIntervalMinutes: 5, Workers: 1},
		Alerting:  AlertingConfig{NearLevelPct: 0.005},
		HTTP:      HTTPConfig{BroadcastTimeout: time.Second},
		Export:    ExportConfig{MaxRows: 10},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(c *Config){
		"interval":       func(c *Config) { c.Scheduler.CheckIntervalMinutes = 0 },
		"workers":        func(c *Config) { c.Scheduler.Workers = 0 },
		"threshold":      func(c *Config) { c.Alerting.NearLevelPct = -1 },
		"zero threshold": func(c *Config) { c.Alerting.NearLevelPct = 0 },
		"telegram":       func(c *Config) { c.Alerting.Telegram.Enabled = true },
		"export":         func(c *Config) { c.Export.MaxRows = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("%s: expected validation error", name)
			}
		})
	}
}
