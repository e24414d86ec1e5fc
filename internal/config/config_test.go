package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Converter.SourceUnit != "USD" || cfg.Converter.TargetUnit != "VND" {
		t.Fatalf("unexpected default units %s/%s", cfg.Converter.SourceUnit, cfg.Converter.TargetUnit)
	}
	if cfg.Converter.DefaultPrecision != 2 {
		t.Fatalf("default precision = %d", cfg.Converter.DefaultPrecision)
	}
	if cfg.Rates.RequestTimeout != 10*time.Second {
		t.Fatalf("request timeout = %s", cfg.Rates.RequestTimeout)
	}
	if len(cfg.Alerting.Pairs) != 1 || cfg.Alerting.Pairs[0] != "USD/VND" {
		t.Fatalf("default pairs = %v", cfg.Alerting.Pairs)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
converter:
  source_unit: eur
  target_unit: JPY
  default_precision: 4
rates:
  request_timeout: 3s
scheduler:
  interval: 15m
alerting:
  pairs: "EUR/USD,GBP/JPY"
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CURRENCYCONV_RATES_ACCESS_KEY", "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Rates.AccessKey != "secret" {
		t.Fatalf("access key from env not applied: %q", cfg.Rates.AccessKey)
	}
	if cfg.Converter.DefaultPrecision != 4 || cfg.Converter.SourceUnit != "eur" {
		t.Fatalf("converter section not decoded: %+v", cfg.Converter)
	}
	if cfg.Rates.RequestTimeout != 3*time.Second || cfg.Scheduler.Interval != 15*time.Minute {
		t.Fatalf("durations not decoded: %s %s", cfg.Rates.RequestTimeout, cfg.Scheduler.Interval)
	}
	if len(cfg.Alerting.Pairs) != 2 || cfg.Alerting.Pairs[1] != "GBP/JPY" {
		t.Fatalf("pairs not split: %v", cfg.Alerting.Pairs)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Rates:     RatesConfig{RequestTimeout: time.Second},
			Converter: ConverterConfig{SourceUnit: "USD", TargetUnit: "VND", DefaultPrecision: 2},
			Scheduler: SchedulerConfig{Interval: time.Minute},
			Export:    ExportConfig{MaxDataPoints: 10},
		}
	}

	cfg := base()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	broken := []func(*Config){
		func(c *Config) { c.Converter.DefaultPrecision = -1 },
		func(c *Config) { c.Converter.DefaultPrecision = 11 },
		func(c *Config) { c.Converter.TargetUnit = "DONG" },
		func(c *Config) { c.Rates.RequestTimeout = 0 },
		func(c *Config) { c.Alerting.Pairs = []string{"USDVND"} },
		func(c *Config) { c.Alerting.ThresholdPct = -1 },
		func(c *Config) { c.Alerting.Telegram.Enabled = true },
	}
	for i, mutate := range broken {
		cfg := base()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestSplitPair(t *testing.T) {
	source, target, ok := SplitPair(" usd / vnd ")
	if !ok || source != "USD" || target != "VND" {
		t.Fatalf("SplitPair = %q %q %v", source, target, ok)
	}
	for _, bad := range []string{"", "USD", "USD/", "US/VND", "US1/VND"} {
		if _, _, ok := SplitPair(bad); ok {
			t.Fatalf("SplitPair(%q) should fail", bad)
		}
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := Config{Export: ExportConfig{MaxDataPoints: 50}}
	if got := cfg.ResolveMaxPoints(0); got != 50 {
		t.Fatalf("got %d", got)
	}
	if got := cfg.ResolveMaxPoints(7); got != 7 {
		t.Fatalf("got %d", got)
	}
}
