package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Mode != ModeAuto {
		t.Errorf("expected default mode auto, got %s", cfg.Mode)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected default workers 4, got %d", cfg.Workers)
	}
	if cfg.Retry.Attempts != 10 {
		t.Errorf("expected default retry attempts 10, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != 10*time.Second {
		t.Errorf("expected default retry backoff 10s, got %v", cfg.Retry.Backoff)
	}
	if cfg.Aspera.Binary != "ascp" {
		t.Errorf("expected default aspera binary ascp, got %q", cfg.Aspera.Binary)
	}
	if cfg.Aspera.Port != 33001 {
		t.Errorf("expected default aspera port 33001, got %d", cfg.Aspera.Port)
	}
	if cfg.Aspera.RateLimit != "300m" {
		t.Errorf("expected default rate limit 300m, got %q", cfg.Aspera.RateLimit)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
output_dir: /data/reads
mode: http
workers: 8
quiet: true
retry:
  attempts: 5
  backoff: 2s
  max_backoff: 60s
aspera:
  binary: /opt/aspera/bin/ascp
  key_path: /opt/aspera/etc/asperaweb_id_dsa.openssh
  port: 33001
  rate_limit: 100m
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.OutputDir != "/data/reads" {
		t.Errorf("expected output dir /data/reads, got %q", cfg.OutputDir)
	}
	if cfg.Mode != ModeHTTP {
		t.Errorf("expected mode http, got %s", cfg.Mode)
	}
	if cfg.Workers != 8 {
		t.Errorf("expected workers 8, got %d", cfg.Workers)
	}
	if !cfg.Quiet {
		t.Error("expected quiet true")
	}
	if cfg.Retry.Attempts != 5 {
		t.Errorf("expected retry attempts 5, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != 2*time.Second {
		t.Errorf("expected retry backoff 2s, got %v", cfg.Retry.Backoff)
	}
	if cfg.Retry.MaxBackoff != 60*time.Second {
		t.Errorf("expected retry max backoff 60s, got %v", cfg.Retry.MaxBackoff)
	}
	if cfg.Aspera.KeyPath != "/opt/aspera/etc/asperaweb_id_dsa.openssh" {
		t.Errorf("unexpected key path %q", cfg.Aspera.KeyPath)
	}
	if cfg.Aspera.RateLimit != "100m" {
		t.Errorf("expected rate limit 100m, got %q", cfg.Aspera.RateLimit)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ENADL_OUTPUT_DIR", "/env/out")
	t.Setenv("ENADL_MODE", "accelerated")
	t.Setenv("ENADL_WORKERS", "2")
	t.Setenv("ENADL_RETRY_ATTEMPTS", "3")
	t.Setenv("ENADL_RETRY_BACKOFF", "500ms")
	t.Setenv("ENADL_ASCP_KEY", "/keys/id_dsa")
	t.Setenv("ENADL_ASCP_RATE", "500m")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.OutputDir != "/env/out" {
		t.Errorf("expected output dir /env/out, got %q", cfg.OutputDir)
	}
	if cfg.Mode != ModeAccelerated {
		t.Errorf("expected mode accelerated, got %s", cfg.Mode)
	}
	if cfg.Workers != 2 {
		t.Errorf("expected workers 2, got %d", cfg.Workers)
	}
	if cfg.Retry.Attempts != 3 {
		t.Errorf("expected retry attempts 3, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Backoff != 500*time.Millisecond {
		t.Errorf("expected retry backoff 500ms, got %v", cfg.Retry.Backoff)
	}
	if cfg.Aspera.KeyPath != "/keys/id_dsa" {
		t.Errorf("expected key path /keys/id_dsa, got %q", cfg.Aspera.KeyPath)
	}
	if cfg.Aspera.RateLimit != "500m" {
		t.Errorf("expected rate limit 500m, got %q", cfg.Aspera.RateLimit)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("ENADL_WORKERS", "not-a-number")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for invalid ENADL_WORKERS")
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	merged := base.Merge(Config{
		Mode:    ModeHTTP,
		Workers: 12,
		Retry:   RetryConfig{Attempts: 2},
	})

	if merged.Mode != ModeHTTP {
		t.Errorf("expected merged mode http, got %s", merged.Mode)
	}
	if merged.Workers != 12 {
		t.Errorf("expected merged workers 12, got %d", merged.Workers)
	}
	if merged.Retry.Attempts != 2 {
		t.Errorf("expected merged retry attempts 2, got %d", merged.Retry.Attempts)
	}
	// Untouched values survive the merge.
	if merged.Retry.Backoff != base.Retry.Backoff {
		t.Errorf("backoff changed unexpectedly: %v", merged.Retry.Backoff)
	}
	if merged.Aspera.Binary != "ascp" {
		t.Errorf("aspera binary changed unexpectedly: %q", merged.Aspera.Binary)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"empty output dir", func(c *Config) { c.OutputDir = "" }, true},
		{"bad mode", func(c *Config) { c.Mode = "warp" }, true},
		{"zero workers", func(c *Config) { c.Workers = 0 }, true},
		{"zero attempts", func(c *Config) { c.Retry.Attempts = 0 }, true},
		{"bad group by", func(c *Config) { c.GroupBy = "study" }, true},
		{"group by sample", func(c *Config) { c.GroupBy = "sample" }, false},
		{"accelerated without key", func(c *Config) { c.Mode = ModeAccelerated }, true},
		{"accelerated with key", func(c *Config) {
			c.Mode = ModeAccelerated
			c.Aspera.KeyPath = "/keys/id_dsa"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
