package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPPort != "8080" {
		t.Errorf("expected default HTTP port 8080, got %q", cfg.HTTPPort)
	}
	if cfg.NATSStreamName != "AIWORKGROUND" {
		t.Errorf("unexpected stream name %q", cfg.NATSStreamName)
	}
	if cfg.WorkerConcurrency != 10 {
		t.Errorf("expected default concurrency 10, got %d", cfg.WorkerConcurrency)
	}
	if cfg.ProviderTimeout != 60*time.Second {
		t.Errorf("expected default provider timeout 60s, got %s", cfg.ProviderTimeout)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing db url", func(c *Config) { c.DatabaseURL = "" }},
		{"missing nats url", func(c *Config) { c.NATSURL = "" }},
		{"zero concurrency", func(c *Config) { c.WorkerConcurrency = 0 }},
		{"zero provider timeout", func(c *Config) { c.ProviderTimeout = 0 }},
		{"zero provider concurrency", func(c *Config) { c.ProviderMaxConcurrent = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
