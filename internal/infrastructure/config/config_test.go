package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
registry:
  backend: "memory"
  root: 'SYSTEM\CurrentControlSet\Enum\USB'
scan:
  interval: 5s
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: 9090
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Registry.Backend != "memory" {
		t.Errorf("Registry.Backend = %q, want %q", cfg.Registry.Backend, "memory")
	}
	if cfg.Scan.Interval != 5*time.Second {
		t.Errorf("Scan.Interval = %v, want 5s", cfg.Scan.Interval)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
}

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Registry.Root != DefaultEnumRoot {
		t.Errorf("Registry.Root = %q, want default enum root", cfg.Registry.Root)
	}
	if cfg.Elevation.PollInterval != 400*time.Millisecond {
		t.Errorf("Elevation.PollInterval = %v, want 400ms", cfg.Elevation.PollInterval)
	}
	if cfg.Elevation.Timeout != 75*time.Second {
		t.Errorf("Elevation.Timeout = %v, want 75s", cfg.Elevation.Timeout)
	}
	if cfg.Scan.Interval != 3*time.Second {
		t.Errorf("Scan.Interval = %v, want 3s", cfg.Scan.Interval)
	}
	if cfg.Database.HistoryRetention != 30*24*time.Hour {
		t.Errorf("Database.HistoryRetention = %v, want 720h", cfg.Database.HistoryRetention)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(_ *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown registry backend",
			mutate:  func(c *Config) { c.Registry.Backend = "etcd" },
			wantErr: true,
		},
		{
			name:    "empty registry root",
			mutate:  func(c *Config) { c.Registry.Root = "" },
			wantErr: true,
		},
		{
			name:    "negative scan interval",
			mutate:  func(c *Config) { c.Scan.Interval = -time.Second },
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			mutate:  func(c *Config) { c.Elevation.PollInterval = 0 },
			wantErr: true,
		},
		{
			name: "timeout not exceeding poll interval",
			mutate: func(c *Config) {
				c.Elevation.PollInterval = time.Second
				c.Elevation.Timeout = time.Second
			},
			wantErr: true,
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "tls enabled without cert",
			mutate:  func(c *Config) { c.API.TLS.Enabled = true },
			wantErr: true,
		},
		{
			name:    "operator password without jwt secret",
			mutate:  func(c *Config) { c.Security.OperatorPassword = "hunter2" },
			wantErr: true,
		},
		{
			name: "operator password with jwt secret",
			mutate: func(c *Config) {
				c.Security.OperatorPassword = "hunter2"
				c.Security.JWT.Secret = "test-secret-key-at-least-32-chars!"
			},
			wantErr: false,
		},
		{
			name:    "mqtt enabled without host",
			mutate:  func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker.Host = "" },
			wantErr: true,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Bucket = "usbflow" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("USBFLOW_REGISTRY_BACKEND", "memory")
	t.Setenv("USBFLOW_API_PORT", "7700")
	t.Setenv("USBFLOW_JWT_SECRET", "env-secret")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Registry.Backend != "memory" {
		t.Errorf("Registry.Backend = %q, want memory", cfg.Registry.Backend)
	}
	if cfg.API.Port != 7700 {
		t.Errorf("API.Port = %d, want 7700", cfg.API.Port)
	}
	if cfg.Security.JWT.Secret != "env-secret" {
		t.Errorf("JWT.Secret = %q, want env-secret", cfg.Security.JWT.Secret)
	}
}
