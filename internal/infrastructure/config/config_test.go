package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeConfigFile writes a temporary config file and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, "bridge:\n  id: test-bridge\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "test-bridge" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "test-bridge")
	}
	if cfg.Bridge.PollInterval != 30 {
		t.Errorf("Bridge.PollInterval = %d, want default 30", cfg.Bridge.PollInterval)
	}
	if cfg.OWServer.Port != 4304 {
		t.Errorf("OWServer.Port = %d, want default 4304", cfg.OWServer.Port)
	}
	if cfg.SysBus.MountDir != "/sys/bus/w1/devices" {
		t.Errorf("SysBus.MountDir = %q, want default mount dir", cfg.SysBus.MountDir)
	}
	if cfg.MQTT.Broker.ClientID != "onewire-bridge" {
		t.Errorf("MQTT.Broker.ClientID = %q, want default", cfg.MQTT.Broker.ClientID)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
bridge:
  id: loft-bridge
  poll_interval: 10
  names:
    "28-0316a279f7ff": "Boiler Flow"
owserver:
  enabled: true
  host: ow.local
  port: 4305
sysbus:
  enabled: true
  mount_dir: /mnt/w1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.PollInterval != 10 {
		t.Errorf("PollInterval = %d, want 10", cfg.Bridge.PollInterval)
	}
	if got := cfg.Bridge.Names["28-0316a279f7ff"]; got != "Boiler Flow" {
		t.Errorf("Names lookup = %q, want %q", got, "Boiler Flow")
	}
	if cfg.OWServer.Host != "ow.local" || cfg.OWServer.Port != 4305 {
		t.Errorf("OWServer = %s:%d, want ow.local:4305", cfg.OWServer.Host, cfg.OWServer.Port)
	}
	if cfg.GetPollInterval() != 10*time.Second {
		t.Errorf("GetPollInterval() = %v, want 10s", cfg.GetPollInterval())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ONEWIRE_OWSERVER_HOST", "env-host")
	t.Setenv("ONEWIRE_MQTT_PASSWORD", "env-secret")

	path := writeConfigFile(t, "owserver:\n  host: file-host\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.OWServer.Host != "env-host" {
		t.Errorf("OWServer.Host = %q, want env override %q", cfg.OWServer.Host, "env-host")
	}
	if cfg.MQTT.Auth.Password != "env-secret" {
		t.Errorf("MQTT.Auth.Password not overridden from environment")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Load() with missing file: expected error, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(*Config) {}, false},
		{"missing bridge id", func(c *Config) { c.Bridge.ID = "" }, true},
		{"zero poll interval", func(c *Config) { c.Bridge.PollInterval = 0 }, true},
		{"no backend enabled", func(c *Config) {
			c.OWServer.Enabled = false
			c.SysBus.Enabled = false
		}, true},
		{"owserver without host", func(c *Config) { c.OWServer.Host = "" }, true},
		{"invalid owserver port", func(c *Config) { c.OWServer.Port = 70000 }, true},
		{"sysbus without mount dir", func(c *Config) {
			c.OWServer.Enabled = false
			c.SysBus.Enabled = true
			c.SysBus.MountDir = ""
		}, true},
		{"invalid qos", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"database enabled without path", func(c *Config) { c.Database.Path = "" }, true},
		{"negative retention", func(c *Config) { c.Database.RetentionDays = -1 }, true},
		{"api port out of range", func(c *Config) { c.API.Port = 0 }, true},
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
