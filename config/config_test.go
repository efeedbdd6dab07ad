package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadPublisherConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, "listen_address: \":7165\"\n")

	cfg, err := LoadPublisherConfig(path)
	if err != nil {
		t.Fatalf("LoadPublisherConfig: %v", err)
	}
	if cfg.PublishIntervalMs != 33 {
		t.Fatalf("expected default publish interval 33ms, got %d", cfg.PublishIntervalMs)
	}
	if cfg.MaxPacketSize != 1_572_864 {
		t.Fatalf("expected default max packet size, got %d", cfg.MaxPacketSize)
	}
}

func TestLoadPublisherConfigOverride(t *testing.T) {
	path := writeTempConfig(t, "listen_address: \":9000\"\npublish_interval_ms: 10\n")

	cfg, err := LoadPublisherConfig(path)
	if err != nil {
		t.Fatalf("LoadPublisherConfig: %v", err)
	}
	if cfg.ListenAddress != ":9000" || cfg.PublishIntervalMs != 10 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadPublisherConfigMissingRequiredField(t *testing.T) {
	path := writeTempConfig(t, "max_packet_size: 4096\n")

	if _, err := LoadPublisherConfig(path); err == nil {
		t.Fatal("expected schema validation error for missing listen_address")
	}
}

func TestLoadSubscriberConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, "connection_string: \"server=localhost:7165\"\n")

	cfg, err := LoadSubscriberConfig(path)
	if err != nil {
		t.Fatalf("LoadSubscriberConfig: %v", err)
	}
	if !cfg.AutoReconnect {
		t.Fatal("expected auto_reconnect to default true")
	}
	if cfg.ReconnectBackoff.BaseMs != 1000 || cfg.ReconnectBackoff.CapMs != 30000 {
		t.Fatalf("unexpected reconnect backoff defaults: %+v", cfg.ReconnectBackoff)
	}
}

func TestSubscriberConfigValidateRejectsBadBackoff(t *testing.T) {
	cfg := DefaultSubscriberConfig()
	cfg.ConnectionString = "server=localhost:7165"
	cfg.ReconnectBackoff.CapMs = 10
	cfg.ReconnectBackoff.BaseMs = 1000

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when cap_ms < base_ms")
	}
}

func TestPublisherConfigValidateRejectsZeroUDPPort(t *testing.T) {
	cfg := DefaultPublisherConfig()
	cfg.UDPDataChannel = &UDPDataChannel{Port: 0}

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for zero UDP port")
	}
}
