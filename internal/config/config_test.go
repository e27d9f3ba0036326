package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
capture:
  interface: eth0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":8000" {
		t.Errorf("ListenAddr = %q, want :8000", cfg.Server.ListenAddr)
	}
	if cfg.Capture.Interface != "eth0" {
		t.Errorf("Interface = %q, want eth0", cfg.Capture.Interface)
	}
	if cfg.Capture.QueueSize != 1000 {
		t.Errorf("QueueSize = %d, want default 1000", cfg.Capture.QueueSize)
	}
	if cfg.Anomaly.WindowSize != 60 || cfg.Anomaly.Threshold != 3.0 {
		t.Errorf("anomaly defaults not applied: %+v", cfg.Anomaly)
	}
	if cfg.Export.NATS.Enabled || cfg.Sink.ClickHouse.Enabled {
		t.Error("optional integrations should default to disabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9090"
anomaly:
  window_size: 120
  threshold: 2.5
  min_samples: 20
  alert_cooldown: 60
export:
  nats:
    enabled: true
    url: nats://nats:4222
    subject: lab.packets
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want :9090", cfg.Server.ListenAddr)
	}
	if cfg.Anomaly.WindowSize != 120 || cfg.Anomaly.Threshold != 2.5 {
		t.Errorf("anomaly overrides not applied: %+v", cfg.Anomaly)
	}
	if !cfg.Export.NATS.Enabled || cfg.Export.NATS.Subject != "lab.packets" {
		t.Errorf("nats overrides not applied: %+v", cfg.Export.NATS)
	}
}

func TestLoadRejectsInvalidAnomalyConfig(t *testing.T) {
	path := writeConfig(t, `
anomaly:
  window_size: 5
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted window_size below the allowed range")
	}
}

func TestLoadRejectsInconsistentNATS(t *testing.T) {
	path := writeConfig(t, `
export:
  nats:
    enabled: true
    url: ""
    subject: ""
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted enabled NATS export without url/subject")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load succeeded on a missing file")
	}
}
