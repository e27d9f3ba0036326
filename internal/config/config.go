package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"NetScope/internal/anomaly"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// CaptureConfig selects the packet source. When PcapFile is set the pipeline
// replays that file instead of opening a live interface.
type CaptureConfig struct {
	Interface string `yaml:"interface"`
	BPF       string `yaml:"bpf"`
	QueueSize int    `yaml:"queue_size"`
	PcapFile  string `yaml:"pcap_file"`
}

// NATSConfig configures the optional event exporter.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ClickHouseConfig configures the optional alert-history sink.
type ClickHouseConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Database      string `yaml:"database"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	FlushInterval string `yaml:"flush_interval"`
}

// ExportConfig groups downstream event consumers.
type ExportConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

// SinkConfig groups persistence backends.
type SinkConfig struct {
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// Config is the top-level configuration for the entire application.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Capture CaptureConfig  `yaml:"capture"`
	Anomaly anomaly.Config `yaml:"anomaly"`
	Export  ExportConfig   `yaml:"export"`
	Sink    SinkConfig     `yaml:"sink"`
}

// Default returns the configuration used when a field is absent from the
// config file.
func Default() Config {
	return Config{
		Server:  ServerConfig{ListenAddr: ":8000"},
		Capture: CaptureConfig{QueueSize: 1000},
		Anomaly: anomaly.DefaultConfig(),
		Export: ExportConfig{
			NATS: NATSConfig{URL: "nats://127.0.0.1:4222", Subject: "netscope.events"},
		},
		Sink: SinkConfig{
			ClickHouse: ClickHouseConfig{
				Host:          "127.0.0.1",
				Port:          9000,
				Database:      "default",
				FlushInterval: "5s",
			},
		},
	}
}

// Load reads the configuration from a YAML file, applies defaults, and
// validates the result.
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects inconsistent or out-of-range settings.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr must not be empty")
	}
	if c.Capture.QueueSize <= 0 {
		return fmt.Errorf("capture.queue_size must be positive, got %d", c.Capture.QueueSize)
	}
	if err := c.Anomaly.Validate(); err != nil {
		return fmt.Errorf("anomaly: %w", err)
	}
	if c.Export.NATS.Enabled {
		if c.Export.NATS.URL == "" || c.Export.NATS.Subject == "" {
			return fmt.Errorf("export.nats requires url and subject when enabled")
		}
	}
	if c.Sink.ClickHouse.Enabled {
		if _, err := time.ParseDuration(c.Sink.ClickHouse.FlushInterval); err != nil {
			return fmt.Errorf("invalid sink.clickhouse.flush_interval: %w", err)
		}
	}
	return nil
}
