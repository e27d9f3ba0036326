package model

// Alert severity levels, ordered by z-score magnitude.
const (
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// PacketEvent is the normalized representation of one observed packet.
// It is immutable once created and serialized as-is onto the wire.
type PacketEvent struct {
	Timestamp float64 `json:"ts"`
	Src       string  `json:"src"`
	Dst       string  `json:"dst"`
	Proto     string  `json:"proto"`
	Length    int     `json:"length"`
	SrcPort   *int    `json:"sport"`
	DstPort   *int    `json:"dport"`
	Summary   string  `json:"summary"`
}

// AlertMeta carries the statistical context that triggered an alert.
type AlertMeta struct {
	WindowStart  float64 `json:"window_start"`
	WindowSize   int     `json:"window_size"`
	PacketCount  int     `json:"packet_count"`
	ZScore       float64 `json:"z_score"`
	Threshold    float64 `json:"threshold"`
	MeanPackets  float64 `json:"mean_packets"`
	StdevPackets float64 `json:"stdev_packets"`
}

// AnomalyAlert is emitted when a finalized per-second traffic count deviates
// from the trailing window beyond the configured threshold.
type AnomalyAlert struct {
	Type      string    `json:"type"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp float64   `json:"timestamp"`
	Meta      AlertMeta `json:"meta"`
}

// TrafficBucket is one second's finalized packet count.
type TrafficBucket struct {
	Second      int64
	PacketCount int
}

// StatsSnapshot reports the detector's current window and configuration.
// The aggregate fields are only present once enough samples have been seen.
type StatsSnapshot struct {
	WindowSize           int      `json:"window_size"`
	MaxWindowSize        int      `json:"max_window_size"`
	CurrentPacketsPerSec int      `json:"current_packets_per_sec"`
	Threshold            float64  `json:"threshold"`
	MinSamples           int      `json:"min_samples"`
	LastAlertTime        float64  `json:"last_alert_time"`
	MeanPackets          *float64 `json:"mean_packets,omitempty"`
	MedianPackets        *float64 `json:"median_packets,omitempty"`
	MaxPackets           *int     `json:"max_packets,omitempty"`
	MinPackets           *int     `json:"min_packets,omitempty"`
	StdevPackets         *float64 `json:"stdev_packets,omitempty"`
}

// SystemStatus is the /status response body.
type SystemStatus struct {
	Status           string  `json:"status"`
	CaptureActive    bool    `json:"capture_active"`
	CurrentInterface *string `json:"current_interface"`
	CurrentFilter    *string `json:"current_filter"`
	ConnectedClients int     `json:"connected_clients"`
}

// NetworkInterface describes one capture-capable interface.
type NetworkInterface struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsUp        bool   `json:"is_up"`
}

// CaptureConfigChange is broadcast to connected clients when capture
// settings are updated at runtime.
type CaptureConfigChange struct {
	Type      string  `json:"type"`
	Interface string  `json:"interface"`
	BPFFilter string  `json:"bpf_filter"`
	Timestamp float64 `json:"timestamp"`
}

// AnomalyConfigChange is broadcast to connected clients when detection
// parameters are updated at runtime.
type AnomalyConfigChange struct {
	Type          string  `json:"type"`
	WindowSize    int     `json:"window_size"`
	Threshold     float64 `json:"threshold"`
	MinSamples    int     `json:"min_samples"`
	AlertCooldown int     `json:"alert_cooldown"`
	Timestamp     float64 `json:"timestamp"`
}
