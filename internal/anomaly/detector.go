package anomaly

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"NetScope/internal/model"
)

// Config holds the tunable parameters for anomaly detection. All values are
// validated against fixed ranges; out-of-range values are rejected, never
// clamped.
type Config struct {
	WindowSize    int     `yaml:"window_size" json:"window_size"`
	Threshold     float64 `yaml:"threshold" json:"threshold"`
	MinSamples    int     `yaml:"min_samples" json:"min_samples"`
	AlertCooldown int     `yaml:"alert_cooldown" json:"alert_cooldown"`
}

// DefaultConfig returns the standard detection parameters.
func DefaultConfig() Config {
	return Config{
		WindowSize:    60,
		Threshold:     3.0,
		MinSamples:    10,
		AlertCooldown: 30,
	}
}

// Validate checks that every parameter is within its allowed range.
func (c Config) Validate() error {
	if c.WindowSize < 10 || c.WindowSize > 300 {
		return fmt.Errorf("window_size must be between 10 and 300 seconds, got %d", c.WindowSize)
	}
	if c.Threshold < 1.0 || c.Threshold > 10.0 {
		return fmt.Errorf("threshold must be between 1.0 and 10.0, got %g", c.Threshold)
	}
	if c.MinSamples < 5 || c.MinSamples > c.WindowSize {
		return fmt.Errorf("min_samples must be between 5 and window_size (%d), got %d", c.WindowSize, c.MinSamples)
	}
	if c.AlertCooldown < 5 || c.AlertCooldown > 300 {
		return fmt.Errorf("alert_cooldown must be between 5 and 300 seconds, got %d", c.AlertCooldown)
	}
	return nil
}

// AlertFunc is invoked synchronously for every alert the detector emits.
type AlertFunc func(model.AnomalyAlert)

// Detector converts a stream of packet timestamps into per-second traffic
// counts and classifies each finalized second against the trailing window
// using a z-score test. A single mutex serializes all state transitions;
// detection work is O(window size), which the 300-bucket cap keeps cheap.
type Detector struct {
	mu sync.Mutex

	cfg     Config
	window  *RollingWindow
	onAlert AlertFunc

	currentSecond int64
	currentCount  int
	lastAlertTime float64

	now func() time.Time
}

// NewDetector creates a detector with the given configuration. The callback
// may be nil.
func NewDetector(cfg Config, onAlert AlertFunc) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid anomaly config: %w", err)
	}

	d := &Detector{
		cfg:           cfg,
		window:        NewRollingWindow(cfg.WindowSize),
		onAlert:       onAlert,
		currentSecond: time.Now().Unix(),
		now:           time.Now,
	}
	log.Printf("Initialized anomaly detector with window_size=%d, threshold=%g", cfg.WindowSize, cfg.Threshold)
	return d, nil
}

// AddPacket records one packet observation and returns an alert if the
// rollover it caused finalized an anomalous second. No alert ever fires
// mid-second; classification only runs on finalized buckets.
func (d *Detector) AddPacket(timestamp float64) *model.AnomalyAlert {
	d.mu.Lock()
	defer d.mu.Unlock()

	packetSecond := int64(timestamp)
	if packetSecond == d.currentSecond {
		d.currentCount++
		return nil
	}

	// A later second was observed: finalize the in-progress bucket first.
	// An alert returns immediately and leaves the rollover unfinished; the
	// next observation resumes it.
	if d.currentCount > 0 {
		d.window.Push(model.TrafficBucket{Second: d.currentSecond, PacketCount: d.currentCount})
		if alert := d.classify(d.currentCount); alert != nil {
			return alert
		}
	}

	// Fill any skipped seconds with zero-count buckets so sustained silence
	// shows up as a traffic drop.
	for d.currentSecond < packetSecond-1 {
		d.currentSecond++
		d.window.Push(model.TrafficBucket{Second: d.currentSecond, PacketCount: 0})
		if alert := d.classify(0); alert != nil {
			return alert
		}
	}

	d.currentSecond = packetSecond
	d.currentCount = 1
	return nil
}

// classify runs the z-score test for a count that has just been pushed into
// the window. The window deliberately already contains the sample under
// test, so the statistics include the very value being evaluated; existing
// consumers depend on this exact behavior, do not "fix" it.
//
// Callers must hold d.mu.
func (d *Detector) classify(packetCount int) *model.AnomalyAlert {
	if d.window.Len() < d.cfg.MinSamples {
		return nil
	}

	now := unixSeconds(d.now())
	if now-d.lastAlertTime < float64(d.cfg.AlertCooldown) {
		return nil
	}

	mean := d.window.Mean()
	stdev, ok := d.window.StdDev()
	if !ok || stdev == 0 {
		// Degenerate window: no variance to score against.
		return nil
	}

	z := (float64(packetCount) - mean) / stdev
	if math.Abs(z) < d.cfg.Threshold {
		return nil
	}

	alert := d.buildAlert(z, mean, stdev, packetCount, now)
	d.lastAlertTime = now

	if d.onAlert != nil {
		d.onAlert(*alert)
	}
	return alert
}

// buildAlert assembles the alert payload for a qualifying z-score.
// Callers must hold d.mu.
func (d *Detector) buildAlert(z, mean, stdev float64, packetCount int, now float64) *model.AnomalyAlert {
	var level string
	switch {
	case math.Abs(z) >= 5.0:
		level = model.LevelCritical
	case math.Abs(z) >= 4.0:
		level = model.LevelWarning
	default:
		level = model.LevelInfo
	}

	var message string
	if z > 0 {
		message = fmt.Sprintf("Traffic spike detected: %d packets/sec (z-score: %.2f)", packetCount, z)
	} else {
		message = fmt.Sprintf("Traffic drop detected: %d packets/sec (z-score: %.2f)", packetCount, z)
	}

	windowStart := now
	if start, ok := d.window.Start(); ok {
		windowStart = float64(start)
	}

	alert := &model.AnomalyAlert{
		Type:      "alert",
		Level:     level,
		Message:   message,
		Timestamp: now,
		Meta: model.AlertMeta{
			WindowStart:  windowStart,
			WindowSize:   d.window.Len(),
			PacketCount:  packetCount,
			ZScore:       round(z, 3),
			Threshold:    d.cfg.Threshold,
			MeanPackets:  round(mean, 2),
			StdevPackets: round(stdev, 2),
		},
	}

	log.Printf("Generated anomaly alert: %s", message)
	return alert
}

// GetStats reports the current window contents and configuration without
// mutating any state.
func (d *Detector) GetStats() model.StatsSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := model.StatsSnapshot{
		WindowSize:           d.window.Len(),
		MaxWindowSize:        d.cfg.WindowSize,
		CurrentPacketsPerSec: d.currentCount,
		Threshold:            d.cfg.Threshold,
		MinSamples:           d.cfg.MinSamples,
		LastAlertTime:        d.lastAlertTime,
	}

	if d.window.Len() > 0 {
		mean := round(d.window.Mean(), 2)
		median := round(d.window.Median(), 2)
		min, max, _ := d.window.MinMax()
		stats.MeanPackets = &mean
		stats.MedianPackets = &median
		stats.MaxPackets = &max
		stats.MinPackets = &min
	}
	if stdev, ok := d.window.StdDev(); ok {
		rounded := round(stdev, 2)
		stats.StdevPackets = &rounded
	}
	return stats
}

// Config returns a copy of the active configuration.
func (d *Detector) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// UpdateConfig replaces the detection parameters. When the window size
// changes, existing buckets are retained up to the new capacity, keeping the
// most recent ones on shrink.
func (d *Detector) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid anomaly config: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	oldWindowSize := d.cfg.WindowSize
	d.cfg = cfg
	if cfg.WindowSize != oldWindowSize {
		d.window.Resize(cfg.WindowSize)
	}

	log.Printf("Updated anomaly detection config: window_size=%d, threshold=%g", cfg.WindowSize, cfg.Threshold)
	return nil
}

// Reset clears all detection state, keeping the configuration.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.window = NewRollingWindow(d.cfg.WindowSize)
	d.currentSecond = d.now().Unix()
	d.currentCount = 0
	d.lastAlertTime = 0

	log.Println("Reset anomaly detection state")
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func round(v float64, places int) float64 {
	scale := math.Pow10(places)
	return math.Round(v*scale) / scale
}
