package stream

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"NetScope/internal/anomaly"
	"NetScope/internal/broadcast"
	"NetScope/internal/model"
)

// Source supplies normalized packet events. Pull blocks for at most the
// given timeout; ok=false means nothing was available, not an error.
type Source interface {
	Pull(timeout time.Duration) (model.PacketEvent, bool)
}

const (
	defaultPollTimeout = 100 * time.Millisecond
	errorBackoff       = 1 * time.Second
	stopTimeout        = 5 * time.Second
)

// Coordinator is the background loop bridging the capture source, the
// anomaly detector, and the broadcast hub. A failure in one iteration is
// logged and backed off; the loop only exits when Stop is called.
type Coordinator struct {
	source   Source
	detector *anomaly.Detector
	hub      *broadcast.Broadcaster

	pollTimeout time.Duration

	// onPacket, if set, is called once per packet pulled from the source.
	onPacket func(model.PacketEvent)

	mu      sync.Mutex
	running bool
	done    chan struct{}
	stopped chan struct{}
}

// NewCoordinator wires a source, detector, and hub together. The loop is
// not started until Start is called.
func NewCoordinator(source Source, detector *anomaly.Detector, hub *broadcast.Broadcaster) *Coordinator {
	return &Coordinator{
		source:      source,
		detector:    detector,
		hub:         hub,
		pollTimeout: defaultPollTimeout,
	}
}

// OnPacket installs a per-packet observer (used for metrics). Must be called
// before Start.
func (c *Coordinator) OnPacket(fn func(model.PacketEvent)) {
	c.onPacket = fn
}

// Start launches the streaming loop. Calling Start on a running coordinator
// is a no-op.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		log.Println("Stream coordinator already running")
		return
	}
	c.done = make(chan struct{})
	c.stopped = make(chan struct{})
	c.running = true

	go c.run(c.done, c.stopped)
	log.Println("Stream coordinator started")
}

// Stop signals the loop to exit and waits for it, bounded by a timeout. Safe
// to call from any goroutine, and a no-op when the loop is not running.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	done, stopped := c.done, c.stopped
	c.running = false
	c.mu.Unlock()

	close(done)
	select {
	case <-stopped:
		log.Println("Stream coordinator stopped")
	case <-time.After(stopTimeout):
		log.Println("Timed out waiting for stream coordinator to stop")
	}
}

// Running reports whether the loop is active.
func (c *Coordinator) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Coordinator) run(done <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	for {
		select {
		case <-done:
			return
		default:
		}
		c.iterate()
	}
}

// iterate performs one pull-detect-publish cycle. Any panic from a single
// iteration is recovered and followed by a brief backoff so one bad packet
// never terminates the stream.
func (c *Coordinator) iterate() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Error in stream iteration: %v", r)
			time.Sleep(errorBackoff)
		}
	}()

	pkt, ok := c.source.Pull(c.pollTimeout)
	if !ok {
		return
	}

	if c.onPacket != nil {
		c.onPacket(pkt)
	}

	// Alerts are published as soon as they are computed, before the packet
	// that triggered the rollover.
	if alert := c.detector.AddPacket(pkt.Timestamp); alert != nil {
		if data, err := json.Marshal(alert); err != nil {
			log.Printf("Failed to marshal alert: %v", err)
		} else {
			c.hub.Publish(data)
		}
	}

	data, err := json.Marshal(pkt)
	if err != nil {
		log.Printf("Failed to marshal packet: %v", err)
		return
	}
	c.hub.Publish(data)
}
