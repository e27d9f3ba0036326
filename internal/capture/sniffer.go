package capture

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"NetScope/internal/model"
)

const (
	defaultSnapLen   = 1600
	defaultQueueSize = 1000
	promiscuous      = true
)

// Status describes the sniffer's current state for status reporting.
type Status struct {
	Running   bool
	Interface string
	BPF       string
	Queued    int
	QueueCap  int
}

// Sniffer captures live packets with libpcap, normalizes them, and buffers
// the resulting events in a bounded queue. When the queue is full the oldest
// event is dropped so capture never blocks on slow consumers.
type Sniffer struct {
	queue chan model.PacketEvent

	mu      sync.Mutex
	handle  *pcap.Handle
	done    chan struct{}
	wg      sync.WaitGroup
	iface   string
	bpf     string
	running bool
}

// NewSniffer creates a stopped sniffer with the given queue capacity.
func NewSniffer(queueSize int) *Sniffer {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Sniffer{queue: make(chan model.PacketEvent, queueSize)}
}

// Start opens the interface and begins capturing in a background goroutine.
func (s *Sniffer) Start(iface, bpf string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("packet capture already running on %s", s.iface)
	}

	handle, err := pcap.OpenLive(iface, defaultSnapLen, promiscuous, pcap.BlockForever)
	if err != nil {
		return fmt.Errorf("failed to open interface %s: %w", iface, err)
	}
	if bpf != "" {
		if err := handle.SetBPFFilter(bpf); err != nil {
			handle.Close()
			return fmt.Errorf("failed to apply BPF filter %q: %w", bpf, err)
		}
	}

	s.handle = handle
	s.iface = iface
	s.bpf = bpf
	s.done = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go s.captureLoop(handle, s.done)

	log.Printf("Started packet capture on interface %s", iface)
	return nil
}

// Stop terminates capture and waits for the capture goroutine to exit.
// Stopping a stopped sniffer is a no-op.
func (s *Sniffer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	close(s.done)
	// Closing the handle unblocks the packet source.
	s.handle.Close()
	s.wg.Wait()

	s.handle = nil
	s.iface = ""
	s.bpf = ""
	s.running = false
	log.Println("Stopped packet capture")
}

// Restart stops any active capture and starts again with new settings.
func (s *Sniffer) Restart(iface, bpf string) error {
	s.Stop()
	return s.Start(iface, bpf)
}

// Pull returns the next available event, waiting at most timeout. ok=false
// means nothing arrived in time.
func (s *Sniffer) Pull(timeout time.Duration) (model.PacketEvent, bool) {
	return pull(s.queue, timeout)
}

// Status reports the current capture state.
func (s *Sniffer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Running:   s.running,
		Interface: s.iface,
		BPF:       s.bpf,
		Queued:    len(s.queue),
		QueueCap:  cap(s.queue),
	}
}

func (s *Sniffer) captureLoop(handle *pcap.Handle, done <-chan struct{}) {
	defer s.wg.Done()

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	packets := source.Packets()
	for {
		select {
		case <-done:
			return
		case packet, ok := <-packets:
			if !ok {
				return
			}
			event, ok := Normalize(packet)
			if !ok {
				continue
			}
			s.enqueue(event)
		}
	}
}

// enqueue adds an event to the queue, dropping the oldest buffered event
// when full.
func (s *Sniffer) enqueue(event model.PacketEvent) {
	select {
	case s.queue <- event:
		return
	default:
	}
	select {
	case <-s.queue:
	default:
	}
	select {
	case s.queue <- event:
	default:
	}
}

// pull waits up to timeout for the next event on the queue.
func pull(queue <-chan model.PacketEvent, timeout time.Duration) (model.PacketEvent, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case event := <-queue:
		return event, true
	case <-timer.C:
		return model.PacketEvent{}, false
	}
}

// Interfaces lists the capture-capable network interfaces.
func Interfaces() ([]model.NetworkInterface, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}
	interfaces := make([]model.NetworkInterface, 0, len(devs))
	for _, dev := range devs {
		interfaces = append(interfaces, model.NetworkInterface{
			Name:        dev.Name,
			Description: dev.Description,
			// libpcap does not expose interface state portably here.
			IsUp: true,
		})
	}
	return interfaces, nil
}

// HasInterface reports whether the named interface is available for capture.
func HasInterface(name string) (bool, error) {
	interfaces, err := Interfaces()
	if err != nil {
		return false, err
	}
	for _, iface := range interfaces {
		if iface.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// ValidateBPF compiles the filter expression without opening a device,
// returning an error describing why it is invalid.
func ValidateBPF(expr string) error {
	if _, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, defaultSnapLen, expr); err != nil {
		return fmt.Errorf("invalid BPF filter %q: %w", expr, err)
	}
	return nil
}
