package capture

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"

	"NetScope/internal/model"
)

// Replayer feeds the pipeline from a pcap file instead of a live interface,
// for running against recorded traffic or on hosts without capture
// privileges. Events carry the capture-file timestamps.
type Replayer struct {
	queue chan model.PacketEvent
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewReplayer opens the pcap file and starts decoding it in the background.
func NewReplayer(path string, queueSize int) (*Replayer, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", path, err)
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	r := &Replayer{
		queue: make(chan model.PacketEvent, queueSize),
		done:  make(chan struct{}),
	}
	r.wg.Add(1)
	go r.read(handle)

	log.Printf("Replaying packets from %s", path)
	return r, nil
}

// Pull returns the next replayed event, waiting at most timeout. Once the
// file is exhausted the replayer simply reports idle.
func (r *Replayer) Pull(timeout time.Duration) (model.PacketEvent, bool) {
	return pull(r.queue, timeout)
}

// Stop ends the replay and waits for the reader goroutine.
func (r *Replayer) Stop() {
	r.once.Do(func() { close(r.done) })
	r.wg.Wait()
}

func (r *Replayer) read(handle *pcap.Handle) {
	defer r.wg.Done()
	defer handle.Close()

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range source.Packets() {
		event, ok := Normalize(packet)
		if !ok {
			continue
		}
		select {
		case r.queue <- event:
		case <-r.done:
			return
		}
	}
	log.Println("Replay finished: pcap file exhausted")
}
