package export

import (
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"NetScope/internal/config"
)

// NATSExporter republishes every broadcast event on a NATS subject so
// downstream consumers can tap the stream without holding a client
// connection to this process. It plugs into the hub as a regular
// subscriber.
type NATSExporter struct {
	nc      *nats.Conn
	subject string
}

// NewNATSExporter connects to the configured NATS server.
func NewNATSExporter(cfg config.NATSConfig) (*NATSExporter, error) {
	nc, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	log.Printf("Connected to NATS server at %s", cfg.URL)
	return &NATSExporter{nc: nc, subject: cfg.Subject}, nil
}

// Send publishes one event's wire bytes to the configured subject.
func (e *NATSExporter) Send(msg []byte) error {
	return e.nc.Publish(e.subject, msg)
}

// Close drains and closes the NATS connection.
func (e *NATSExporter) Close() error {
	if e.nc != nil {
		e.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
	return nil
}
