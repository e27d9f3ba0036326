package api

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"NetScope/internal/broadcast"
	"NetScope/internal/metrics"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsSendBuffer   = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

var errSubscriberClosed = errors.New("subscriber closed")
var errSendBufferFull = errors.New("subscriber send buffer full")

// wsClient adapts one WebSocket connection to the broadcast.Subscriber
// contract. Outbound messages go through a bounded buffer drained by a
// writer goroutine, so a stalled client fails fast instead of blocking the
// hub.
type wsClient struct {
	conn *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
	}
}

// Send queues a message for delivery. A full buffer means the client is not
// keeping up; the hub treats the error as a dead subscriber.
func (c *wsClient) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errSubscriberClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return errSendBufferFull
	}
}

// Close stops the writer goroutine. Idempotent.
func (c *wsClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	return nil
}

// writePump serializes all writes to the connection.
func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	// Channel closed: say goodbye properly.
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

// readPump consumes inbound frames until the client disconnects, answering
// "ping" liveness probes without treating them as data events.
func (c *wsClient) readPump() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if string(data) == "ping" {
			c.Send([]byte("pong"))
		}
	}
}

// wsHandler upgrades the connection and ties its lifetime to hub
// registration.
func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := newWSClient(conn)
	s.hub.Register(client)
	metrics.SetConnectedClients(s.hub.Count())

	go client.writePump()
	client.readPump()

	s.hub.Unregister(client)
	client.Close()
	metrics.SetConnectedClients(s.hub.Count())
}

// compile-time check that wsClient satisfies the hub contract.
var _ broadcast.Subscriber = (*wsClient)(nil)
