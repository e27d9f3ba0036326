package broadcast

import (
	"log"
	"sync"
)

// Subscriber is one live delivery channel to a connected client. Send must
// be non-blocking or bounded by the implementation's own timeout; a returned
// error marks the subscriber dead and removes it from the hub.
type Subscriber interface {
	Send(msg []byte) error
	Close() error
}

// Broadcaster fans published messages out to every registered subscriber.
// Registration is guarded by a mutex; delivery happens on a snapshot of the
// subscriber set taken under the lock, so a slow send never blocks
// registration.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[Subscriber]struct{}

	// onDrop, if set, is called once for each subscriber removed after a
	// failed delivery.
	onDrop func(Subscriber)
}

// New creates an empty hub.
func New() *Broadcaster {
	return &Broadcaster{subs: make(map[Subscriber]struct{})}
}

// OnDrop installs a callback invoked whenever a subscriber is dropped after
// a delivery failure. Must be called before the hub is in use.
func (b *Broadcaster) OnDrop(fn func(Subscriber)) {
	b.onDrop = fn
}

// Register adds a subscriber to the live set.
func (b *Broadcaster) Register(sub Subscriber) {
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	total := len(b.subs)
	b.mu.Unlock()
	log.Printf("Subscriber registered. Total subscribers: %d", total)
}

// Unregister removes a subscriber from the live set. It is idempotent and
// does not close the subscriber.
func (b *Broadcaster) Unregister(sub Subscriber) {
	b.mu.Lock()
	_, present := b.subs[sub]
	delete(b.subs, sub)
	total := len(b.subs)
	b.mu.Unlock()
	if present {
		log.Printf("Subscriber unregistered. Total subscribers: %d", total)
	}
}

// Count returns the current number of live subscribers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish delivers msg to every live subscriber exactly once. Subscribers
// whose delivery fails are removed and closed. Publishing to zero
// subscribers is a no-op.
func (b *Broadcaster) Publish(msg []byte) {
	b.mu.Lock()
	if len(b.subs) == 0 {
		b.mu.Unlock()
		return
	}
	snapshot := make([]Subscriber, 0, len(b.subs))
	for sub := range b.subs {
		snapshot = append(snapshot, sub)
	}
	b.mu.Unlock()

	var failed []Subscriber
	for _, sub := range snapshot {
		if err := sub.Send(msg); err != nil {
			log.Printf("Failed to send to subscriber: %v", err)
			failed = append(failed, sub)
		}
	}

	if len(failed) == 0 {
		return
	}

	b.mu.Lock()
	for _, sub := range failed {
		delete(b.subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range failed {
		sub.Close()
		if b.onDrop != nil {
			b.onDrop(sub)
		}
	}
	log.Printf("Removed %d dead subscriber(s)", len(failed))
}

// CloseAll removes and closes every subscriber. Used during shutdown so no
// dangling connections remain.
func (b *Broadcaster) CloseAll() {
	b.mu.Lock()
	subs := make([]Subscriber, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.subs = make(map[Subscriber]struct{})
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
