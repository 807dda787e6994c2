package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// MemoryBus is an in-process Bus. Published payloads are handed
// synchronously to the subscriber of the same topic, if any. It backs the
// "memory" transport for bench runs without a broker.
type MemoryBus struct {
	mu        sync.RWMutex
	connected bool
	failWith  error
	subs      map[string]func(payload []byte)
	last      map[string][]byte
	published map[string]uint64
	received  map[string]uint64
	errors    uint64
}

// NewMemoryBus creates a disconnected in-process bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs:      make(map[string]func(payload []byte)),
		last:      make(map[string][]byte),
		published: make(map[string]uint64),
		received:  make(map[string]uint64),
	}
}

// Connect marks the bus as connected
func (b *MemoryBus) Connect(ctx context.Context) error {
	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()
	slog.Info("memory bus connected")
	return nil
}

// Publish delivers payload to the subscriber of topic
func (b *MemoryBus) Publish(topic string, payload []byte, _ byte) error {
	b.mu.Lock()
	if !b.connected || b.failWith != nil {
		err := b.failWith
		if err == nil {
			err = fmt.Errorf("memory bus not connected")
		}
		b.errors++
		b.mu.Unlock()
		return err
	}
	data := append([]byte(nil), payload...)
	b.last[topic] = data
	b.published[topic]++
	handler := b.subs[topic]
	b.mu.Unlock()

	if handler != nil {
		b.Inject(topic, data)
	}
	return nil
}

// Inject delivers payload to the subscriber of topic as if it came from
// the broker.
func (b *MemoryBus) Inject(topic string, payload []byte) bool {
	b.mu.Lock()
	handler, ok := b.subs[topic]
	if ok {
		b.received[topic]++
	}
	b.mu.Unlock()

	if ok {
		handler(payload)
	}
	return ok
}

// Subscribe registers handler for topic, replacing any previous handler
func (b *MemoryBus) Subscribe(topic string, _ byte, handler func(payload []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = handler
	return nil
}

// Unsubscribe removes the handler for topic
func (b *MemoryBus) Unsubscribe(topic string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, topic)
	return nil
}

// Last returns the last payload published on topic
func (b *MemoryBus) Last(topic string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.last[topic]
	return p, ok
}

// FailWith makes every following Publish return err; nil restores delivery
func (b *MemoryBus) FailWith(err error) {
	b.mu.Lock()
	b.failWith = err
	b.mu.Unlock()
}

// Connected reports whether Connect was called
func (b *MemoryBus) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// Disconnect marks the bus as disconnected
func (b *MemoryBus) Disconnect() error {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	return nil
}

// Stats returns bus statistics
func (b *MemoryBus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Stats{
		Connected: b.connected,
		Published: copyCounts(b.published),
		Received:  copyCounts(b.received),
		Errors:    b.errors,
	}
}
