package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSBus is a Bus backed by a NATS server. QoS arguments are ignored:
// core NATS delivery is at-most-once.
type NATSBus struct {
	url  string
	name string
	conn *nats.Conn

	mu        sync.RWMutex
	subs      map[string]*nats.Subscription
	published map[string]uint64
	received  map[string]uint64
	errors    uint64
}

// NewNATSBus creates a bus for url
func NewNATSBus(url, name string) *NATSBus {
	return &NATSBus{
		url:       url,
		name:      name,
		subs:      make(map[string]*nats.Subscription),
		published: make(map[string]uint64),
		received:  make(map[string]uint64),
	}
}

// Connect establishes connection to the NATS server
func (b *NATSBus) Connect(ctx context.Context) error {
	slog.Info("connecting to nats server", "url", b.url)

	conn, err := nats.Connect(b.url,
		nats.Name(b.name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats connection lost, will auto-reconnect", "error", err, "url", b.url)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("nats connection failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		conn.Close()
		return err
	}
	b.conn = conn

	slog.Info("nats connection established", "url", conn.ConnectedUrl(), "name", b.name)
	return nil
}

// Publish publishes payload on subject topic
func (b *NATSBus) Publish(topic string, payload []byte, _ byte) error {
	if !b.Connected() {
		b.countError()
		return fmt.Errorf("nats not connected")
	}
	if err := b.conn.Publish(topic, payload); err != nil {
		b.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	b.mu.Lock()
	b.published[topic]++
	b.mu.Unlock()
	return nil
}

// Subscribe registers handler for subject topic
func (b *NATSBus) Subscribe(topic string, _ byte, handler func(payload []byte)) error {
	if b.conn == nil {
		return fmt.Errorf("nats not connected")
	}

	sub, err := b.conn.Subscribe(topic, func(msg *nats.Msg) {
		b.mu.Lock()
		b.received[topic]++
		b.mu.Unlock()
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscription to %s failed: %w", topic, err)
	}

	b.mu.Lock()
	if prev, ok := b.subs[topic]; ok {
		_ = prev.Unsubscribe()
	}
	b.subs[topic] = sub
	b.mu.Unlock()

	slog.Info("nats subscribed", "subject", topic)
	return nil
}

// Unsubscribe removes the subscription for topic
func (b *NATSBus) Unsubscribe(topic string) error {
	b.mu.Lock()
	sub, ok := b.subs[topic]
	delete(b.subs, topic)
	b.mu.Unlock()

	if !ok {
		return nil
	}
	return sub.Unsubscribe()
}

// Connected returns connection status
func (b *NATSBus) Connected() bool {
	return b.conn != nil && b.conn.IsConnected()
}

// Disconnect flushes pending messages and closes the connection
func (b *NATSBus) Disconnect() error {
	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}
	if err := b.conn.FlushTimeout(time.Second); err != nil {
		slog.Warn("nats flush before close failed", "error", err)
	}
	b.conn.Close()
	slog.Info("nats disconnected")
	return nil
}

// Stats returns bus statistics
func (b *NATSBus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Stats{
		Connected: b.Connected(),
		Published: copyCounts(b.published),
		Received:  copyCounts(b.received),
		Errors:    b.errors,
	}
}

func (b *NATSBus) countError() {
	b.mu.Lock()
	b.errors++
	b.mu.Unlock()
}
