package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttConnectTimeout   = 5 * time.Second
	mqttPublishTimeout   = 500 * time.Millisecond
	mqttSubscribeTimeout = 5 * time.Second
)

type subscription struct {
	qos     byte
	handler func(payload []byte)
}

// MQTTBus is a Bus backed by an MQTT broker
type MQTTBus struct {
	broker   string
	clientID string
	client   mqtt.Client

	mu        sync.RWMutex
	subs      map[string]subscription
	published map[string]uint64
	received  map[string]uint64
	errors    uint64
	connected bool
}

// NewMQTTBus creates a bus for broker (host:port)
func NewMQTTBus(broker, clientID string) *MQTTBus {
	return &MQTTBus{
		broker:    broker,
		clientID:  clientID,
		subs:      make(map[string]subscription),
		published: make(map[string]uint64),
		received:  make(map[string]uint64),
	}
}

// Connect establishes connection to MQTT broker
func (b *MQTTBus) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", b.broker))
	opts.SetClientID(b.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetOrderMatters(false)

	// Connection handlers
	opts.OnConnect = func(c mqtt.Client) {
		b.mu.Lock()
		b.connected = true
		subs := make(map[string]subscription, len(b.subs))
		for topic, s := range b.subs {
			subs[topic] = s
		}
		b.mu.Unlock()

		slog.Info("mqtt connection established",
			"broker", b.broker,
			"client_id", b.clientID,
			"resubscribe", len(subs))

		// Clean sessions drop subscriptions on reconnect
		for topic, s := range subs {
			c.Subscribe(topic, s.qos, b.messageHandler(topic, s.handler))
		}
	}

	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		b.mu.Lock()
		b.connected = false
		b.mu.Unlock()
		slog.Warn("mqtt connection lost, will auto-reconnect",
			"error", err,
			"broker", b.broker,
			"max_retry_interval", "30s")
	}

	b.client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", b.broker)

	token := b.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(mqttConnectTimeout):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	b.mu.Lock()
	b.connected = true
	b.mu.Unlock()

	return nil
}

// Publish publishes payload on topic
func (b *MQTTBus) Publish(topic string, payload []byte, qos byte) error {
	if !b.Connected() {
		b.countError()
		return fmt.Errorf("mqtt not connected")
	}

	token := b.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		b.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		b.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	b.mu.Lock()
	b.published[topic]++
	b.mu.Unlock()
	return nil
}

// Subscribe registers handler for topic and remembers it for reconnects
func (b *MQTTBus) Subscribe(topic string, qos byte, handler func(payload []byte)) error {
	if b.client == nil {
		return fmt.Errorf("mqtt not connected")
	}

	token := b.client.Subscribe(topic, qos, b.messageHandler(topic, handler))
	if !token.WaitTimeout(mqttSubscribeTimeout) {
		return fmt.Errorf("subscription to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscription to %s failed: %w", topic, err)
	}

	b.mu.Lock()
	b.subs[topic] = subscription{qos: qos, handler: handler}
	b.mu.Unlock()

	slog.Info("mqtt subscribed", "topic", topic, "qos", qos)
	return nil
}

// Unsubscribe removes the subscription for topic
func (b *MQTTBus) Unsubscribe(topic string) error {
	b.mu.Lock()
	delete(b.subs, topic)
	b.mu.Unlock()

	if b.client == nil || !b.client.IsConnected() {
		return nil
	}
	token := b.client.Unsubscribe(topic)
	if !token.WaitTimeout(mqttSubscribeTimeout) {
		return fmt.Errorf("unsubscribe from %s timed out", topic)
	}
	return token.Error()
}

func (b *MQTTBus) messageHandler(topic string, handler func(payload []byte)) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		b.mu.Lock()
		b.received[topic]++
		b.mu.Unlock()
		handler(msg.Payload())
	}
}

// Connected returns connection status
func (b *MQTTBus) Connected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.connected
}

// Disconnect closes the MQTT connection
func (b *MQTTBus) Disconnect() error {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(250) // 250ms grace period
		slog.Info("mqtt disconnected")
	}

	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()

	return nil
}

// Stats returns bus statistics
func (b *MQTTBus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return Stats{
		Connected: b.connected,
		Published: copyCounts(b.published),
		Received:  copyCounts(b.received),
		Errors:    b.errors,
	}
}

func (b *MQTTBus) countError() {
	b.mu.Lock()
	b.errors++
	b.mu.Unlock()
}

func copyCounts(m map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
