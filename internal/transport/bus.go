// Package transport connects the controller to a message bus: commands
// out, sensor readings and control requests in.
package transport

import (
	"context"
	"fmt"

	"github.com/jf994/miro-behavior/internal/config"
	"github.com/jf994/miro-behavior/internal/types"
)

// Bus publishes and subscribes raw payloads on named topics
type Bus interface {
	// Connect establishes connection to the broker
	Connect(ctx context.Context) error
	// Publish publishes a message to a topic
	Publish(topic string, payload []byte, qos byte) error
	// Subscribe registers handler for every message on topic
	Subscribe(topic string, qos byte, handler func(payload []byte)) error
	// Unsubscribe removes the handler for topic
	Unsubscribe(topic string) error
	// Connected reports whether the broker connection is up
	Connected() bool
	// Disconnect closes the connection
	Disconnect() error
	// Stats returns bus statistics
	Stats() Stats
}

// Stats contains bus statistics
type Stats struct {
	Connected bool
	Published map[string]uint64
	Received  map[string]uint64
	Errors    uint64
}

// CommandPublisher encodes actuator commands and publishes them on the
// per-mood command topic.
type CommandPublisher struct {
	bus      Bus
	codec    Codec
	template string
	qos      byte
}

// NewCommandPublisher creates a publisher. template may contain {mood}.
func NewCommandPublisher(bus Bus, codec Codec, template string, qos byte) *CommandPublisher {
	return &CommandPublisher{
		bus:      bus,
		codec:    codec,
		template: template,
		qos:      qos,
	}
}

// Publish implements loop.Publisher
func (p *CommandPublisher) Publish(mood string, cmd types.ActuatorCommand) error {
	topic := p.Topic(mood)

	payload, err := p.codec.Marshal(cmd)
	if err != nil {
		return &types.PublishError{Topic: topic, Err: fmt.Errorf("failed to marshal command: %w", err)}
	}
	if err := p.bus.Publish(topic, payload, p.qos); err != nil {
		return &types.PublishError{Topic: topic, Err: err}
	}
	return nil
}

// Topic returns the command topic for mood
func (p *CommandPublisher) Topic(mood string) string {
	return config.CommandTopic(p.template, mood)
}
