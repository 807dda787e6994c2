package sensorstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jf994/miro-behavior/internal/metrics"
	"github.com/jf994/miro-behavior/internal/transport"
	"github.com/jf994/miro-behavior/internal/types"
)

// BusSource subscribes to the platform sensors topic and stores every
// decoded reading. Unknown payload fields are ignored.
type BusSource struct {
	bus   transport.Bus
	codec transport.Codec
	topic string
	qos   byte

	*ingester

	mu      sync.Mutex
	running bool
}

// NewBusSource creates a source reading topic from bus
func NewBusSource(bus transport.Bus, codec transport.Codec, topic string, qos byte, sink Sink, m *metrics.Metrics) *BusSource {
	return &BusSource{
		bus:      bus,
		codec:    codec,
		topic:    topic,
		qos:      qos,
		ingester: newIngester("bus", sink, m),
	}
}

// Name returns the source name
func (s *BusSource) Name() string { return "bus" }

// Start subscribes to the sensors topic. Delivery runs on the bus client's
// goroutine.
func (s *BusSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("bus source already running")
	}
	if err := s.bus.Subscribe(s.topic, s.qos, s.handle); err != nil {
		return fmt.Errorf("failed to subscribe to sensors: %w", err)
	}
	s.running = true

	slog.Info("sensor bus source started", "topic", s.topic, "codec", s.codec.Name())
	return nil
}

func (s *BusSource) handle(payload []byte) {
	var r types.RawReading
	if err := s.codec.Unmarshal(payload, &r); err != nil {
		s.metrics.ObserveReading(err)
		s.reject(fmt.Errorf("invalid sensors payload: %w", err))
		return
	}
	_ = s.ingest(r)
}

// Stop unsubscribes from the sensors topic
func (s *BusSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	s.running = false

	if err := s.bus.Unsubscribe(s.topic); err != nil {
		return fmt.Errorf("failed to unsubscribe from sensors: %w", err)
	}
	st := s.stats(false)
	slog.Info("sensor bus source stopped", "readings", st.Readings, "rejected", st.Rejected)
	return nil
}

// Stats returns source statistics
func (s *BusSource) Stats() Stats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	return s.stats(running)
}
