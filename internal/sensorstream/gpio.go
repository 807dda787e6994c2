package sensorstream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jf994/miro-behavior/internal/metrics"
	"github.com/jf994/miro-behavior/internal/types"
)

// pinBank reads the level of a BCM numbered pin. openPins provides the
// hardware implementation; it is chosen by build tags.
type pinBank interface {
	Read(pin int) (bool, error)
}

// GPIOSource polls capacitive touch pads wired to GPIO inputs. A high
// level is reported as an active zone.
type GPIOSource struct {
	headPins []int
	bodyPins []int
	period   time.Duration
	bank     pinBank

	*ingester
	lc lifecycle
}

// NewGPIOSource opens the head and body pins (4 each) for polling at pollHz
func NewGPIOSource(headPins, bodyPins []int, pollHz int, sink Sink, m *metrics.Metrics) (*GPIOSource, error) {
	bank, err := openPins(append(append([]int{}, headPins...), bodyPins...))
	if err != nil {
		return nil, fmt.Errorf("failed to open gpio pins: %w", err)
	}
	return newGPIOSource(headPins, bodyPins, pollHz, bank, sink, m)
}

func newGPIOSource(headPins, bodyPins []int, pollHz int, bank pinBank, sink Sink, m *metrics.Metrics) (*GPIOSource, error) {
	if len(headPins) != types.ZonesPerRegion || len(bodyPins) != types.ZonesPerRegion {
		return nil, fmt.Errorf("gpio needs %d head and %d body pins", types.ZonesPerRegion, types.ZonesPerRegion)
	}
	if pollHz <= 0 {
		return nil, fmt.Errorf("poll_hz must be > 0, got %d", pollHz)
	}
	return &GPIOSource{
		headPins: headPins,
		bodyPins: bodyPins,
		period:   time.Second / time.Duration(pollHz),
		bank:     bank,
		ingester: newIngester("gpio", sink, m),
	}, nil
}

// Name returns the source name
func (s *GPIOSource) Name() string { return "gpio" }

// Start begins polling
func (s *GPIOSource) Start(ctx context.Context) error {
	if err := s.lc.start(ctx, "gpio", s.poll); err != nil {
		return err
	}
	slog.Info("gpio sensor source starting",
		"head_pins", s.headPins,
		"body_pins", s.bodyPins,
		"period", s.period,
	)
	return nil
}

func (s *GPIOSource) poll(ctx context.Context) {
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	for {
		r, err := s.sample()
		if err != nil {
			s.reject(err)
		} else {
			_ = s.ingest(r)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sample reads every pin into one reading, so a snapshot never mixes polls
func (s *GPIOSource) sample() (types.RawReading, error) {
	head, err := s.readZones(s.headPins)
	if err != nil {
		return types.RawReading{}, err
	}
	body, err := s.readZones(s.bodyPins)
	if err != nil {
		return types.RawReading{}, err
	}
	return types.RawReading{TouchHead: head, TouchBody: body}, nil
}

func (s *GPIOSource) readZones(pins []int) (types.ZoneBytes, error) {
	zones := make(types.ZoneBytes, len(pins))
	for i, pin := range pins {
		high, err := s.bank.Read(pin)
		if err != nil {
			return nil, fmt.Errorf("gpio%d: %w", pin, err)
		}
		if high {
			zones[i] = 1
		}
	}
	return zones, nil
}

// Stop stops polling and waits for the goroutine
func (s *GPIOSource) Stop() error {
	if s.lc.stop() {
		st := s.stats(false)
		slog.Info("gpio sensor source stopped", "readings", st.Readings, "rejected", st.Rejected)
	}
	return nil
}

// Stats returns source statistics
func (s *GPIOSource) Stats() Stats {
	return s.stats(s.lc.isRunning())
}
