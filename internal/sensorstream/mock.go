package sensorstream

import (
	"context"
	"log/slog"
	"time"

	"github.com/jf994/miro-behavior/internal/metrics"
	"github.com/jf994/miro-behavior/internal/types"
)

// MockScript is the default demo sequence: untouched, head stroke,
// untouched, body stroke.
var MockScript = []types.RawReading{
	{TouchHead: types.ZoneBytes{0, 0, 0, 0}, TouchBody: types.ZoneBytes{0, 0, 0, 0}},
	{TouchHead: types.ZoneBytes{0, 1, 1, 0}, TouchBody: types.ZoneBytes{0, 0, 0, 0}},
	{TouchHead: types.ZoneBytes{0, 0, 0, 0}, TouchBody: types.ZoneBytes{0, 0, 0, 0}},
	{TouchHead: types.ZoneBytes{0, 0, 0, 0}, TouchBody: types.ZoneBytes{1, 0, 0, 1}},
}

// MockSource replays a script of readings in a loop, one per interval
type MockSource struct {
	interval time.Duration
	script   []types.RawReading

	*ingester
	lc lifecycle
}

// NewMockSource creates a mock source. An empty script uses MockScript.
func NewMockSource(interval time.Duration, script []types.RawReading, sink Sink, m *metrics.Metrics) *MockSource {
	if len(script) == 0 {
		script = MockScript
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &MockSource{
		interval: interval,
		script:   script,
		ingester: newIngester("mock", sink, m),
	}
}

// Name returns the source name
func (s *MockSource) Name() string { return "mock" }

// Start begins replaying the script
func (s *MockSource) Start(ctx context.Context) error {
	if err := s.lc.start(ctx, "mock", s.replay); err != nil {
		return err
	}
	slog.Info("mock sensor source starting", "interval", s.interval, "steps", len(s.script))
	return nil
}

func (s *MockSource) replay(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	step := 0
	for {
		_ = s.ingest(s.script[step])
		step = (step + 1) % len(s.script)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop stops the replay and waits for the goroutine
func (s *MockSource) Stop() error {
	if s.lc.stop() {
		slog.Info("mock sensor source stopped", "readings", s.readings.Load())
	}
	return nil
}

// Stats returns source statistics
func (s *MockSource) Stats() Stats {
	return s.stats(s.lc.isRunning())
}
