// Package sensorstream feeds touch readings into the sensor cache.
//
// A Source runs its own goroutine (a bus subscription, a GPIO poller or a
// scripted mock) and is the single writer of the cache.
package sensorstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jf994/miro-behavior/internal/metrics"
	"github.com/jf994/miro-behavior/internal/types"
)

// Sink receives raw readings (touch.Cache)
type Sink interface {
	Update(r types.RawReading) error
}

// Source produces touch readings until stopped
type Source interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Stats() Stats
}

// Stats contains source statistics
type Stats struct {
	Source      string
	Running     bool
	Readings    uint64
	Rejected    uint64
	LastReading time.Time
}

// ingester is shared by all sources: it forwards readings to the sink,
// counts them and throttles decode warnings.
type ingester struct {
	name    string
	sink    Sink
	metrics *metrics.Metrics

	readings   atomic.Uint64
	rejected   atomic.Uint64
	suppressed atomic.Uint64
	errLog     *rate.Limiter

	mu   sync.RWMutex
	last time.Time
}

func newIngester(name string, sink Sink, m *metrics.Metrics) *ingester {
	return &ingester{
		name:    name,
		sink:    sink,
		metrics: m,
		errLog:  rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (in *ingester) ingest(r types.RawReading) error {
	err := in.sink.Update(r)
	in.metrics.ObserveReading(err)
	if err != nil {
		in.reject(err)
		return err
	}

	in.readings.Add(1)
	in.mu.Lock()
	in.last = time.Now()
	in.mu.Unlock()
	return nil
}

// reject counts a reading that never reached the cache
func (in *ingester) reject(err error) {
	in.rejected.Add(1)
	if !in.errLog.Allow() {
		in.suppressed.Add(1)
		return
	}
	slog.Warn("sensor reading rejected, keeping previous snapshot",
		"source", in.name,
		"error", err,
		"suppressed", in.suppressed.Swap(0),
	)
}

func (in *ingester) stats(running bool) Stats {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return Stats{
		Source:      in.name,
		Running:     running,
		Readings:    in.readings.Load(),
		Rejected:    in.rejected.Load(),
		LastReading: in.last,
	}
}

// None is the source of non-reactive moods: it never writes the cache
type None struct{}

func (None) Name() string                    { return "none" }
func (None) Start(ctx context.Context) error { return nil }
func (None) Stop() error                     { return nil }
func (None) Stats() Stats                    { return Stats{Source: "none"} }

// lifecycle guards Start/Stop of goroutine based sources
type lifecycle struct {
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func (l *lifecycle) start(ctx context.Context, name string, run func(ctx context.Context)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return fmt.Errorf("%s source already running", name)
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.running = true

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		run(ctx)
	}()
	return nil
}

func (l *lifecycle) stop() bool {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return false
	}
	l.running = false
	cancel := l.cancel
	l.mu.Unlock()

	cancel()
	l.wg.Wait()
	return true
}

func (l *lifecycle) isRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
