package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jf994/miro-behavior/internal/behavior"
	"github.com/jf994/miro-behavior/internal/config"
	"github.com/jf994/miro-behavior/internal/control"
	"github.com/jf994/miro-behavior/internal/loop"
	"github.com/jf994/miro-behavior/internal/metrics"
	"github.com/jf994/miro-behavior/internal/sensorstream"
	"github.com/jf994/miro-behavior/internal/touch"
	"github.com/jf994/miro-behavior/internal/transport"
)

const beaconInterval = 10 * time.Second

// Service is the main behavior controller orchestrator
type Service struct {
	cfg   *config.Config
	runID string

	// Core components
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	cache      *touch.Cache
	bus        transport.Bus
	codec      transport.Codec
	publisher  *transport.CommandPublisher
	controller *loop.Controller
	source     sensorstream.Source
	control    *control.Handler
	health     *http.Server

	// Lifecycle management
	started    time.Time
	mu         sync.RWMutex
	wg         sync.WaitGroup
	isRunning  bool
	cancelCtx  context.CancelFunc // For control plane shutdown command
	loopCancel context.CancelFunc
	loopDone   chan struct{}
	loopErr    error
}

// NewService wires every component from a validated configuration
func NewService(cfg *config.Config) (*Service, error) {
	b, err := behavior.ForMood(cfg.Mood)
	if err != nil {
		return nil, err
	}

	codec, err := transport.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	bus, err := newBus(cfg, runID)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	topics := cfg.ActiveTopics()
	cache := touch.NewCache()
	publisher := transport.NewCommandPublisher(bus, codec, topics.Command, cfg.QoSFor("command"))

	controller, err := loop.New(loop.Config{Rate: cfg.Rate, Metrics: m}, b, cache, publisher)
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}

	s := &Service{
		cfg:        cfg,
		runID:      runID,
		registry:   registry,
		metrics:    m,
		cache:      cache,
		bus:        bus,
		codec:      codec,
		publisher:  publisher,
		controller: controller,
	}

	s.source, err = s.newSource()
	if err != nil {
		return nil, fmt.Errorf("failed to create sensor source: %w", err)
	}

	s.control = control.NewHandler(bus, control.Options{
		Topic:         topics.Control,
		ResponseTopic: responseTopic(cfg),
		QoS:           cfg.QoSFor("control"),
	}, control.CommandCallbacks{
		OnGetStatus: s.getStatus,
		OnSetMood:   s.setMood,
		OnGetMoods:  behavior.Moods,
		OnShutdown:  s.shutdownViaControl,
	})

	slog.Info("service configured",
		"instance_id", cfg.InstanceID,
		"run_id", runID,
		"mood", cfg.Mood,
		"transport", cfg.Transport,
		"codec", cfg.Codec,
		"sensors", s.source.Name(),
		"command_topic", publisher.Topic(cfg.Mood),
	)
	warnIssues(b)

	return s, nil
}

func newBus(cfg *config.Config, runID string) (transport.Bus, error) {
	clientID := fmt.Sprintf("miro-behavior-%s-%s", cfg.InstanceID, runID[:8])
	switch cfg.Transport {
	case config.TransportMQTT:
		return transport.NewMQTTBus(cfg.MQTT.Broker, clientID), nil
	case config.TransportNATS:
		return transport.NewNATSBus(cfg.NATS.URL, clientID), nil
	case config.TransportMemory:
		return transport.NewMemoryBus(), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

func (s *Service) newSource() (sensorstream.Source, error) {
	sc := s.cfg.Sensors
	switch sc.Source {
	case config.SourceBus:
		return sensorstream.NewBusSource(s.bus, s.codec, s.cfg.ActiveTopics().Sensors,
			s.cfg.QoSFor("sensors"), s.cache, s.metrics), nil
	case config.SourceGPIO:
		return sensorstream.NewGPIOSource(sc.GPIO.HeadPins, sc.GPIO.BodyPins, sc.GPIO.PollHz, s.cache, s.metrics)
	case config.SourceMock:
		return sensorstream.NewMockSource(time.Duration(sc.Mock.IntervalMS)*time.Millisecond, nil, s.cache, s.metrics), nil
	case config.SourceNone:
		return sensorstream.None{}, nil
	default:
		return nil, fmt.Errorf("unknown source %q", sc.Source)
	}
}

// responseTopic derives the control response topic from the control topic
func responseTopic(cfg *config.Config) string {
	if cfg.Transport == config.TransportNATS {
		return cfg.NATS.Subjects.Control + ".response"
	}
	return cfg.MQTT.Topics.Control + "/response"
}

func warnIssues(b *behavior.Behavior) {
	for state, issues := range b.Issues() {
		slog.Warn("command table value outside actuator range, publishing as-is",
			"mood", b.Mood,
			"state", state,
			"issues", issues,
		)
	}
}

// Run starts the service and blocks until ctx is cancelled or a shutdown
// command arrives. Shutdown must be called afterwards.
func (s *Service) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("service is already running")
	}
	s.isRunning = true
	s.started = time.Now()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.cancelCtx = cancel
	s.mu.Unlock()

	slog.Info("miro behavior service starting", "instance_id", s.cfg.InstanceID, "run_id", s.runID)

	if err := s.bus.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect %s: %w", s.cfg.Transport, err)
	}

	if err := s.source.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sensor source: %w", err)
	}

	if err := s.control.Start(ctx); err != nil {
		return fmt.Errorf("failed to start control plane: %w", err)
	}

	// The loop gets its own context so that Shutdown decides when the
	// safe pose goes out.
	loopCtx, loopCancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.loopCancel = loopCancel
	s.loopDone = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		err := s.controller.Run(loopCtx)
		s.mu.Lock()
		s.loopErr = err
		s.mu.Unlock()
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runBeacon(ctx, beaconInterval)
	}()

	slog.Info("miro behavior service running", "mood", s.controller.Behavior().Mood, "rate_hz", s.cfg.Rate)

	// Wait for context cancellation
	<-ctx.Done()

	slog.Info("miro behavior service run loop exiting")
	return nil
}

// Shutdown performs graceful shutdown of all components. It returns a
// *types.ShutdownError when the safe pose could not be published.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancelCtx
	loopCancel, loopDone := s.loopCancel, s.loopDone
	health := s.health
	s.mu.Unlock()

	slog.Info("shutting down miro behavior service")

	// 1. Stop sensor input
	if err := s.source.Stop(); err != nil {
		slog.Error("failed to stop sensor source", "error", err)
	}

	// 2. Stop control plane
	if err := s.control.Stop(); err != nil {
		slog.Error("failed to stop control handler", "error", err)
	}

	// 3. Let the loop finish its tick and publish the safe pose
	var shutdownErr error
	if loopCancel != nil {
		loopCancel()
		select {
		case <-loopDone:
			s.mu.RLock()
			shutdownErr = s.loopErr
			s.mu.RUnlock()
		case <-ctx.Done():
			shutdownErr = fmt.Errorf("control loop did not stop: %w", ctx.Err())
		}
	}

	// 4. Wait for goroutines to finish
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	// 5. Disconnect bus
	if err := s.bus.Disconnect(); err != nil {
		slog.Error("failed to disconnect bus", "error", err)
	}

	// 6. Health server
	if health != nil {
		if err := health.Shutdown(ctx); err != nil {
			slog.Error("failed to stop health server", "error", err)
		}
	}

	s.mu.Lock()
	uptime := time.Since(s.started)
	s.isRunning = false
	s.mu.Unlock()

	slog.Info("miro behavior service shutdown complete",
		"uptime", uptime,
		"ticks", s.controller.Stats().Ticks,
	)

	return shutdownErr
}

// ShutdownTimeout returns the configured graceful shutdown timeout
func (s *Service) ShutdownTimeout() time.Duration {
	return time.Duration(s.cfg.ShutdownTimeoutS) * time.Second
}

// shutdownViaControl ends Run as if the process got a signal
func (s *Service) shutdownViaControl() error {
	s.mu.RLock()
	cancel := s.cancelCtx
	s.mu.RUnlock()

	if cancel == nil {
		return fmt.Errorf("service is not running")
	}
	cancel()
	return nil
}
