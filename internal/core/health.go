package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jf994/miro-behavior/internal/loop"
)

// HealthStatus represents the health state of the service
type HealthStatus struct {
	Status        string `json:"status"` // "healthy", "degraded", "unhealthy"
	InstanceID    string `json:"instance_id"`
	RunID         string `json:"run_id"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Mood          string `json:"mood"`
	State         string `json:"state"`
	LoopPhase     string `json:"loop_phase"`
	Ticks         uint64 `json:"ticks"`
	PublishErrors uint64 `json:"publish_errors"`
	BusConnected  bool   `json:"bus_connected"`
	SensorSource  string `json:"sensor_source"`
	Timestamp     string `json:"timestamp"`
}

// HealthCheck returns the current health status of the service
func (s *Service) HealthCheck() HealthStatus {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	stats := s.controller.Stats()
	status := HealthStatus{
		Status:        "healthy",
		InstanceID:    s.cfg.InstanceID,
		RunID:         s.runID,
		UptimeSeconds: int64(time.Since(started).Seconds()),
		Mood:          stats.Mood,
		State:         string(stats.State),
		LoopPhase:     string(stats.Phase),
		Ticks:         stats.Ticks,
		PublishErrors: stats.PublishErrors,
		BusConnected:  s.bus.Connected(),
		SensorSource:  s.source.Name(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
	}

	// Determine overall health status
	if stats.Phase != loop.PhaseRunning {
		status.Status = "unhealthy"
	} else if !status.BusConnected {
		status.Status = "degraded"
	}

	return status
}

// LivenessHandler handles /health endpoint (simple liveness check)
func (s *Service) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "alive",
		"uptime": int64(time.Since(started).Seconds()),
	})
}

// ReadinessHandler handles /readiness endpoint. Returns 200 only while the
// loop is running and the bus is connected.
func (s *Service) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := s.HealthCheck()

	statusCode := http.StatusOK
	if health.Status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(health)
}

// Handler returns the health mux: /health, /readiness and /metrics
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.LivenessHandler)
	mux.HandleFunc("/readiness", s.ReadinessHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

// StartHealthServer starts the HTTP health check server on the given port
// This runs in a separate goroutine and does not block
func (s *Service) StartHealthServer(port string) error {
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.mu.Lock()
	s.health = server
	s.mu.Unlock()

	slog.Info("starting health check server",
		"port", port,
		"endpoints", []string{"/health", "/readiness", "/metrics"},
	)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health check server failed", "error", err)
		}
	}()

	return nil
}

// runBeacon publishes the health status on the health topic until ctx ends
func (s *Service) runBeacon(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	topic := s.cfg.ActiveTopics().Health
	qos := s.cfg.QoSFor("health")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload, err := json.Marshal(s.HealthCheck())
			if err != nil {
				slog.Error("failed to marshal health beacon", "error", err)
				continue
			}
			if err := s.bus.Publish(topic, payload, qos); err != nil {
				slog.Warn("failed to publish health beacon", "topic", topic, "error", err)
				continue
			}
			slog.Debug("health beacon sent", "topic", topic)
		}
	}
}
