package core

import (
	"log/slog"
	"time"

	"github.com/jf994/miro-behavior/internal/behavior"
)

// getStatus returns the current service status
func (s *Service) getStatus() map[string]interface{} {
	s.mu.RLock()
	started, running := s.started, s.isRunning
	s.mu.RUnlock()

	loopStats := s.controller.Stats()
	sourceStats := s.source.Stats()
	busStats := s.bus.Stats()
	snap := s.cache.Load()

	return map[string]interface{}{
		"instance_id": s.cfg.InstanceID,
		"run_id":      s.runID,
		"uptime_s":    time.Since(started).Seconds(),
		"running":     running,
		"loop": map[string]interface{}{
			"phase":          loopStats.Phase,
			"mood":           loopStats.Mood,
			"state":          loopStats.State,
			"rate_hz":        loopStats.Rate,
			"ticks":          loopStats.Ticks,
			"publish_errors": loopStats.PublishErrors,
			"command_topic":  s.publisher.Topic(loopStats.Mood),
		},
		"sensors": map[string]interface{}{
			"source":       sourceStats.Source,
			"running":      sourceStats.Running,
			"readings":     sourceStats.Readings,
			"rejected":     sourceStats.Rejected,
			"last_reading": sourceStats.LastReading,
			"seq":          snap.Seq,
			"touch_head":   snap.Flags.Head(),
			"touch_body":   snap.Flags.Body(),
		},
		"bus": map[string]interface{}{
			"transport": s.cfg.Transport,
			"codec":     s.codec.Name(),
			"connected": busStats.Connected,
			"published": busStats.Published,
			"received":  busStats.Received,
			"errors":    busStats.Errors,
		},
	}
}

// setMood swaps the running behavior
func (s *Service) setMood(mood string) error {
	b, err := behavior.ForMood(mood)
	if err != nil {
		return err
	}
	if !b.Selector.Reactive() {
		slog.Debug("mood ignores sensors", "mood", mood)
	} else if s.source.Name() == "none" {
		slog.Warn("reactive mood selected without sensor source, touch flags stay untouched", "mood", mood)
	}
	warnIssues(b)
	s.controller.SetBehavior(b)
	return nil
}
