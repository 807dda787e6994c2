// Package loop runs the fixed-rate behavior control loop.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jf994/miro-behavior/internal/behavior"
	"github.com/jf994/miro-behavior/internal/metrics"
	"github.com/jf994/miro-behavior/internal/types"
)

// DefaultRate is used when no rate is configured
const DefaultRate = 200

// MaxRate is the highest rate with a non-zero tick period
const MaxRate = int(time.Second)

// Phase is the loop lifecycle state
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseRunning     Phase = "running"
	PhaseTerminating Phase = "terminating"
	PhaseStopped     Phase = "stopped"
)

// Publisher delivers one actuator command for mood
type Publisher interface {
	Publish(mood string, cmd types.ActuatorCommand) error
}

// Snapshotter provides the latest sensor snapshot (touch.Cache)
type Snapshotter interface {
	Load() types.Snapshot
}

// Config contains controller settings
type Config struct {
	Rate    int // ticks per second; DefaultRate when 0
	Metrics *metrics.Metrics
}

// Controller runs one behavior at a fixed rate and publishes the safe pose
// when stopped.
type Controller struct {
	period  time.Duration
	rate    int
	sensors Snapshotter
	pub     Publisher
	metrics *metrics.Metrics

	behavior atomic.Pointer[behavior.Behavior]

	mu        sync.RWMutex
	phase     Phase
	lastState behavior.State
	lastTick  time.Time
	moods     []string // every mood a command was sent for, in first-use order

	ticks      atomic.Uint64
	failures   atomic.Uint64
	suppressed atomic.Uint64
	errLog     *rate.Limiter
}

// Stats contains controller statistics
type Stats struct {
	Phase         Phase
	Mood          string
	State         behavior.State
	Rate          int
	Ticks         uint64
	PublishErrors uint64
	LastTick      time.Time
}

// New creates a controller. b must not be nil.
func New(cfg Config, b *behavior.Behavior, sensors Snapshotter, pub Publisher) (*Controller, error) {
	if b == nil {
		return nil, fmt.Errorf("behavior is required")
	}
	if pub == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	r := cfg.Rate
	if r == 0 {
		r = DefaultRate
	}
	if r < 0 || r > MaxRate {
		return nil, fmt.Errorf("rate must be in 1..%d, got %d", MaxRate, r)
	}

	c := &Controller{
		period:  time.Second / time.Duration(r),
		rate:    r,
		sensors: sensors,
		pub:     pub,
		metrics: cfg.Metrics,
		phase:   PhaseIdle,
		errLog:  rate.NewLimiter(rate.Every(time.Second), 1),
	}
	c.behavior.Store(b)
	return c, nil
}

// SetBehavior switches the mood. It takes effect on the next tick.
func (c *Controller) SetBehavior(b *behavior.Behavior) {
	if b == nil {
		return
	}
	prev := c.behavior.Swap(b)
	slog.Info("behavior switched", "from", prev.Mood, "to", b.Mood)
}

// Behavior returns the active behavior
func (c *Controller) Behavior() *behavior.Behavior {
	return c.behavior.Load()
}

// Run ticks until ctx is cancelled, then publishes the safe pose once.
// Cancellation is only observed between ticks; a tick in progress always
// completes its publish. A failed safe-pose publish is returned as a
// *types.ShutdownError.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseIdle {
		phase := c.phase
		c.mu.Unlock()
		return fmt.Errorf("controller cannot run from phase %s", phase)
	}
	c.phase = PhaseRunning
	c.mu.Unlock()
	c.metrics.SetRunning(true)

	slog.Info("control loop running",
		"mood", c.Behavior().Mood,
		"rate_hz", c.rate,
		"period", c.period,
	)

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()

	for ctx.Err() == nil {
		c.tick()

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	return c.terminate()
}

// tick runs one select -> build -> publish cycle
func (c *Controller) tick() {
	start := time.Now()
	b := c.Behavior()

	var flags types.SensorFlags
	if b.Selector.Reactive() && c.sensors != nil {
		flags = c.sensors.Load().Flags
	}
	state, cmd := b.Decide(flags)

	err := c.pub.Publish(b.Mood, cmd)
	if err != nil {
		c.failures.Add(1)
		c.logPublishError(b.Mood, err)
	}

	c.ticks.Add(1)
	c.mu.Lock()
	changed := state != c.lastState
	c.lastState = state
	c.lastTick = start
	c.addMood(b.Mood)
	c.mu.Unlock()

	if changed {
		slog.Debug("behavior state changed", "mood", b.Mood, "state", state)
		c.metrics.SetState(b.Mood, string(state))
	}
	c.metrics.ObserveTick(time.Since(start).Seconds(), err != nil)
}

// terminate publishes one safe pose per mood the loop commanded, the
// current mood last, so no command topic is left holding an expressive pose.
func (c *Controller) terminate() error {
	c.mu.Lock()
	c.phase = PhaseTerminating
	current := c.Behavior().Mood
	moods := make([]string, 0, len(c.moods)+1)
	for _, m := range c.moods {
		if m != current {
			moods = append(moods, m)
		}
	}
	moods = append(moods, current)
	c.mu.Unlock()

	slog.Info("control loop terminating, publishing safe pose",
		"mood", current,
		"moods", moods,
		"ticks", c.ticks.Load(),
	)

	var errs []error
	for _, mood := range moods {
		if err := c.pub.Publish(mood, behavior.SafePose()); err != nil {
			errs = append(errs, fmt.Errorf("mood %s: %w", mood, err))
		}
	}

	c.mu.Lock()
	c.phase = PhaseStopped
	c.mu.Unlock()
	c.metrics.SetRunning(false)

	if len(errs) > 0 {
		return &types.ShutdownError{Err: errors.Join(errs...)}
	}
	slog.Info("safe pose published", "moods", moods)
	return nil
}

// addMood records mood once; c.mu must be held
func (c *Controller) addMood(mood string) {
	for _, m := range c.moods {
		if m == mood {
			return
		}
	}
	c.moods = append(c.moods, mood)
}

// logPublishError logs at most once per second, reporting how many
// errors were skipped in between.
func (c *Controller) logPublishError(mood string, err error) {
	if !c.errLog.Allow() {
		c.suppressed.Add(1)
		return
	}
	attrs := []any{
		"mood", mood,
		"error", err,
		"suppressed", c.suppressed.Swap(0),
	}
	var pubErr *types.PublishError
	if errors.As(err, &pubErr) {
		attrs = append(attrs, "topic", pubErr.Topic)
	}
	slog.Warn("actuator command publish failed, continuing", attrs...)
}

// Stats returns controller statistics
func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Stats{
		Phase:         c.phase,
		Mood:          c.Behavior().Mood,
		State:         c.lastState,
		Rate:          c.rate,
		Ticks:         c.ticks.Load(),
		PublishErrors: c.failures.Load(),
		LastTick:      c.lastTick,
	}
}

// Phase returns the lifecycle state
func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}
