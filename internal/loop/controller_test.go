package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jf994/miro-behavior/internal/behavior"
	"github.com/jf994/miro-behavior/internal/touch"
	"github.com/jf994/miro-behavior/internal/types"
)

type published struct {
	mood string
	cmd  types.ActuatorCommand
}

// recorder is a Publisher that keeps every command and can be told to fail
type recorder struct {
	mu      sync.Mutex
	records []published
	failFn  func(n int, cmd types.ActuatorCommand) error
	onFirst chan struct{} // closed after the first publish starts
	block   chan struct{} // first publish waits on it when non-nil
}

func (r *recorder) Publish(mood string, cmd types.ActuatorCommand) error {
	r.mu.Lock()
	n := len(r.records)
	r.records = append(r.records, published{mood: mood, cmd: cmd})
	failFn := r.failFn
	r.mu.Unlock()

	if n == 0 && r.onFirst != nil {
		close(r.onFirst)
	}
	if n == 0 && r.block != nil {
		<-r.block
	}
	if failFn != nil {
		return failFn(n, cmd)
	}
	return nil
}

func (r *recorder) all() []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]published, len(r.records))
	copy(out, r.records)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Timeout waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func runAsync(ctx context.Context, c *Controller) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()
	return errCh
}

func awaitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestNewValidation(t *testing.T) {
	pub := &recorder{}
	if _, err := New(Config{}, nil, nil, pub); err == nil {
		t.Error("Expected error for nil behavior")
	}
	if _, err := New(Config{}, behavior.SadMood(), nil, nil); err == nil {
		t.Error("Expected error for nil publisher")
	}
	if _, err := New(Config{Rate: -5}, behavior.SadMood(), nil, pub); err == nil {
		t.Error("Expected error for negative rate")
	}
	if _, err := New(Config{Rate: MaxRate + 1}, behavior.SadMood(), nil, pub); err == nil {
		t.Error("Expected error for rate with zero tick period")
	}
	if c, err := New(Config{Rate: MaxRate}, behavior.SadMood(), nil, pub); err != nil || c.period <= 0 {
		t.Errorf("Expected MaxRate accepted with positive period, got err=%v", err)
	}

	c, err := New(Config{}, behavior.SadMood(), nil, pub)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if c.Stats().Rate != DefaultRate {
		t.Errorf("Expected default rate %d, got %d", DefaultRate, c.Stats().Rate)
	}
}

// TestSafePoseIsLast verifies the final command is the safe pose whatever
// pose was active at shutdown.
func TestSafePoseIsLast(t *testing.T) {
	for _, b := range []*behavior.Behavior{behavior.GoodMood(), behavior.SadMood(), behavior.SleepMood()} {
		t.Run(b.Mood, func(t *testing.T) {
			cache := touch.NewCache()
			cache.Store(types.NewSensorFlags(types.ZoneFlags{true}, types.ZoneFlags{}))
			pub := &recorder{}

			c, err := New(Config{Rate: 1000}, b, cache, pub)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			errCh := runAsync(ctx, c)
			waitFor(t, func() bool { return len(pub.all()) >= 5 })
			cancel()

			if err := awaitRun(t, errCh); err != nil {
				t.Fatalf("Run returned error: %v", err)
			}

			records := pub.all()
			last := records[len(records)-1]
			if last.cmd != behavior.SafePose() {
				t.Errorf("Last command is not the safe pose: %+v", last.cmd)
			}
			if last.mood != b.Mood {
				t.Errorf("Safe pose published for mood %q, want %q", last.mood, b.Mood)
			}
			for _, r := range records[:len(records)-1] {
				if r.cmd == behavior.SafePose() {
					t.Fatal("Safe pose published before termination")
				}
			}
			if c.Phase() != PhaseStopped {
				t.Errorf("Expected phase %s, got %s", PhaseStopped, c.Phase())
			}
		})
	}
}

func TestTicksFollowSensors(t *testing.T) {
	cache := touch.NewCache()
	pub := &recorder{}
	c, err := New(Config{Rate: 1000}, behavior.GoodMood(), cache, pub)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := runAsync(ctx, c)

	waitFor(t, func() bool { return c.Stats().State == behavior.Neutral })

	if err := cache.Update(types.RawReading{
		TouchHead: types.ZoneBytes{0, 0, 0, 0},
		TouchBody: types.ZoneBytes{0, 0, 1, 0},
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	waitFor(t, func() bool { return c.Stats().State == behavior.BodyTouched })

	cancel()
	if err := awaitRun(t, errCh); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	want := behavior.GoodMood().Table.Build(behavior.BodyTouched)
	found := false
	for _, r := range pub.all() {
		if r.cmd == want {
			found = true
			break
		}
	}
	if !found {
		t.Error("Body touched command was never published")
	}
}

// TestPublishFailureDoesNotStopLoop verifies failed ticks are counted and
// the loop keeps going.
func TestPublishFailureDoesNotStopLoop(t *testing.T) {
	pub := &recorder{
		failFn: func(n int, cmd types.ActuatorCommand) error {
			if cmd == behavior.SafePose() {
				return nil
			}
			return &types.PublishError{Topic: "/miro_sad", Err: errors.New("broker down")}
		},
	}
	c, err := New(Config{Rate: 1000}, behavior.SadMood(), nil, pub)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runAsync(ctx, c)
	waitFor(t, func() bool { return c.Stats().PublishErrors >= 10 })
	cancel()

	if err := awaitRun(t, errCh); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	stats := c.Stats()
	if stats.Ticks != stats.PublishErrors {
		t.Errorf("Expected every tick to fail: %d ticks, %d errors", stats.Ticks, stats.PublishErrors)
	}
}

func TestShutdownPublishFailure(t *testing.T) {
	boom := errors.New("connection closed")
	pub := &recorder{
		failFn: func(n int, cmd types.ActuatorCommand) error {
			if cmd == behavior.SafePose() {
				return boom
			}
			return nil
		},
	}
	c, err := New(Config{Rate: 1000}, behavior.SleepMood(), nil, pub)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runAsync(ctx, c)
	waitFor(t, func() bool { return c.Stats().Ticks > 0 })
	cancel()

	err = awaitRun(t, errCh)
	var shutErr *types.ShutdownError
	if !errors.As(err, &shutErr) {
		t.Fatalf("Expected ShutdownError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("ShutdownError should wrap cause, got %v", err)
	}
	if c.Phase() != PhaseStopped {
		t.Errorf("Expected phase %s, got %s", PhaseStopped, c.Phase())
	}
}

// TestShutdownMidTick covers a shutdown arriving while a publish is in
// flight: that publish completes, the safe pose follows, nothing else.
func TestShutdownMidTick(t *testing.T) {
	pub := &recorder{
		onFirst: make(chan struct{}),
		block:   make(chan struct{}),
	}
	c, err := New(Config{Rate: 1000}, behavior.SadMood(), nil, pub)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runAsync(ctx, c)

	<-pub.onFirst
	cancel()
	close(pub.block)

	if err := awaitRun(t, errCh); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	records := pub.all()
	if len(records) != 2 {
		t.Fatalf("Expected in-flight command plus safe pose, got %d commands", len(records))
	}
	if records[0].cmd != behavior.SadMood().Table.Build(behavior.Sad) {
		t.Errorf("First command is not the sad pose: %+v", records[0].cmd)
	}
	if records[1].cmd != behavior.SafePose() {
		t.Errorf("Second command is not the safe pose: %+v", records[1].cmd)
	}
	if c.Stats().Ticks != 1 {
		t.Errorf("Expected 1 tick, got %d", c.Stats().Ticks)
	}
}

func TestCancelledBeforeRun(t *testing.T) {
	pub := &recorder{}
	c, err := New(Config{Rate: 100}, behavior.GoodMood(), touch.NewCache(), pub)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	records := pub.all()
	if len(records) != 1 || records[0].cmd != behavior.SafePose() {
		t.Errorf("Expected only the safe pose, got %+v", records)
	}
}

func TestRunTwice(t *testing.T) {
	c, err := New(Config{Rate: 100}, behavior.SadMood(), nil, &recorder{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if err := c.Run(context.Background()); err == nil {
		t.Error("Expected error when running a stopped controller")
	}
}

func TestSetBehavior(t *testing.T) {
	pub := &recorder{}
	c, err := New(Config{Rate: 1000}, behavior.SadMood(), touch.NewCache(), pub)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runAsync(ctx, c)
	waitFor(t, func() bool { return c.Stats().State == behavior.Sad })

	c.SetBehavior(behavior.SleepMood())
	waitFor(t, func() bool { return c.Stats().State == behavior.Asleep })
	cancel()

	if err := awaitRun(t, errCh); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	records := pub.all()
	if last := records[len(records)-1]; last.mood != behavior.MoodSleep {
		t.Errorf("Safe pose should use the current mood, got %q", last.mood)
	}
}

// TestSafePoseOnEveryCommandedMood switches moods at runtime and checks
// each command topic that was used gets its own safe pose.
func TestSafePoseOnEveryCommandedMood(t *testing.T) {
	pub := &recorder{}
	c, err := New(Config{Rate: 1000}, behavior.SleepMood(), nil, pub)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runAsync(ctx, c)
	waitFor(t, func() bool { return c.Stats().State == behavior.Asleep })

	c.SetBehavior(behavior.SadMood())
	waitFor(t, func() bool { return c.Stats().State == behavior.Sad })
	cancel()

	if err := awaitRun(t, errCh); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	records := pub.all()
	if len(records) < 2 {
		t.Fatalf("Expected at least 2 commands, got %d", len(records))
	}
	tail := records[len(records)-2:]
	if tail[0].mood != behavior.MoodSleep || tail[0].cmd != behavior.SafePose() {
		t.Errorf("Expected safe pose on sleep first, got %s %+v", tail[0].mood, tail[0].cmd)
	}
	if tail[1].mood != behavior.MoodSad || tail[1].cmd != behavior.SafePose() {
		t.Errorf("Expected safe pose on sad last, got %s %+v", tail[1].mood, tail[1].cmd)
	}

	// A failed safe pose does not stop the others and is reported
	boom := errors.New("broker gone")
	var failSafe atomic.Bool
	pub2 := &recorder{
		failFn: func(n int, cmd types.ActuatorCommand) error {
			if failSafe.Load() && cmd == behavior.SafePose() {
				return boom
			}
			return nil
		},
	}
	c2, err := New(Config{Rate: 1000}, behavior.SleepMood(), nil, pub2)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx2, cancel2 := context.WithCancel(context.Background())
	errCh2 := runAsync(ctx2, c2)
	waitFor(t, func() bool { return c2.Stats().State == behavior.Asleep })
	c2.SetBehavior(behavior.SadMood())
	waitFor(t, func() bool { return c2.Stats().State == behavior.Sad })
	failSafe.Store(true)
	cancel2()

	err = awaitRun(t, errCh2)
	var shutErr *types.ShutdownError
	if !errors.As(err, &shutErr) || !errors.Is(err, boom) {
		t.Fatalf("Expected ShutdownError wrapping %v, got %v", boom, err)
	}
	safe := 0
	for _, r := range pub2.all() {
		if r.cmd == behavior.SafePose() {
			safe++
		}
	}
	if safe != 2 {
		t.Errorf("Expected 2 safe pose attempts, got %d", safe)
	}
}
