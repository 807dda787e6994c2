package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/jf994/miro-behavior/internal/types"
)

func TestNewCodec(t *testing.T) {
	for _, name := range []string{"", "json", "msgpack"} {
		c, err := NewCodec(name)
		if err != nil {
			t.Fatalf("NewCodec(%q) failed: %v", name, err)
		}
		if name != "" && c.Name() != name {
			t.Errorf("Expected codec %s, got %s", name, c.Name())
		}
	}
	if _, err := NewCodec("xml"); err == nil {
		t.Error("Expected error for unknown codec")
	}
}

func TestMsgpackCommand(t *testing.T) {
	cmd := types.ActuatorCommand{
		EyelidClosure:   0.5,
		BodyConfig:      [4]float64{0, 0.5, 0.2, 0},
		BodyConfigSpeed: [4]float64{0, -1, -1, -1},
		LightsRaw:       types.RGB(255, 0, 0),
		SoundIndexP1:    1,
		BodyVel:         types.BodyVel{AngularZ: 0.2},
	}

	c := MsgpackCodec{}
	data, err := c.Marshal(cmd)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var got types.ActuatorCommand
	if err := c.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got != cmd {
		t.Errorf("Expected %+v, got %+v", cmd, got)
	}
}

func TestCommandPublisherTopic(t *testing.T) {
	bus := NewMemoryBus()
	if err := bus.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	p := NewCommandPublisher(bus, JSONCodec{}, "/miro_{mood}", 0)
	if err := p.Publish("sad", types.ActuatorCommand{BodyVel: types.BodyVel{AngularZ: 0.2}}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	payload, ok := bus.Last("/miro_sad")
	if !ok {
		t.Fatal("Expected payload on /miro_sad")
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Payload is not JSON: %v", err)
	}
	if _, ok := decoded["sound_index_P1"]; !ok {
		t.Errorf("Expected sound_index_P1 field in %s", payload)
	}

	if got := bus.Stats().Published["/miro_sad"]; got != 1 {
		t.Errorf("Expected 1 published, got %d", got)
	}
}

func TestCommandPublisherError(t *testing.T) {
	bus := NewMemoryBus()
	p := NewCommandPublisher(bus, JSONCodec{}, "/miro_{mood}", 0)

	// Not connected
	err := p.Publish("good", types.ActuatorCommand{})
	var pubErr *types.PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("Expected PublishError, got %v", err)
	}
	if pubErr.Topic != "/miro_good" {
		t.Errorf("Expected topic /miro_good, got %s", pubErr.Topic)
	}

	_ = bus.Connect(context.Background())
	boom := errors.New("broker gone")
	bus.FailWith(boom)
	if err := p.Publish("good", types.ActuatorCommand{}); !errors.Is(err, boom) {
		t.Errorf("Expected wrapped broker error, got %v", err)
	}
	if bus.Stats().Errors != 2 {
		t.Errorf("Expected 2 errors, got %d", bus.Stats().Errors)
	}
}

func TestMemoryBusDelivery(t *testing.T) {
	bus := NewMemoryBus()
	_ = bus.Connect(context.Background())

	var got []string
	_ = bus.Subscribe("a", 0, func(p []byte) { got = append(got, string(p)) })

	_ = bus.Publish("a", []byte("one"), 0)
	_ = bus.Publish("b", []byte("ignored"), 0)
	if !bus.Inject("a", []byte("two")) {
		t.Error("Expected Inject to find subscriber")
	}

	_ = bus.Unsubscribe("a")
	_ = bus.Publish("a", []byte("three"), 0)
	if bus.Inject("a", []byte("four")) {
		t.Error("Expected Inject to report no subscriber")
	}

	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Errorf("Expected [one two], got %v", got)
	}
	if bus.Stats().Received["a"] != 2 {
		t.Errorf("Expected 2 received, got %d", bus.Stats().Received["a"])
	}
}
