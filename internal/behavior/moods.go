package behavior

import (
	"fmt"
	"sort"

	"github.com/jf994/miro-behavior/internal/types"
)

const (
	MoodGood  = "good"
	MoodSad   = "sad"
	MoodSleep = "sleep"
)

// GoodMood is the cheerful mood. Head touch always wins over body touch, no
// matter how many body zones are active.
func GoodMood() *Behavior {
	sel := Selector{
		Rules: []Rule{
			{Name: "head", When: AnyHead, State: HeadTouched},
			{Name: "body", When: AnyBody, State: BodyTouched},
		},
		Fallback: Neutral,
	}
	table := Table{
		HeadTouched: {
			EyelidClosure:   0.4,
			BodyConfig:      [types.JointCount]float64{0.2, 0.5, 0.2, -0.5},
			BodyConfigSpeed: defaultSpeeds(),
			Tail:            0.0,
			EarRotate:       [2]float64{0.0, 0.0},
			LightsRaw:       types.RGB(255, 64, 64),
			SoundIndexP1:    1,
		},
		BodyTouched: {
			EyelidClosure:   0.1,
			BodyConfig:      [types.JointCount]float64{0.0, 0.29, -0.6, -0.26},
			BodyConfigSpeed: defaultSpeeds(),
			Tail:            0.0,
			EarRotate:       [2]float64{0.5, 0.5},
			LightsRaw:       types.RGB(255, 129, 0),
			SoundIndexP1:    1,
		},
		Neutral: {
			EyelidClosure:   0.0,
			BodyConfig:      [types.JointCount]float64{0.0, 0.25, 0.0, -0.25},
			BodyConfigSpeed: defaultSpeeds(),
			// Outside the normalized tail range; reported by Check at startup.
			Tail:         68,
			EarRotate:    [2]float64{0.0, 0.0},
			LightsRaw:    types.RGB(0, 0, 0),
			SoundIndexP1: 1,
		},
	}
	return mustNew(MoodGood, sel, table)
}

// SadMood droops the head and slowly turns in place. It ignores the sensors.
func SadMood() *Behavior {
	table := Table{
		Sad: {
			EyelidClosure:   0.3,
			BodyConfig:      [types.JointCount]float64{0.0, 1.0, 0.2, 0.1},
			BodyConfigSpeed: defaultSpeeds(),
			Tail:            -1.0,
			EarRotate:       [2]float64{1.0, 1.0},
			LightsRaw:       types.RGB(0, 0, 255),
			BodyVel:         types.BodyVel{LinearX: 0.0, AngularZ: 0.2},
		},
	}
	return mustNew(MoodSad, Constant(Sad), table)
}

// SleepMood closes the eyes with dim white front and rear lights.
// It ignores the sensors.
func SleepMood() *Behavior {
	var lights [types.LightChannels]uint8
	lights[1], lights[2] = 255, 255
	lights[16], lights[17] = 255, 255

	table := Table{
		Asleep: {
			EyelidClosure:   1.0,
			BodyConfig:      [types.JointCount]float64{0.0, 1.2, 0.6, 0.7},
			BodyConfigSpeed: defaultSpeeds(),
			Tail:            -1.0,
			EarRotate:       [2]float64{0.0, 0.0},
			LightsRaw:       lights,
		},
	}
	return mustNew(MoodSleep, Constant(Asleep), table)
}

func mustNew(mood string, sel Selector, table Table) *Behavior {
	b, err := New(mood, sel, table)
	if err != nil {
		panic(err)
	}
	return b
}

var registry = map[string]func() *Behavior{
	MoodGood:  GoodMood,
	MoodSad:   SadMood,
	MoodSleep: SleepMood,
}

// ForMood returns the behavior registered under name
func ForMood(name string) (*Behavior, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown mood %q (known: %v)", name, Moods())
	}
	return ctor(), nil
}

// Moods returns the registered mood names, sorted
func Moods() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
