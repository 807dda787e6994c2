package behavior

import (
	"errors"
	"fmt"

	"github.com/jf994/miro-behavior/internal/types"
)

// ErrIncompleteTable is returned when a selector can pick a state that has
// no command in the table.
var ErrIncompleteTable = errors.New("command table incomplete")

// Table holds one literal command per state
type Table map[State]types.ActuatorCommand

// Build returns the command for s. Tables are checked against their
// selector when a Behavior is created; for an unknown state Build returns
// the safe pose.
func (t Table) Build(s State) types.ActuatorCommand {
	if cmd, ok := t[s]; ok {
		return cmd
	}
	return SafePose()
}

// SafePose is the neutral command published when a controller stops:
// eyes open, lights off, tail and body neutral, ears centered.
func SafePose() types.ActuatorCommand {
	return types.ActuatorCommand{
		EyelidClosure:   0.0,
		BodyConfig:      [types.JointCount]float64{0.0, 0.0, 0.0, 0.0},
		BodyConfigSpeed: defaultSpeeds(),
		Tail:            0.0,
		EarRotate:       [2]float64{0.0, 0.0},
	}
}

// defaultSpeeds keeps the first joint still and lets the platform pick the
// speed of the others.
func defaultSpeeds() [types.JointCount]float64 {
	return [types.JointCount]float64{0.0, types.DefaultSpeed, types.DefaultSpeed, types.DefaultSpeed}
}

// Behavior is one mood: how to pick a state and what each state looks like
type Behavior struct {
	Mood     string
	Selector Selector
	Table    Table
}

// New validates that every selectable state has a command
func New(mood string, sel Selector, table Table) (*Behavior, error) {
	for _, s := range sel.States() {
		if _, ok := table[s]; !ok {
			return nil, fmt.Errorf("mood %q state %q: %w", mood, s, ErrIncompleteTable)
		}
	}
	return &Behavior{Mood: mood, Selector: sel, Table: table}, nil
}

// Decide runs the selector and the builder for one tick
func (b *Behavior) Decide(flags types.SensorFlags) (State, types.ActuatorCommand) {
	s := b.Selector.Select(flags)
	return s, b.Table.Build(s)
}

// Issues reports out-of-range literals per state, for startup warnings
func (b *Behavior) Issues() map[State][]string {
	out := make(map[State][]string)
	for _, s := range b.Selector.States() {
		if issues := b.Table[s].Check(); len(issues) > 0 {
			out[s] = issues
		}
	}
	return out
}
