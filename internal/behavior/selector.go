// Package behavior maps touch state to an expressive pose.
//
// A Behavior pairs a Selector (ordered priority rules over SensorFlags,
// first match wins) with a Table (one complete ActuatorCommand per state).
// Both are plain data: the moods in moods.go are configuration values, not
// code paths.
package behavior

import (
	"github.com/jf994/miro-behavior/internal/types"
)

// State is a discrete expressive mode
type State string

const (
	Neutral     State = "neutral"
	HeadTouched State = "head_touched"
	BodyTouched State = "body_touched"
	Sad         State = "sad"
	Asleep      State = "asleep"
)

// Rule selects State when When reports true
type Rule struct {
	Name  string
	When  func(types.SensorFlags) bool
	State State
}

// Selector evaluates Rules in order and returns the first match, or
// Fallback when none match. A selector without rules is constant.
type Selector struct {
	Rules    []Rule
	Fallback State
}

// Constant returns a selector that ignores the sensors
func Constant(s State) Selector {
	return Selector{Fallback: s}
}

// Select returns the behavior state for flags
func (s Selector) Select(flags types.SensorFlags) State {
	for _, r := range s.Rules {
		if r.When(flags) {
			return r.State
		}
	}
	return s.Fallback
}

// Reactive reports whether the selector reads sensor input at all
func (s Selector) Reactive() bool {
	return len(s.Rules) > 0
}

// States lists every state Select can return, in rule order, fallback last
func (s Selector) States() []State {
	seen := make(map[State]bool)
	var out []State
	for _, r := range s.Rules {
		if !seen[r.State] {
			seen[r.State] = true
			out = append(out, r.State)
		}
	}
	if !seen[s.Fallback] {
		out = append(out, s.Fallback)
	}
	return out
}

// AnyHead matches when at least one head zone is touched
func AnyHead(f types.SensorFlags) bool { return f.AnyHead() }

// AnyBody matches when at least one body zone is touched
func AnyBody(f types.SensorFlags) bool { return f.AnyBody() }
