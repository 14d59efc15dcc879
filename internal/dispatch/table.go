package dispatch

import (
	"fmt"

	"github.com/ayusman/mudra/internal/gesture"
)

// State is the dispatcher state.
type State int

const (
	Idle State = iota
	Pointing
	Pressed
	Dragging
	Scrolling
)

var stateNames = [...]string{
	Idle:      "IDLE",
	Pointing:  "POINTING",
	Pressed:   "PRESSED",
	Dragging:  "DRAGGING",
	Scrolling: "SCROLLING",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// step is one emitted action of a transition. Position and scroll amount are
// filled in at dispatch time.
type step struct {
	kind   Kind
	button Button
	sign   int
}

type key struct {
	from    State
	gesture gesture.Label
}

// Transition describes the result of a stable gesture change.
type Transition struct {
	Next  State
	steps []step
}

var (
	moveStep     = step{kind: Move}
	leftDown     = step{kind: ButtonDown, button: Left}
	leftUp       = step{kind: ButtonUp, button: Left}
	rightDown    = step{kind: ButtonDown, button: Right}
	rightUp      = step{kind: ButtonUp, button: Right}
	scrollUpStep = step{kind: ScrollBy, sign: 1}
	scrollDnStep = step{kind: ScrollBy, sign: -1}
)

// transitions is the complete gesture-change table. Pairs that are absent
// leave the state untouched.
var transitions = map[key]Transition{
	{Idle, gesture.Point}: {Pointing, []step{moveStep}},

	{Pointing, gesture.Click}:       {Pressed, []step{leftDown}},
	{Pointing, gesture.Drag}:        {Dragging, []step{leftDown}},
	{Pointing, gesture.RightClick}:  {Idle, []step{rightDown, rightUp}},
	{Pointing, gesture.DoubleClick}: {Idle, []step{leftDown, leftUp, leftDown, leftUp}},
	{Pointing, gesture.None}:        {Idle, nil},

	{Pressed, gesture.Point}: {Idle, []step{leftUp}},
	{Pressed, gesture.None}:  {Idle, []step{leftUp}},

	{Dragging, gesture.Point}: {Idle, []step{leftUp}},
	{Dragging, gesture.None}:  {Idle, []step{leftUp}},

	{Idle, gesture.ScrollUp}:       {Scrolling, []step{scrollUpStep}},
	{Idle, gesture.ScrollDown}:     {Scrolling, []step{scrollDnStep}},
	{Pointing, gesture.ScrollUp}:   {Scrolling, []step{scrollUpStep}},
	{Pointing, gesture.ScrollDown}: {Scrolling, []step{scrollDnStep}},

	{Scrolling, gesture.ScrollUp}:   {Scrolling, []step{scrollUpStep}},
	{Scrolling, gesture.ScrollDown}: {Scrolling, []step{scrollDnStep}},
	{Scrolling, gesture.None}:       {Idle, nil},
	{Scrolling, gesture.Point}:      {Pointing, nil},
}

// Lookup returns the transition for a stable gesture change in state from.
func Lookup(from State, g gesture.Label) (Transition, bool) {
	t, ok := transitions[key{from, g}]
	return t, ok
}

// Consumes reports whether g drives a transition out of any state. Gestures
// the dispatcher ignores, such as PINCH, are free for plugin bindings.
func Consumes(g gesture.Label) bool {
	for k := range transitions {
		if k.gesture == g {
			return true
		}
	}
	return false
}
