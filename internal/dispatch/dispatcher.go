// Package dispatch turns stable gestures and cursor positions into discrete
// mouse events.
package dispatch

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/mudra/internal/cursor"
	"github.com/ayusman/mudra/internal/gesture"
)

// Config controls timeouts and scroll amounts.
type Config struct {
	// HandLostTimeout is how long the hand may be absent before held buttons
	// are released and the dispatcher returns to Idle.
	HandLostTimeout time.Duration
	// ScrollStep is the wheel amount emitted per scroll event.
	ScrollStep int
	// ScrollRepeat re-emits a scroll at this interval while a scroll gesture
	// is held. Zero disables repetition.
	ScrollRepeat time.Duration
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		HandLostTimeout: 500 * time.Millisecond,
		ScrollStep:      5,
		ScrollRepeat:    250 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.HandLostTimeout <= 0 {
		errs = append(errs, fmt.Errorf("hand lost timeout %v must be positive", c.HandLostTimeout))
	}
	if c.ScrollStep <= 0 {
		errs = append(errs, fmt.Errorf("scroll step %d must be positive", c.ScrollStep))
	}
	if c.ScrollRepeat < 0 {
		errs = append(errs, fmt.Errorf("scroll repeat %v must not be negative", c.ScrollRepeat))
	}
	return errors.Join(errs...)
}

// Input is everything the dispatcher needs for one frame.
type Input struct {
	Now         time.Time
	HandPresent bool
	// Gesture is the current stable gesture; Changed is set on the frame it
	// became stable.
	Gesture gesture.Label
	Changed bool
	Pos     cursor.Position
	Moved   bool
}

// Dispatcher is the action state machine. Every ButtonDown it emits is
// eventually paired with a ButtonUp for the same button. It is not safe for
// concurrent use.
type Dispatcher struct {
	cfg Config

	state    State
	held     map[Button]bool
	lastSeen time.Time

	scrollSign int
	lastScroll time.Time
}

// New creates a Dispatcher in Idle.
func New(cfg Config) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Dispatcher{
		cfg:  cfg,
		held: make(map[Button]bool),
	}, nil
}

// State returns the current state.
func (d *Dispatcher) State() State { return d.state }

// Held reports whether b is currently pressed.
func (d *Dispatcher) Held(b Button) bool { return d.held[b] }

// Step processes one frame and returns the events to inject, in order.
func (d *Dispatcher) Step(in Input) []Event {
	var events []Event

	if in.HandPresent || d.lastSeen.IsZero() {
		d.lastSeen = in.Now
	} else if d.state != Idle && in.Now.Sub(d.lastSeen) > d.cfg.HandLostTimeout {
		events = d.release(events)
		d.state = Idle
	}

	transitioned := false
	if in.Changed {
		if t, ok := Lookup(d.state, in.Gesture); ok {
			events = d.apply(events, t, in)
			transitioned = true
		}
	}

	if !transitioned && in.Moved {
		switch d.state {
		case Pointing:
			events = append(events, MoveTo(in.Pos))
		case Dragging:
			events = append(events, DragTo(in.Pos))
		}
	}

	if !transitioned && in.HandPresent && d.state == Scrolling && d.cfg.ScrollRepeat > 0 &&
		in.Now.Sub(d.lastScroll) >= d.cfg.ScrollRepeat {
		events = append(events, Scroll(d.scrollSign*d.cfg.ScrollStep))
		d.lastScroll = in.Now
	}

	return events
}

// Release lifts every held button and returns to Idle. It is used on
// shutdown so no button stays pressed.
func (d *Dispatcher) Release() []Event {
	events := d.release(nil)
	d.state = Idle
	return events
}

func (d *Dispatcher) apply(events []Event, t Transition, in Input) []Event {
	for _, s := range t.steps {
		switch s.kind {
		case Move:
			events = append(events, MoveTo(in.Pos))
		case ButtonDown:
			if d.held[s.button] {
				continue
			}
			d.held[s.button] = true
			events = append(events, Down(s.button))
		case ButtonUp:
			if !d.held[s.button] {
				continue
			}
			delete(d.held, s.button)
			events = append(events, Up(s.button))
		case ScrollBy:
			d.scrollSign = s.sign
			d.lastScroll = in.Now
			events = append(events, Scroll(s.sign*d.cfg.ScrollStep))
		}
	}
	d.state = t.Next
	return events
}

func (d *Dispatcher) release(events []Event) []Event {
	for _, b := range []Button{Left, Right} {
		if d.held[b] {
			delete(d.held, b)
			events = append(events, Up(b))
		}
	}
	return events
}
