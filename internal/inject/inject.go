// Package inject delivers dispatcher events to the operating system.
package inject

import (
	"errors"
	"fmt"

	"github.com/ayusman/mudra/internal/dispatch"
)

// ErrInjection is returned when an event could not be delivered.
var ErrInjection = errors.New("input injection failed")

// Injector performs OS-level mouse input.
type Injector interface {
	MoveCursorTo(x, y int) error
	MouseDown(button dispatch.Button) error
	MouseUp(button dispatch.Button) error
	ScrollBy(delta int) error
}

// Apply delivers one event. Failures are wrapped in ErrInjection.
func Apply(inj Injector, e dispatch.Event) error {
	var err error
	switch e.Kind {
	case dispatch.Move, dispatch.DragMove:
		x, y := e.Pos.Pixel()
		err = inj.MoveCursorTo(x, y)
	case dispatch.ButtonDown:
		err = inj.MouseDown(e.Button)
	case dispatch.ButtonUp:
		err = inj.MouseUp(e.Button)
	case dispatch.ScrollBy:
		err = inj.ScrollBy(e.Delta)
	default:
		err = fmt.Errorf("unknown event kind %v", e.Kind)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInjection, e, err)
	}
	return nil
}

// ApplyAll delivers events in order and returns the joined failures. A
// failed event does not stop the remaining ones.
func ApplyAll(inj Injector, events []dispatch.Event) error {
	var errs []error
	for _, e := range events {
		if err := Apply(inj, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
