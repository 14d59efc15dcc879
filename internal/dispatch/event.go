package dispatch

import (
	"fmt"

	"github.com/ayusman/mudra/internal/cursor"
)

// Kind tags an action event.
type Kind int

const (
	Move Kind = iota
	ButtonDown
	ButtonUp
	DragMove
	ScrollBy
)

var kindNames = [...]string{
	Move:       "move",
	ButtonDown: "button_down",
	ButtonUp:   "button_up",
	DragMove:   "drag_move",
	ScrollBy:   "scroll_by",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Button is a mouse button.
type Button int

const (
	Left Button = iota
	Right
)

func (b Button) String() string {
	switch b {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("Button(%d)", int(b))
}

// MarshalText implements encoding.TextMarshaler.
func (b Button) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// Event is a fire-and-forget action for the input injection collaborator.
// Pos is set for Move and DragMove, Button for ButtonDown and ButtonUp and
// Delta for ScrollBy (positive scrolls up).
type Event struct {
	Kind   Kind            `json:"kind"`
	Pos    cursor.Position `json:"pos"`
	Button Button          `json:"button"`
	Delta  int             `json:"delta"`
}

func (e Event) String() string {
	switch e.Kind {
	case Move, DragMove:
		return fmt.Sprintf("%s(%.0f,%.0f)", e.Kind, e.Pos.X, e.Pos.Y)
	case ButtonDown, ButtonUp:
		return fmt.Sprintf("%s(%s)", e.Kind, e.Button)
	case ScrollBy:
		return fmt.Sprintf("%s(%d)", e.Kind, e.Delta)
	}
	return e.Kind.String()
}

// Constructors for each variant.
func MoveTo(p cursor.Position) Event { return Event{Kind: Move, Pos: p} }
func DragTo(p cursor.Position) Event { return Event{Kind: DragMove, Pos: p} }
func Down(b Button) Event            { return Event{Kind: ButtonDown, Button: b} }
func Up(b Button) Event              { return Event{Kind: ButtonUp, Button: b} }
func Scroll(delta int) Event         { return Event{Kind: ScrollBy, Delta: delta} }
