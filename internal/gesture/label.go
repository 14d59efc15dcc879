// Package gesture turns landmark frames into gesture labels and stabilizes the
// resulting label stream.
package gesture

import (
	"fmt"
	"strings"
)

// Label identifies a hand gesture.
type Label int

const (
	None Label = iota
	Point
	Click
	RightClick
	Drag
	ScrollUp
	ScrollDown
	Pinch
	DoubleClick
)

var labelNames = [...]string{
	None:        "NONE",
	Point:       "POINT",
	Click:       "CLICK",
	RightClick:  "RIGHT_CLICK",
	Drag:        "DRAG",
	ScrollUp:    "SCROLL_UP",
	ScrollDown:  "SCROLL_DOWN",
	Pinch:       "PINCH",
	DoubleClick: "DOUBLE_CLICK",
}

// Labels lists every label in declaration order.
func Labels() []Label {
	out := make([]Label, len(labelNames))
	for i := range labelNames {
		out[i] = Label(i)
	}
	return out
}

func (l Label) String() string {
	if l < 0 || int(l) >= len(labelNames) {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelNames[l]
}

// ParseLabel accepts the names produced by String, case-insensitively.
func ParseLabel(s string) (Label, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range labelNames {
		if name == s {
			return Label(i), nil
		}
	}
	return None, fmt.Errorf("unknown gesture label %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(b []byte) error {
	parsed, err := ParseLabel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Raw is a single-frame classification result.
type Raw struct {
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}
