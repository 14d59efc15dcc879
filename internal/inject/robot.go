package inject

import (
	"github.com/go-vgo/robotgo"

	"github.com/ayusman/mudra/internal/dispatch"
)

// Robot injects input through robotgo.
type Robot struct{}

// NewRobot creates a Robot injector.
func NewRobot() *Robot {
	return &Robot{}
}

// ScreenSize returns the primary display size in pixels.
func ScreenSize() (int, int) {
	return robotgo.GetScreenSize()
}

func (r *Robot) MoveCursorTo(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (r *Robot) MouseDown(button dispatch.Button) error {
	return robotgo.Toggle(button.String(), "down")
}

func (r *Robot) MouseUp(button dispatch.Button) error {
	return robotgo.Toggle(button.String(), "up")
}

func (r *Robot) ScrollBy(delta int) error {
	robotgo.Scroll(0, delta)
	return nil
}
