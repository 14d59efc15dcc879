package inject

import (
	"errors"
	"sync"

	"github.com/ayusman/mudra/internal/cursor"
	"github.com/ayusman/mudra/internal/dispatch"
)

// ErrRecorderFault is returned by a Recorder set to fail.
var ErrRecorderFault = errors.New("recorder fault")

// Recorder is an Injector that records calls instead of touching the OS.
// It backs dry-run mode and tests.
type Recorder struct {
	mu     sync.Mutex
	calls  []dispatch.Event
	failOn map[dispatch.Kind]bool
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{failOn: make(map[dispatch.Kind]bool)}
}

// FailOn makes every subsequent call of the given kind fail.
func (r *Recorder) FailOn(kind dispatch.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn[kind] = true
}

// Events returns a copy of the recorded calls.
func (r *Recorder) Events() []dispatch.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]dispatch.Event, len(r.calls))
	copy(out, r.calls)
	return out
}

// Reset clears recorded calls and faults.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
	r.failOn = make(map[dispatch.Kind]bool)
}

func (r *Recorder) record(e dispatch.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn[e.Kind] {
		return ErrRecorderFault
	}
	r.calls = append(r.calls, e)
	return nil
}

func (r *Recorder) MoveCursorTo(x, y int) error {
	return r.record(dispatch.Event{Kind: dispatch.Move, Pos: cursor.Position{X: float64(x), Y: float64(y)}})
}

func (r *Recorder) MouseDown(button dispatch.Button) error {
	return r.record(dispatch.Down(button))
}

func (r *Recorder) MouseUp(button dispatch.Button) error {
	return r.record(dispatch.Up(button))
}

func (r *Recorder) ScrollBy(delta int) error {
	return r.record(dispatch.Scroll(delta))
}
