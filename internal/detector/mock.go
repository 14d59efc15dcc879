package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/landmark"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []landmark.HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []landmark.HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetGesture makes Detect return one hand holding the preset pose for l at
// (x, y). gesture.None clears the hands.
func (m *MockDetector) SetGesture(l gesture.Label, x, y float64) {
	shape, ok := presetShapes[l]
	if !ok {
		m.SetHands(nil)
		return
	}
	m.SetHands([]landmark.HandLandmarks{landmark.Pose(shape, x, y)})
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]landmark.HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

var presetShapes = map[gesture.Label]landmark.Shape{
	gesture.Point:       landmark.ShapeV,
	gesture.Click:       landmark.ShapeMiddleOnly,
	gesture.RightClick:  landmark.ShapeIndexOnly,
	gesture.Drag:        landmark.ShapeFist,
	gesture.ScrollUp:    landmark.ShapeThumbsUp,
	gesture.ScrollDown:  landmark.ShapeThumbsDown,
	gesture.Pinch:       landmark.ShapeOKPinch,
	gesture.DoubleClick: landmark.ShapeTwoClosed,
}

// PresetLandmarks returns a centred hand the rule classifier reads as l.
// gesture.None yields an open palm.
func PresetLandmarks(l gesture.Label) landmark.HandLandmarks {
	shape, ok := presetShapes[l]
	if !ok {
		shape = landmark.ShapeOpenPalm
	}
	return landmark.Pose(shape, 0.5, 0.45)
}
