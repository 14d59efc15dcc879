// Package landmark defines the hand keypoint types shared by detectors and the
// gesture control pipeline.
package landmark

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// ErrInvalidFrame is returned for frames whose keypoint data cannot be used.
var ErrInvalidFrame = errors.New("invalid frame")

// Point3D represents a 3D point in space with x, y, z coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Dist returns the Euclidean distance between p and q.
func (p Point3D) Dist(q Point3D) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Dist2D returns the distance between p and q ignoring depth.
func (p Point3D) Dist2D(q Point3D) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Normalize normalizes the hand landmarks relative to wrist position and hand size.
// The normalized landmarks have the wrist at origin (0,0,0) and are scaled
// so that the distance from wrist to middle finger MCP is 1.0.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if h == nil {
		return nil
	}

	normalized := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist]
	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i] = Point3D{
			X: h.Points[i].X - wrist.X,
			Y: h.Points[i].Y - wrist.Y,
			Z: h.Points[i].Z - wrist.Z,
		}
	}

	scale := normalized.Points[MiddleMCP].Dist(Point3D{})
	if scale < 1e-10 {
		return normalized
	}

	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i].X /= scale
		normalized.Points[i].Y /= scale
		normalized.Points[i].Z /= scale
	}

	return normalized
}

// Frame converts the detection into a pipeline frame stamped with ts.
func (h HandLandmarks) Frame(ts time.Time) Frame {
	points := make([]Point3D, NumLandmarks)
	copy(points, h.Points[:])
	return Frame{
		Timestamp:   ts,
		HandPresent: true,
		Keypoints:   points,
		Handedness:  h.Handedness,
		Score:       h.Score,
	}
}

// Frame is one observation of the controlling hand. It is produced once per
// camera frame and must not be modified after construction.
type Frame struct {
	Timestamp   time.Time
	HandPresent bool
	Keypoints   []Point3D
	Handedness  string
	Score       float64
}

// Absent returns a frame reporting that no hand was tracked at ts.
func Absent(ts time.Time) Frame {
	return Frame{Timestamp: ts}
}

// Validate reports ErrInvalidFrame when a present hand does not carry exactly
// NumLandmarks finite keypoints. Hand-absent frames are always valid.
func (f Frame) Validate() error {
	if !f.HandPresent {
		return nil
	}
	if len(f.Keypoints) != NumLandmarks {
		return fmt.Errorf("%w: got %d keypoints, want %d", ErrInvalidFrame, len(f.Keypoints), NumLandmarks)
	}
	for i, p := range f.Keypoints {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return fmt.Errorf("%w: keypoint %d is not finite", ErrInvalidFrame, i)
		}
	}
	return nil
}

// Point returns keypoint i. Callers must Validate first.
func (f Frame) Point(i int) Point3D {
	return f.Keypoints[i]
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
