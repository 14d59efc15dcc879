// Package detector produces hand landmarks from camera frames.
package detector

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/landmark"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]landmark.HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// IdleShutdown stops a subprocess backend after this long without
	// frames. Zero keeps it running.
	IdleShutdown time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		IdleShutdown:    30 * time.Second,
	}
}

// SelectHand picks the controlling hand: the best-scoring hand of the
// preferred handedness, else the best-scoring hand overall.
func SelectHand(hands []landmark.HandLandmarks, preferred string) (landmark.HandLandmarks, bool) {
	best, bestPreferred := -1, -1
	for i := range hands {
		if best < 0 || hands[i].Score > hands[best].Score {
			best = i
		}
		if preferred != "" && hands[i].Handedness == preferred &&
			(bestPreferred < 0 || hands[i].Score > hands[bestPreferred].Score) {
			bestPreferred = i
		}
	}
	switch {
	case bestPreferred >= 0:
		return hands[bestPreferred], true
	case best >= 0:
		return hands[best], true
	}
	return landmark.HandLandmarks{}, false
}

// ToFrame converts a detection result into the pipeline's frame, selecting
// one hand.
func ToFrame(hands []landmark.HandLandmarks, preferred string, ts time.Time) landmark.Frame {
	hand, ok := SelectHand(hands, preferred)
	if !ok {
		return landmark.Absent(ts)
	}
	return hand.Frame(ts)
}
