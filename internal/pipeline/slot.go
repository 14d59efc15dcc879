package pipeline

import (
	"context"
	"sync"

	"github.com/ayusman/mudra/internal/landmark"
)

// Slot is a single-frame buffer between the camera producer and the
// pipeline consumer. A new frame replaces an unconsumed one, so the consumer
// always sees the latest frame and latency never accumulates.
type Slot struct {
	mu    sync.Mutex
	frame landmark.Frame
	full  bool
	ready chan struct{}
}

// NewSlot creates an empty slot.
func NewSlot() *Slot {
	return &Slot{ready: make(chan struct{}, 1)}
}

// Put stores f and reports whether an unconsumed frame was dropped.
func (s *Slot) Put(f landmark.Frame) bool {
	s.mu.Lock()
	dropped := s.full
	s.frame = f
	s.full = true
	s.mu.Unlock()

	select {
	case s.ready <- struct{}{}:
	default:
	}
	return dropped
}

// Take blocks until a frame is available or ctx is done.
func (s *Slot) Take(ctx context.Context) (landmark.Frame, error) {
	for {
		s.mu.Lock()
		if s.full {
			f := s.frame
			s.full = false
			s.frame = landmark.Frame{}
			s.mu.Unlock()
			return f, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return landmark.Frame{}, ctx.Err()
		case <-s.ready:
		}
	}
}
