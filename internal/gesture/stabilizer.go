package gesture

import (
	"fmt"
	"math"
)

// StabilizerConfig controls the hysteresis applied to raw labels.
type StabilizerConfig struct {
	// Window is the number of recent raw labels considered (K).
	Window int
	// EnterCount is how many of the last Window labels must agree before the
	// stable gesture changes (M). Must be a strict majority.
	EnterCount int
	// ReleaseCount replaces EnterCount while the stable gesture holds a
	// button (CLICK or DRAG), so a brief occlusion does not drop the button.
	ReleaseCount int
	// MinConfidence demotes raw labels below this confidence to NONE.
	MinConfidence float64
}

// DefaultStabilizerConfig returns a 5-frame window, about 200ms at 25 fps.
func DefaultStabilizerConfig() StabilizerConfig {
	return StabilizerConfig{
		Window:        5,
		EnterCount:    3,
		ReleaseCount:  4,
		MinConfidence: 0.3,
	}
}

// StabilizerConfigForRate sizes the window to span the given duration in
// seconds at fps frames per second, keeping the default majority shape.
func StabilizerConfigForRate(fps, span float64) StabilizerConfig {
	cfg := DefaultStabilizerConfig()
	k := int(math.Round(fps * span))
	if k < 3 {
		k = 3
	}
	cfg.Window = k
	cfg.EnterCount = k/2 + 1
	cfg.ReleaseCount = cfg.EnterCount + (k-cfg.EnterCount+1)/2
	if cfg.ReleaseCount > k {
		cfg.ReleaseCount = k
	}
	return cfg
}

// Validate checks the majority constraints.
func (c StabilizerConfig) Validate() error {
	if c.Window < 1 {
		return fmt.Errorf("stabilizer window must be positive, got %d", c.Window)
	}
	if 2*c.EnterCount <= c.Window {
		return fmt.Errorf("enter count %d is not a majority of window %d", c.EnterCount, c.Window)
	}
	if c.EnterCount > c.Window {
		return fmt.Errorf("enter count %d exceeds window %d", c.EnterCount, c.Window)
	}
	if c.ReleaseCount < c.EnterCount || c.ReleaseCount > c.Window {
		return fmt.Errorf("release count %d must be within [%d, %d]", c.ReleaseCount, c.EnterCount, c.Window)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence %f out of [0,1]", c.MinConfidence)
	}
	return nil
}

// Stabilizer debounces raw labels into a stable gesture. It is the only
// writer of the stable state and is not safe for concurrent use.
type Stabilizer struct {
	cfg    StabilizerConfig
	ring   *Ring
	stable Label
}

// NewStabilizer creates a Stabilizer starting in NONE.
func NewStabilizer(cfg StabilizerConfig) (*Stabilizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Stabilizer{
		cfg:  cfg,
		ring: NewRing(cfg.Window),
	}, nil
}

// Observe feeds a raw classification, applying the confidence gate.
func (s *Stabilizer) Observe(r Raw) (Label, bool) {
	l := r.Label
	if r.Confidence < s.cfg.MinConfidence {
		l = None
	}
	return s.Update(l)
}

// Update records l and returns the new stable gesture when it changed.
// Because the threshold is a strict majority at most one label can qualify.
func (s *Stabilizer) Update(l Label) (Label, bool) {
	s.ring.Push(l)

	if l == s.stable {
		return s.stable, false
	}

	need := s.cfg.EnterCount
	if holdsButton(s.stable) {
		need = s.cfg.ReleaseCount
	}
	if s.ring.Count(l) < need {
		return s.stable, false
	}

	s.stable = l
	return l, true
}

// Stable returns the current stable gesture.
func (s *Stabilizer) Stable() Label { return s.stable }

// History returns the buffered raw labels, oldest first.
func (s *Stabilizer) History() []Label { return s.ring.Labels() }

// Reset clears the history and returns to NONE.
func (s *Stabilizer) Reset() {
	s.ring.Reset()
	s.stable = None
}

func holdsButton(l Label) bool {
	return l == Click || l == Drag
}
