package capture

import "time"

// Mode is the capture mode.
type Mode int

const (
	Idle Mode = iota
	Active
)

func (m Mode) String() string {
	if m == Active {
		return "active"
	}
	return "idle"
}

// Governor decides the capture mode. Motion switches to Active; Idle returns
// only after IdleTimeout without motion and never while the caller reports
// it is busy (a held button or an ongoing gesture).
type Governor struct {
	IdleFPS     int
	ActiveFPS   int
	IdleTimeout time.Duration

	mode       Mode
	lastMotion time.Time
}

// NewGovernor starts in Idle.
func NewGovernor(idleFPS, activeFPS int, idleTimeout time.Duration) *Governor {
	return &Governor{IdleFPS: idleFPS, ActiveFPS: activeFPS, IdleTimeout: idleTimeout}
}

// Mode returns the current mode.
func (g *Governor) Mode() Mode { return g.mode }

// FPS returns the frame rate for the current mode.
func (g *Governor) FPS() int {
	if g.mode == Active {
		return g.ActiveFPS
	}
	return g.IdleFPS
}

// Observe records one frame and reports whether the mode changed.
func (g *Governor) Observe(now time.Time, motion, busy bool) (Mode, bool) {
	if motion || busy {
		g.lastMotion = now
	}

	switch {
	case g.mode == Idle && (motion || busy):
		g.mode = Active
		return g.mode, true
	case g.mode == Active && !busy && now.Sub(g.lastMotion) > g.IdleTimeout:
		g.mode = Idle
		return g.mode, true
	}
	return g.mode, false
}
