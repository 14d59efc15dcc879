// Package cursor maps a noisy hand reference point to a stable screen position.
package cursor

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/mudra/internal/landmark"
)

// Region is the sub-rectangle of normalized camera space that maps onto the
// full screen. Keeping it smaller than the frame leaves a margin so the hand
// can reach the screen edges without leaving the camera view.
type Region struct {
	MinX, MinY, MaxX, MaxY float64
}

// Config controls filtering and mapping.
type Config struct {
	ScreenWidth  int
	ScreenHeight int
	Region       Region
	// ReferencePoint is the landmark index that drives the cursor.
	ReferencePoint int
	// MinAlpha and MaxAlpha bound the smoothing coefficient. Slow motion uses
	// MinAlpha (heavy smoothing), fast motion MaxAlpha (little lag).
	MinAlpha float64
	MaxAlpha float64
	// SpeedLow and SpeedHigh are the per-frame camera-space speeds between
	// which the coefficient is interpolated.
	SpeedLow  float64
	SpeedHigh float64
	// DeadZone is the camera-space distance the filtered point must travel
	// from the last accepted point before the target moves.
	DeadZone float64
	// MaxStep caps cursor travel per frame in pixels.
	MaxStep float64
	// Mirror flips the horizontal axis for unmirrored camera images.
	Mirror bool
}

// DefaultConfig returns a configuration for a 1920x1080 screen.
func DefaultConfig() Config {
	return Config{
		ScreenWidth:    1920,
		ScreenHeight:   1080,
		Region:         Region{MinX: 0.2, MinY: 0.15, MaxX: 0.8, MaxY: 0.75},
		ReferencePoint: landmark.MiddleMCP,
		MinAlpha:       0.15,
		MaxAlpha:       0.8,
		SpeedLow:       0.002,
		SpeedHigh:      0.03,
		DeadZone:       0.003,
		MaxStep:        120,
		Mirror:         false,
	}
}

// Validate checks that the configuration describes a usable mapping.
func (c Config) Validate() error {
	var errs []error
	if c.ScreenWidth <= 0 || c.ScreenHeight <= 0 {
		errs = append(errs, fmt.Errorf("screen size %dx%d must be positive", c.ScreenWidth, c.ScreenHeight))
	}
	r := c.Region
	if r.MinX < 0 || r.MinY < 0 || r.MaxX > 1 || r.MaxY > 1 || r.MinX >= r.MaxX || r.MinY >= r.MaxY {
		errs = append(errs, fmt.Errorf("region %+v must be a non-empty rectangle inside [0,1]", r))
	}
	if c.ReferencePoint < 0 || c.ReferencePoint >= landmark.NumLandmarks {
		errs = append(errs, fmt.Errorf("reference point %d out of range", c.ReferencePoint))
	}
	if c.MinAlpha <= 0 || c.MaxAlpha > 1 || c.MinAlpha > c.MaxAlpha {
		errs = append(errs, fmt.Errorf("smoothing range [%f, %f] must satisfy 0 < min <= max <= 1", c.MinAlpha, c.MaxAlpha))
	}
	if c.SpeedLow < 0 || c.SpeedHigh <= c.SpeedLow {
		errs = append(errs, fmt.Errorf("speed range [%f, %f] must be increasing", c.SpeedLow, c.SpeedHigh))
	}
	if c.DeadZone < 0 {
		errs = append(errs, fmt.Errorf("dead zone %f must not be negative", c.DeadZone))
	}
	if c.MaxStep <= 0 {
		errs = append(errs, fmt.Errorf("max step %f must be positive", c.MaxStep))
	}
	return errors.Join(errs...)
}

// Position is a screen coordinate in pixels.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pixel rounds the position to integer pixels.
func (p Position) Pixel() (int, int) {
	return int(math.Round(p.X)), int(math.Round(p.Y))
}

// Dist returns the distance between two positions.
func (p Position) Dist(q Position) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

type point2 struct{ x, y float64 }

// Mapper converts frames into screen positions. It is the single owner of
// the cursor position and is not safe for concurrent use.
type Mapper struct {
	cfg Config

	filtered point2
	seeded   bool

	anchor    point2
	hasAnchor bool

	target Position
	pos    Position
}

// NewMapper creates a Mapper with the cursor at the screen centre.
func NewMapper(cfg Config) (*Mapper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	centre := Position{X: float64(cfg.ScreenWidth-1) / 2, Y: float64(cfg.ScreenHeight-1) / 2}
	return &Mapper{cfg: cfg, target: centre, pos: centre}, nil
}

// Map advances the cursor for one frame and reports whether it moved.
//
// Per frame:
//  1. hand absent or unusable: hold the position and drop the filter seed
//  2. smooth the reference point with a speed-adaptive coefficient
//  3. ignore filtered motion inside the dead zone
//  4. map the active region onto the screen, clamped to its bounds
//  5. step toward the target by at most MaxStep pixels
func (m *Mapper) Map(frame landmark.Frame) (Position, bool) {
	if !frame.HandPresent || frame.Validate() != nil {
		m.seeded = false
		m.hasAnchor = false
		return m.pos, false
	}

	ref := frame.Point(m.cfg.ReferencePoint)
	raw := point2{ref.X, ref.Y}
	if m.cfg.Mirror {
		raw.x = 1 - raw.x
	}

	m.filter(raw)

	if !m.hasAnchor || math.Hypot(m.filtered.x-m.anchor.x, m.filtered.y-m.anchor.y) >= m.cfg.DeadZone {
		m.anchor = m.filtered
		m.hasAnchor = true
		m.target = m.toScreen(m.filtered)
	}

	return m.step()
}

// Position returns the current cursor position.
func (m *Mapper) Position() Position { return m.pos }

// Reset drops filter state and recentres the cursor.
func (m *Mapper) Reset() {
	m.seeded = false
	m.hasAnchor = false
	m.target = Position{X: float64(m.cfg.ScreenWidth-1) / 2, Y: float64(m.cfg.ScreenHeight-1) / 2}
	m.pos = m.target
}

func (m *Mapper) filter(raw point2) {
	if !m.seeded {
		m.filtered = raw
		m.seeded = true
		return
	}

	speed := math.Hypot(raw.x-m.filtered.x, raw.y-m.filtered.y)
	t := (speed - m.cfg.SpeedLow) / (m.cfg.SpeedHigh - m.cfg.SpeedLow)
	t = math.Max(0, math.Min(1, t))
	alpha := m.cfg.MinAlpha + t*(m.cfg.MaxAlpha-m.cfg.MinAlpha)

	m.filtered.x += alpha * (raw.x - m.filtered.x)
	m.filtered.y += alpha * (raw.y - m.filtered.y)
}

func (m *Mapper) toScreen(p point2) Position {
	r := m.cfg.Region
	nx := (p.x - r.MinX) / (r.MaxX - r.MinX)
	ny := (p.y - r.MinY) / (r.MaxY - r.MinY)
	nx = math.Max(0, math.Min(1, nx))
	ny = math.Max(0, math.Min(1, ny))
	return Position{
		X: nx * float64(m.cfg.ScreenWidth-1),
		Y: ny * float64(m.cfg.ScreenHeight-1),
	}
}

func (m *Mapper) step() (Position, bool) {
	d := m.pos.Dist(m.target)
	if d == 0 {
		return m.pos, false
	}
	if d <= m.cfg.MaxStep {
		m.pos = m.target
		return m.pos, true
	}
	scale := m.cfg.MaxStep / d
	m.pos = Position{
		X: m.pos.X + (m.target.X-m.pos.X)*scale,
		Y: m.pos.Y + (m.target.Y-m.pos.Y)*scale,
	}
	return m.pos, true
}
