// Package config defines process configuration and its loading.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ayusman/mudra/internal/cursor"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
)

// Sentinel error kinds for this package.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)

// Classifier kinds.
const (
	ClassifierRules     = "rules"
	ClassifierTemplates = "templates"
)

// Detector kinds. The mock detector sees no hands and exists for dry runs.
const (
	DetectorMediaPipe = "mediapipe"
	DetectorMock      = "mock"
)

// Config contains process configuration.
type Config struct {
	Log logging.Config `koanf:"log"`

	// Addr is the HTTP listen address; empty disables the server.
	Addr      string `koanf:"addr"`
	DBPath    string `koanf:"db_path" validate:"required"`
	PluginDir string `koanf:"plugin_dir"`

	CameraID int `koanf:"camera_id" validate:"gte=0"`
	// IdleFPS is the frame rate while no motion is seen, ActiveFPS while a
	// hand may be in view.
	IdleFPS     int           `koanf:"idle_fps" validate:"gt=0"`
	ActiveFPS   int           `koanf:"active_fps" validate:"gt=0,gtefield=IdleFPS"`
	IdleTimeout time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	// MotionThreshold is the percentage of changed pixels that counts as
	// motion.
	MotionThreshold float64 `koanf:"motion_threshold" validate:"gte=0,lte=100"`

	// Handedness prefers one hand when several are detected.
	Handedness string `koanf:"handedness" validate:"omitempty,oneof=Left Right"`
	Classifier string `koanf:"classifier" validate:"oneof=rules templates"`
	Detector   string `koanf:"detector" validate:"oneof=mediapipe mock"`

	DryRun bool `koanf:"dry_run"`
	Tray   bool `koanf:"tray"`

	Screen     Screen     `koanf:"screen"`
	Cursor     Cursor     `koanf:"cursor"`
	Stabilizer Stabilizer `koanf:"stabilizer"`
	Dispatch   Dispatch   `koanf:"dispatch"`
	Bindings   Bindings   `koanf:"bindings"`
}

// Screen overrides the detected screen size when both are set.
type Screen struct {
	Width  int `koanf:"width" validate:"gte=0"`
	Height int `koanf:"height" validate:"gte=0"`
}

// Cursor mirrors cursor.Config.
type Cursor struct {
	RegionMinX     float64 `koanf:"region_min_x" validate:"gte=0,lte=1"`
	RegionMinY     float64 `koanf:"region_min_y" validate:"gte=0,lte=1"`
	RegionMaxX     float64 `koanf:"region_max_x" validate:"gte=0,lte=1,gtfield=RegionMinX"`
	RegionMaxY     float64 `koanf:"region_max_y" validate:"gte=0,lte=1,gtfield=RegionMinY"`
	ReferencePoint int     `koanf:"reference_point" validate:"gte=0"`
	MinAlpha       float64 `koanf:"min_alpha" validate:"gt=0,lte=1"`
	MaxAlpha       float64 `koanf:"max_alpha" validate:"gt=0,lte=1,gtefield=MinAlpha"`
	SpeedLow       float64 `koanf:"speed_low" validate:"gte=0"`
	SpeedHigh      float64 `koanf:"speed_high" validate:"gtfield=SpeedLow"`
	DeadZone       float64 `koanf:"dead_zone" validate:"gte=0"`
	MaxStep        float64 `koanf:"max_step" validate:"gt=0"`
	Mirror         bool    `koanf:"mirror"`
}

// Stabilizer mirrors gesture.StabilizerConfig. A zero Window derives the
// window from ActiveFPS and Span.
type Stabilizer struct {
	Window        int           `koanf:"window" validate:"gte=0"`
	EnterCount    int           `koanf:"enter_count" validate:"gte=0"`
	ReleaseCount  int           `koanf:"release_count" validate:"gte=0"`
	Span          time.Duration `koanf:"span" validate:"gte=0"`
	MinConfidence float64       `koanf:"min_confidence" validate:"gte=0,lte=1"`
}

// Dispatch mirrors dispatch.Config.
type Dispatch struct {
	HandLostTimeout time.Duration `koanf:"hand_lost_timeout" validate:"gt=0"`
	ScrollStep      int           `koanf:"scroll_step" validate:"gt=0"`
	ScrollRepeat    time.Duration `koanf:"scroll_repeat" validate:"gte=0"`
}

// Bindings controls gesture-triggered plugin actions.
type Bindings struct {
	// Cooldown is the minimum spacing between two triggers.
	Cooldown time.Duration `koanf:"cooldown" validate:"gte=0"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
}

// New returns a Config populated with defaults.
func New() *Config {
	c := cursor.DefaultConfig()
	s := gesture.DefaultStabilizerConfig()
	d := dispatch.DefaultConfig()
	return &Config{
		Log:             logging.DefaultConfig(),
		Addr:            "127.0.0.1:7777",
		DBPath:          "mudra.db",
		PluginDir:       "plugins",
		CameraID:        0,
		IdleFPS:         5,
		ActiveFPS:       25,
		IdleTimeout:     2 * time.Second,
		MotionThreshold: 1.0,
		Handedness:      "Right",
		Classifier:      ClassifierRules,
		Detector:        DetectorMediaPipe,
		Tray:            true,
		Cursor: Cursor{
			RegionMinX:     c.Region.MinX,
			RegionMinY:     c.Region.MinY,
			RegionMaxX:     c.Region.MaxX,
			RegionMaxY:     c.Region.MaxY,
			ReferencePoint: c.ReferencePoint,
			MinAlpha:       c.MinAlpha,
			MaxAlpha:       c.MaxAlpha,
			SpeedLow:       c.SpeedLow,
			SpeedHigh:      c.SpeedHigh,
			DeadZone:       c.DeadZone,
			MaxStep:        c.MaxStep,
			Mirror:         c.Mirror,
		},
		Stabilizer: Stabilizer{
			Window:        s.Window,
			EnterCount:    s.EnterCount,
			ReleaseCount:  s.ReleaseCount,
			Span:          200 * time.Millisecond,
			MinConfidence: s.MinConfidence,
		},
		Dispatch: Dispatch{
			HandLostTimeout: d.HandLostTimeout,
			ScrollStep:      d.ScrollStep,
			ScrollRepeat:    d.ScrollRepeat,
		},
		Bindings: Bindings{
			Cooldown: time.Second,
			Timeout:  5 * time.Second,
		},
	}
}

// Validate checks struct tags and the cross-field rules of each stage.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := c.StabilizerConfig().Validate(); err != nil {
		return fmt.Errorf("%w: stabilizer: %v", ErrInvalidConfig, err)
	}
	if err := c.CursorConfig(1920, 1080).Validate(); err != nil {
		return fmt.Errorf("%w: cursor: %v", ErrInvalidConfig, err)
	}
	if err := c.DispatchConfig().Validate(); err != nil {
		return fmt.Errorf("%w: dispatch: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ScreenSize returns the configured screen size, falling back to detected
// when either dimension is unset.
func (c *Config) ScreenSize(detectedW, detectedH int) (int, int) {
	if c.Screen.Width > 0 && c.Screen.Height > 0 {
		return c.Screen.Width, c.Screen.Height
	}
	return detectedW, detectedH
}

// CursorConfig converts to a cursor.Config for a screen of w x h pixels.
func (c *Config) CursorConfig(w, h int) cursor.Config {
	cc := c.Cursor
	return cursor.Config{
		ScreenWidth:    w,
		ScreenHeight:   h,
		Region:         cursor.Region{MinX: cc.RegionMinX, MinY: cc.RegionMinY, MaxX: cc.RegionMaxX, MaxY: cc.RegionMaxY},
		ReferencePoint: cc.ReferencePoint,
		MinAlpha:       cc.MinAlpha,
		MaxAlpha:       cc.MaxAlpha,
		SpeedLow:       cc.SpeedLow,
		SpeedHigh:      cc.SpeedHigh,
		DeadZone:       cc.DeadZone,
		MaxStep:        cc.MaxStep,
		Mirror:         cc.Mirror,
	}
}

// StabilizerConfig converts to a gesture.StabilizerConfig.
func (c *Config) StabilizerConfig() gesture.StabilizerConfig {
	s := c.Stabilizer
	if s.Window == 0 {
		cfg := gesture.StabilizerConfigForRate(float64(c.ActiveFPS), s.Span.Seconds())
		cfg.MinConfidence = s.MinConfidence
		return cfg
	}
	return gesture.StabilizerConfig{
		Window:        s.Window,
		EnterCount:    s.EnterCount,
		ReleaseCount:  s.ReleaseCount,
		MinConfidence: s.MinConfidence,
	}
}

// DispatchConfig converts to a dispatch.Config.
func (c *Config) DispatchConfig() dispatch.Config {
	return dispatch.Config{
		HandLostTimeout: c.Dispatch.HandLostTimeout,
		ScrollStep:      c.Dispatch.ScrollStep,
		ScrollRepeat:    c.Dispatch.ScrollRepeat,
	}
}
