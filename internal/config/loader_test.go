package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/ayusman/mudra/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mudra.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearConfigEnv removes every MUDRA_ variable. t.Setenv restores them when
// the test ends.
func clearConfigEnv(t *testing.T) {
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, "MUDRA_") {
			t.Setenv(key, "")
			_ = os.Unsetenv(key)
		}
	}
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnv(t)

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, "127.0.0.1:7777")
				convey.So(cfg.Classifier, convey.ShouldEqual, config.ClassifierRules)
				convey.So(cfg.Detector, convey.ShouldEqual, config.DetectorMediaPipe)
				convey.So(cfg.Dispatch.HandLostTimeout, convey.ShouldEqual, 500*time.Millisecond)
				convey.So(cfg.StabilizerConfig().Window, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			t.Setenv("MUDRA_ADDR", ":9000")
			t.Setenv("MUDRA_DRY_RUN", "true")
			t.Setenv("MUDRA_CURSOR__MAX_STEP", "80")
			t.Setenv("MUDRA_DISPATCH__HAND_LOST_TIMEOUT", "750ms")
			t.Setenv("MUDRA_LOG__LEVEL", "debug")

			cfg, err := config.Load(ctx)

			convey.Convey("Then nested keys override defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9000")
				convey.So(cfg.DryRun, convey.ShouldBeTrue)
				convey.So(cfg.Cursor.MaxStep, convey.ShouldEqual, 80)
				convey.So(cfg.Dispatch.HandLostTimeout, convey.ShouldEqual, 750*time.Millisecond)
				convey.So(cfg.Log.Level, convey.ShouldEqual, "debug")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfig(t, `
addr: ":9090"
classifier: templates
screen:
  width: 2560
  height: 1440
cursor:
  mirror: true
stabilizer:
  window: 7
  enter_count: 4
  release_count: 6
`)
			t.Setenv("MUDRA_CONFIG", path)
			t.Setenv("MUDRA_ADDR", ":9191")

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env wins over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9191")
				convey.So(cfg.Classifier, convey.ShouldEqual, config.ClassifierTemplates)
				convey.So(cfg.Cursor.Mirror, convey.ShouldBeTrue)
				convey.So(cfg.Cursor.MaxStep, convey.ShouldEqual, 120)

				w, h := cfg.ScreenSize(1920, 1080)
				convey.So(w, convey.ShouldEqual, 2560)
				convey.So(h, convey.ShouldEqual, 1440)

				s := cfg.StabilizerConfig()
				convey.So(s.Window, convey.ShouldEqual, 7)
				convey.So(s.EnterCount, convey.ShouldEqual, 4)
				convey.So(s.ReleaseCount, convey.ShouldEqual, 6)
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When values are invalid", func() {
			path := writeConfig(t, `
classifier: neural
`)
			_, err := config.LoadFile(path)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing db path", func(c *config.Config) { c.DBPath = "" }},
		{"active below idle fps", func(c *config.Config) { c.ActiveFPS = 2 }},
		{"unknown handedness", func(c *config.Config) { c.Handedness = "Both" }},
		{"unknown detector", func(c *config.Config) { c.Detector = "opencv" }},
		{"empty region", func(c *config.Config) { c.Cursor.RegionMaxX = c.Cursor.RegionMinX }},
		{"alpha out of order", func(c *config.Config) { c.Cursor.MinAlpha, c.Cursor.MaxAlpha = 0.9, 0.2 }},
		{"stabilizer without majority", func(c *config.Config) {
			c.Stabilizer.Window, c.Stabilizer.EnterCount, c.Stabilizer.ReleaseCount = 6, 3, 3
		}},
		{"zero scroll step", func(c *config.Config) { c.Dispatch.ScrollStep = 0 }},
		{"bad log level", func(c *config.Config) { c.Log.Level = "chatty" }},
	}

	if err := config.New().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.New()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, config.ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_StabilizerFromRate(t *testing.T) {
	cfg := config.New()
	cfg.Stabilizer.Window = 0
	cfg.ActiveFPS = 30

	s := cfg.StabilizerConfig()
	if s.Window != 6 || s.EnterCount != 4 {
		t.Errorf("derived K=%d M=%d, want 6/4", s.Window, s.EnterCount)
	}
	if s.MinConfidence != cfg.Stabilizer.MinConfidence {
		t.Errorf("MinConfidence = %v, want %v", s.MinConfidence, cfg.Stabilizer.MinConfidence)
	}
}
