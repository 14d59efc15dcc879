package cursor_test

import (
	"math"
	"math/rand"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ayusman/mudra/internal/cursor"
	"github.com/ayusman/mudra/internal/landmark"
)

func frameAt(x, y float64) landmark.Frame {
	return landmark.Pose(landmark.ShapeV, x, y).Frame(time.Unix(0, 0))
}

func testConfig() cursor.Config {
	cfg := cursor.DefaultConfig()
	cfg.ScreenWidth = 1000
	cfg.ScreenHeight = 500
	cfg.Region = cursor.Region{MinX: 0.2, MinY: 0.2, MaxX: 0.8, MaxY: 0.8}
	cfg.MaxStep = 5000
	return cfg
}

func TestMapper(t *testing.T) {
	Convey("Given a mapper with a large step limit", t, func() {
		m, err := cursor.NewMapper(testConfig())
		So(err, ShouldBeNil)

		Convey("It starts at the screen centre", func() {
			p := m.Position()
			So(p.X, ShouldAlmostEqual, 499.5)
			So(p.Y, ShouldAlmostEqual, 249.5)
		})

		Convey("When the hand sits at the region centre", func() {
			p, _ := m.Map(frameAt(0.5, 0.5))

			Convey("Then the cursor is at the screen centre", func() {
				So(p.X, ShouldAlmostEqual, 499.5, 1e-6)
				So(p.Y, ShouldAlmostEqual, 249.5, 1e-6)
			})
		})

		Convey("When the hand is outside the active region", func() {
			p, moved := m.Map(frameAt(0.05, 0.95))

			Convey("Then the cursor is clamped to the screen corner", func() {
				So(moved, ShouldBeTrue)
				So(p.X, ShouldEqual, 0)
				So(p.Y, ShouldEqual, 499)
			})
		})

		Convey("When the hand is lost", func() {
			before, _ := m.Map(frameAt(0.3, 0.3))
			p, moved := m.Map(landmark.Absent(time.Unix(1, 0)))

			Convey("Then the cursor freezes instead of snapping to the origin", func() {
				So(moved, ShouldBeFalse)
				So(p, ShouldResemble, before)
			})
		})

		Convey("When a frame is malformed", func() {
			before, _ := m.Map(frameAt(0.3, 0.3))
			p, moved := m.Map(landmark.Frame{HandPresent: true, Keypoints: make([]landmark.Point3D, 3)})

			Convey("Then it is treated like a lost hand", func() {
				So(moved, ShouldBeFalse)
				So(p, ShouldResemble, before)
			})
		})

		Convey("When the hand jitters inside the dead zone", func() {
			_, moved := m.Map(frameAt(0.4, 0.4))
			So(moved, ShouldBeTrue)

			moves := 0
			for i := 0; i < 100; i++ {
				jitter := 0.001 * math.Sin(float64(i))
				if _, moved := m.Map(frameAt(0.4+jitter, 0.4-jitter)); moved {
					moves++
				}
			}

			Convey("Then no further moves are reported", func() {
				So(moves, ShouldEqual, 0)
			})
		})

		Convey("When the hand moves past the dead zone", func() {
			first, _ := m.Map(frameAt(0.4, 0.4))
			second, moved := m.Map(frameAt(0.45, 0.4))

			Convey("Then the cursor follows in the same direction", func() {
				So(moved, ShouldBeTrue)
				So(second.X, ShouldBeGreaterThan, first.X)
			})
		})
	})

	Convey("Given a mapper with a small step limit", t, func() {
		cfg := testConfig()
		cfg.MaxStep = 20
		m, err := cursor.NewMapper(cfg)
		So(err, ShouldBeNil)

		Convey("Consecutive positions never differ by more than the limit", func() {
			rng := rand.New(rand.NewSource(3))
			prev := m.Position()
			for i := 0; i < 500; i++ {
				var f landmark.Frame
				if rng.Float64() < 0.1 {
					f = landmark.Absent(time.Unix(int64(i), 0))
				} else {
					f = frameAt(0.2+0.6*rng.Float64(), 0.2+0.6*rng.Float64())
				}
				p, _ := m.Map(f)
				So(p.Dist(prev), ShouldBeLessThanOrEqualTo, cfg.MaxStep+1e-9)
				So(p.X, ShouldBeBetweenOrEqual, 0, float64(cfg.ScreenWidth-1))
				So(p.Y, ShouldBeBetweenOrEqual, 0, float64(cfg.ScreenHeight-1))
				prev = p
			}
		})

		Convey("A far target is reached over several frames", func() {
			frames := 0
			for {
				_, moved := m.Map(frameAt(0.8, 0.5))
				if !moved {
					break
				}
				frames++
				So(frames, ShouldBeLessThan, 100)
			}
			So(frames, ShouldBeGreaterThan, 1)
			So(m.Position().X, ShouldAlmostEqual, 999, 1e-6)
		})
	})

	Convey("Given a mirrored mapper", t, func() {
		cfg := testConfig()
		cfg.Mirror = true
		m, err := cursor.NewMapper(cfg)
		So(err, ShouldBeNil)

		Convey("A hand on the camera's left moves the cursor right", func() {
			p, _ := m.Map(frameAt(0.25, 0.5))
			So(p.X, ShouldBeGreaterThan, 499.5)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	Convey("Validate rejects unusable configurations", t, func() {
		So(cursor.DefaultConfig().Validate(), ShouldBeNil)

		broken := []func(*cursor.Config){
			func(c *cursor.Config) { c.ScreenWidth = 0 },
			func(c *cursor.Config) { c.Region = cursor.Region{MinX: 0.5, MaxX: 0.5, MaxY: 1} },
			func(c *cursor.Config) { c.Region.MaxY = 1.5 },
			func(c *cursor.Config) { c.ReferencePoint = landmark.NumLandmarks },
			func(c *cursor.Config) { c.MinAlpha = 0 },
			func(c *cursor.Config) { c.MinAlpha, c.MaxAlpha = 0.9, 0.5 },
			func(c *cursor.Config) { c.SpeedHigh = c.SpeedLow },
			func(c *cursor.Config) { c.DeadZone = -1 },
			func(c *cursor.Config) { c.MaxStep = 0 },
		}
		for _, mutate := range broken {
			cfg := cursor.DefaultConfig()
			mutate(&cfg)
			So(cfg.Validate(), ShouldNotBeNil)
			_, err := cursor.NewMapper(cfg)
			So(err, ShouldNotBeNil)
		}
	})
}
