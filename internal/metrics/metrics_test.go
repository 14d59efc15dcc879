package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager()

			Convey("Then it uses a private registry", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Registry(), ShouldNotBeNil)
			})
		})

		Convey("When two managers are created", func() {
			So(func() {
				NewManager()
				NewManager()
			}, ShouldNotPanic)
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("sub"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metrics are registered under the custom names", func() {
				manager.ObserveFrame(time.Millisecond, true)
				n, err := testutil.GatherAndCount(registry, "test_sub_frames_processed_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a manager", t, func() {
		m := NewManager()

		Convey("When frames are observed", func() {
			m.ObserveFrame(2*time.Millisecond, true)
			m.ObserveFrame(3*time.Millisecond, false)
			m.FrameDropped()
			m.FrameInvalid()
			m.FramePanic()

			Convey("Then the counters advance", func() {
				So(testutil.ToFloat64(m.framesProcessed), ShouldEqual, 2)
				So(testutil.ToFloat64(m.framesDropped), ShouldEqual, 1)
				So(testutil.ToFloat64(m.framesInvalid), ShouldEqual, 1)
				So(testutil.ToFloat64(m.framePanics), ShouldEqual, 1)
				So(testutil.ToFloat64(m.handPresent), ShouldEqual, 0)
			})
		})

		Convey("When labelled metrics are recorded", func() {
			m.GestureChanged("CLICK")
			m.EventEmitted("button_down")
			m.EventEmitted("button_down")
			m.InjectionFailed()
			m.ActionTriggered("ok")
			m.SetState("PRESSED", []string{"IDLE", "PRESSED"})

			Convey("Then each label has its own series", func() {
				So(testutil.ToFloat64(m.gestureChanges.WithLabelValues("CLICK")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.eventsEmitted.WithLabelValues("button_down")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.injectionErrors), ShouldEqual, 1)
				So(testutil.ToFloat64(m.actionsTriggered.WithLabelValues("ok")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.dispatcherState.WithLabelValues("PRESSED")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.dispatcherState.WithLabelValues("IDLE")), ShouldEqual, 0)
			})
		})

		Convey("When the handler is scraped", func() {
			m.FrameDropped()
			rec := httptest.NewRecorder()
			m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

			Convey("Then the exposition includes pipeline metrics", func() {
				So(rec.Code, ShouldEqual, 200)
				So(strings.Contains(rec.Body.String(), "mudra_pipeline_frames_dropped_total 1"), ShouldBeTrue)
			})
		})
	})

	Convey("Given a disabled or nil manager", t, func() {
		disabled := NewManager(WithMetricsEnabled(false))
		var nilManager *Manager

		Convey("Then recording is a no-op", func() {
			So(func() {
				disabled.ObserveFrame(time.Millisecond, true)
				nilManager.ObserveFrame(time.Millisecond, true)
				nilManager.FrameDropped()
				nilManager.SetState("IDLE", []string{"IDLE"})
			}, ShouldNotPanic)
			So(testutil.ToFloat64(disabled.framesProcessed), ShouldEqual, 0)
		})
	})
}
