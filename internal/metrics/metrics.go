// Package metrics provides Prometheus metrics for the gesture pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// latencyBuckets covers 0.1ms to ~400ms per-frame processing time.
var latencyBuckets = prometheus.ExponentialBuckets(0.1, 2, 13)

// Manager owns the pipeline metrics. A nil *Manager is valid and records
// nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         *prometheus.Registry

	framesProcessed  prometheus.Counter
	framesDropped    prometheus.Counter
	framesInvalid    prometheus.Counter
	framePanics      prometheus.Counter
	frameLatency     prometheus.Histogram
	handPresent      prometheus.Gauge
	gestureChanges   *prometheus.CounterVec
	eventsEmitted    *prometheus.CounterVec
	injectionErrors  prometheus.Counter
	dispatcherState  *prometheus.GaugeVec
	actionsTriggered *prometheus.CounterVec
}

// NewManager creates a metrics manager on a private registry unless one is
// supplied.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "mudra",
		subsystem:        "pipeline",
		histogramBuckets: latencyBuckets,
		enabled:          true,
		registry:         prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.framesProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_processed_total",
		Help:      "Total number of frames run through the pipeline",
	})

	m.framesDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_dropped_total",
		Help:      "Frames overwritten before the pipeline consumed them",
	})

	m.framesInvalid = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_invalid_total",
		Help:      "Frames with malformed landmark data, treated as hand absent",
	})

	m.framePanics = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frame_panics_total",
		Help:      "Frames whose processing panicked and was recovered",
	})

	m.frameLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frame_latency_milliseconds",
		Help:      "Per-frame processing time in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.handPresent = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "hand_present",
		Help:      "1 while a hand is tracked, 0 otherwise",
	})

	m.gestureChanges = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "gesture_changes_total",
			Help:      "Stable gesture transitions by target gesture",
		},
		[]string{"gesture"},
	)

	m.eventsEmitted = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_emitted_total",
			Help:      "Action events emitted by kind",
		},
		[]string{"kind"},
	)

	m.injectionErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "injection_errors_total",
		Help:      "Action events the OS injector failed to deliver",
	})

	m.dispatcherState = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "dispatcher_state",
			Help:      "1 for the current dispatcher state, 0 for the others",
		},
		[]string{"state"},
	)

	m.actionsTriggered = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "actions_triggered_total",
			Help:      "Plugin actions run for gesture bindings by result",
		},
		[]string{"result"},
	)
}

// Registry returns the registry the metrics live on.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) on() bool { return m != nil && m.enabled }

// ObserveFrame records one processed frame.
func (m *Manager) ObserveFrame(d time.Duration, handPresent bool) {
	if !m.on() {
		return
	}
	m.framesProcessed.Inc()
	m.frameLatency.Observe(float64(d) / float64(time.Millisecond))
	if handPresent {
		m.handPresent.Set(1)
	} else {
		m.handPresent.Set(0)
	}
}

// FrameDropped records a frame overwritten in the slot.
func (m *Manager) FrameDropped() {
	if m.on() {
		m.framesDropped.Inc()
	}
}

// FrameInvalid records a malformed frame.
func (m *Manager) FrameInvalid() {
	if m.on() {
		m.framesInvalid.Inc()
	}
}

// FramePanic records a recovered panic.
func (m *Manager) FramePanic() {
	if m.on() {
		m.framePanics.Inc()
	}
}

// GestureChanged records a stable gesture transition.
func (m *Manager) GestureChanged(gesture string) {
	if m.on() {
		m.gestureChanges.WithLabelValues(gesture).Inc()
	}
}

// EventEmitted records an action event of the given kind.
func (m *Manager) EventEmitted(kind string) {
	if m.on() {
		m.eventsEmitted.WithLabelValues(kind).Inc()
	}
}

// InjectionFailed records a failed injection.
func (m *Manager) InjectionFailed() {
	if m.on() {
		m.injectionErrors.Inc()
	}
}

// SetState marks current as the active dispatcher state among all.
func (m *Manager) SetState(current string, all []string) {
	if !m.on() {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		m.dispatcherState.WithLabelValues(s).Set(v)
	}
}

// ActionTriggered records a gesture binding outcome such as "started",
// "ok", "failed" or "busy".
func (m *Manager) ActionTriggered(result string) {
	if m.on() {
		m.actionsTriggered.WithLabelValues(result).Inc()
	}
}
