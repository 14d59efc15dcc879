package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ayusman/mudra/internal/cursor"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/inject"
	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/metrics"
)

type harness struct {
	p       *Pipeline
	rec     *inject.Recorder
	metrics *metrics.Manager
	now     time.Time
}

func newHarness(t *testing.T, classifier gesture.Classifier) *harness {
	t.Helper()
	if classifier == nil {
		classifier = gesture.NewRuleClassifier(gesture.DefaultRuleConfig())
	}
	stab, err := gesture.NewStabilizer(gesture.DefaultStabilizerConfig())
	if err != nil {
		t.Fatal(err)
	}
	mapper, err := cursor.NewMapper(cursor.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	disp, err := dispatch.New(dispatch.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	rec := inject.NewRecorder()
	m := metrics.NewManager()

	p, err := New(Components{
		Classifier: classifier,
		Stabilizer: stab,
		Mapper:     mapper,
		Dispatcher: disp,
		Injector:   rec,
		Logger:     logging.Discard(),
		Metrics:    m,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &harness{p: p, rec: rec, metrics: m, now: time.Unix(5000, 0)}
}

func (h *harness) pose(s landmark.Shape, n int) []dispatch.Event {
	var events []dispatch.Event
	for i := 0; i < n; i++ {
		h.now = h.now.Add(40 * time.Millisecond)
		events = append(events, h.p.Process(landmark.Pose(s, 0.5, 0.45).Frame(h.now))...)
	}
	return events
}

func (h *harness) absent(n int) []dispatch.Event {
	var events []dispatch.Event
	for i := 0; i < n; i++ {
		h.now = h.now.Add(40 * time.Millisecond)
		events = append(events, h.p.Process(landmark.Absent(h.now))...)
	}
	return events
}

func buttonEvents(events []dispatch.Event) []dispatch.Event {
	var out []dispatch.Event
	for _, e := range events {
		if e.Kind == dispatch.ButtonDown || e.Kind == dispatch.ButtonUp {
			out = append(out, e)
		}
	}
	return out
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

type panicClassifier struct{ calls int }

func (c *panicClassifier) Classify(f landmark.Frame) (gesture.Raw, error) {
	c.calls++
	if c.calls == 1 {
		panic("boom")
	}
	return gesture.Raw{Label: gesture.None}, nil
}

type errClassifier struct{}

func (errClassifier) Classify(landmark.Frame) (gesture.Raw, error) {
	return gesture.Raw{}, errors.New("model unavailable")
}

func TestNew_MissingComponents(t *testing.T) {
	if _, err := New(Components{}); !errors.Is(err, ErrMissingComponent) {
		t.Errorf("New() error = %v, want ErrMissingComponent", err)
	}
}

func TestPipeline_ClickScenario(t *testing.T) {
	h := newHarness(t, nil)

	h.pose(landmark.ShapeV, 5)
	if got := h.p.Snapshot(); got.Stable != gesture.Point || got.State != dispatch.Pointing {
		t.Fatalf("after V: stable=%v state=%v", got.Stable, got.State)
	}

	h.pose(landmark.ShapeMiddleOnly, 10)
	if got := h.p.Snapshot().State; got != dispatch.Pressed {
		t.Fatalf("after middle finger: state = %v, want PRESSED", got)
	}

	h.pose(landmark.ShapeV, 10)

	got := buttonEvents(h.rec.Events())
	want := []dispatch.Event{dispatch.Down(dispatch.Left), dispatch.Up(dispatch.Left)}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("button events = %v, want %v", got, want)
	}
	if h.p.Snapshot().State != dispatch.Idle {
		t.Errorf("final state = %v, want IDLE", h.p.Snapshot().State)
	}
}

func TestPipeline_DragReleasedWhenHandLost(t *testing.T) {
	h := newHarness(t, nil)

	h.pose(landmark.ShapeV, 5)
	h.pose(landmark.ShapeFist, 5)
	if got := h.p.Snapshot().State; got != dispatch.Dragging {
		t.Fatalf("state = %v, want DRAGGING", got)
	}

	h.absent(20) // 800ms, past the 500ms timeout

	got := buttonEvents(h.rec.Events())
	want := []dispatch.Event{dispatch.Down(dispatch.Left), dispatch.Up(dispatch.Left)}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("button events = %v, want %v", got, want)
	}
	if h.p.Snapshot().State != dispatch.Idle {
		t.Errorf("state = %v, want IDLE", h.p.Snapshot().State)
	}
}

func TestPipeline_InvalidFrame(t *testing.T) {
	h := newHarness(t, nil)
	h.pose(landmark.ShapeV, 5)
	before := h.p.Snapshot().Position

	bad := landmark.Frame{Timestamp: h.now.Add(40 * time.Millisecond), HandPresent: true, Keypoints: make([]landmark.Point3D, 4)}
	h.p.Process(bad)

	snap := h.p.Snapshot()
	if snap.HandPresent {
		t.Error("malformed frame reported as hand present")
	}
	if snap.Position != before {
		t.Errorf("cursor moved on malformed frame: %v -> %v", before, snap.Position)
	}
	if v := counterValue(t, h.metrics.Registry(), "mudra_pipeline_frames_invalid_total"); v != 1 {
		t.Errorf("frames_invalid_total = %v, want 1", v)
	}
}

func TestPipeline_DegeneratePalmIsHandAbsent(t *testing.T) {
	h := newHarness(t, nil)
	h.pose(landmark.ShapeV, 5)
	if got := h.p.Snapshot().State; got != dispatch.Pointing {
		t.Fatalf("state = %v, want POINTING", got)
	}
	before := h.p.Snapshot().Position
	h.rec.Reset()

	// Well-formed but collapsed: every keypoint on the same spot, away from
	// the current cursor target.
	collapsed := make([]landmark.Point3D, landmark.NumLandmarks)
	for i := range collapsed {
		collapsed[i] = landmark.Point3D{X: 0.75, Y: 0.7}
	}
	for i := 0; i < 20; i++ {
		h.now = h.now.Add(40 * time.Millisecond)
		h.p.Process(landmark.Frame{Timestamp: h.now, HandPresent: true, Keypoints: collapsed, Score: 0.9})
	}

	snap := h.p.Snapshot()
	if snap.HandPresent {
		t.Error("degenerate frame reported as hand present")
	}
	if snap.Position != before {
		t.Errorf("cursor moved on degenerate frames: %v -> %v", before, snap.Position)
	}
	for _, e := range h.rec.Events() {
		if e.Kind == dispatch.Move || e.Kind == dispatch.DragMove {
			t.Errorf("degenerate frame injected %v", e)
		}
	}
	if snap.State != dispatch.Idle {
		t.Errorf("state = %v, want IDLE", snap.State)
	}
	if v := counterValue(t, h.metrics.Registry(), "mudra_pipeline_frames_invalid_total"); v != 20 {
		t.Errorf("frames_invalid_total = %v, want 20", v)
	}
}

func TestPipeline_RecoversFromPanic(t *testing.T) {
	h := newHarness(t, &panicClassifier{})

	if events := h.absent(1); events != nil {
		t.Errorf("panicking frame returned %v", events)
	}
	h.absent(1)

	if v := counterValue(t, h.metrics.Registry(), "mudra_pipeline_frame_panics_total"); v != 1 {
		t.Errorf("frame_panics_total = %v, want 1", v)
	}
	if v := counterValue(t, h.metrics.Registry(), "mudra_pipeline_frames_processed_total"); v != 1 {
		t.Errorf("frames_processed_total = %v, want 1", v)
	}
}

func TestPipeline_ClassifierErrorTreatedAsNone(t *testing.T) {
	h := newHarness(t, errClassifier{})
	h.pose(landmark.ShapeV, 5)

	if got := h.p.Snapshot().Stable; got != gesture.None {
		t.Errorf("stable = %v, want NONE", got)
	}
}

func TestPipeline_InjectionFailureContinues(t *testing.T) {
	h := newHarness(t, nil)
	h.rec.FailOn(dispatch.ButtonDown)

	h.pose(landmark.ShapeV, 5)
	h.pose(landmark.ShapeMiddleOnly, 5)
	h.pose(landmark.ShapeV, 10)

	if v := counterValue(t, h.metrics.Registry(), "mudra_pipeline_injection_errors_total"); v != 1 {
		t.Errorf("injection_errors_total = %v, want 1", v)
	}
	if h.p.Snapshot().State != dispatch.Idle {
		t.Errorf("state = %v, want IDLE", h.p.Snapshot().State)
	}
}

func TestPipeline_GestureHookAndSubscribe(t *testing.T) {
	h := newHarness(t, nil)

	var changes []gesture.Label
	h.p.OnGestureChange(func(prev, next gesture.Label) {
		changes = append(changes, next)
	})
	ch, unsubscribe := h.p.Subscribe(64)

	h.pose(landmark.ShapeOKPinch, 5)
	h.absent(10)

	if len(changes) != 2 || changes[0] != gesture.Pinch || changes[1] != gesture.None {
		t.Errorf("hook saw %v, want [PINCH NONE]", changes)
	}

	unsubscribe()
	n := 0
	for range ch {
		n++
	}
	if n != 15 {
		t.Errorf("observer received %d snapshots, want 15", n)
	}
	unsubscribe()
}

func TestPipeline_RunReleasesOnCancel(t *testing.T) {
	h := newHarness(t, nil)
	h.pose(landmark.ShapeV, 5)
	h.pose(landmark.ShapeFist, 5)

	slot := NewSlot()
	ctx, cancel := context.WithCancel(context.Background())
	snaps, unsubscribe := h.p.Subscribe(16)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		h.p.Run(ctx, slot)
		close(done)
	}()

	slot.Put(landmark.Pose(landmark.ShapeFist, 0.6, 0.45).Frame(h.now.Add(40 * time.Millisecond)))
	select {
	case <-snaps:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not consume the frame")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	got := buttonEvents(h.rec.Events())
	if len(got) != 2 || got[1] != dispatch.Up(dispatch.Left) {
		t.Errorf("button events = %v, want down then up", got)
	}
	if h.p.Snapshot().State != dispatch.Idle {
		t.Errorf("state = %v, want IDLE", h.p.Snapshot().State)
	}
}
