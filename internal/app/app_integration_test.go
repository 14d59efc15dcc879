package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/inject"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// flickerCamera alternates black and white frames so every read after the
// first counts as motion.
func flickerCamera(t *testing.T) *capture.MockCamera {
	t.Helper()
	black := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	white := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), 480, 640, gocv.MatTypeCV8UC3)
	t.Cleanup(func() {
		black.Close()
		white.Close()
	})
	return capture.NewMockCamera([]*gocv.Mat{&black, &white}, true)
}

type brokenCamera struct {
	capture.Camera
}

func (brokenCamera) Open() error { return errors.New("no device") }

type harness struct {
	app      *App
	camera   *capture.MockCamera
	detector *detector.MockDetector
	recorder *inject.Recorder
	now      time.Time
}

func newHarness(t *testing.T, cam *capture.MockCamera, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		camera:   cam,
		detector: detector.NewMockDetector(),
		recorder: inject.NewRecorder(),
		now:      time.Now(),
	}
	cfg := Config{
		Settings:     config.New(),
		Camera:       cam,
		Detector:     h.detector,
		Injector:     h.recorder,
		Logger:       logging.Discard(),
		ScreenWidth:  1920,
		ScreenHeight: 1080,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	a, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	h.app = a
	return h
}

// step runs one producer tick and feeds the produced frame to the pipeline,
// the way Start does on two goroutines.
func (h *harness) step(t *testing.T) {
	t.Helper()
	h.now = h.now.Add(40 * time.Millisecond)
	h.app.tick(h.now)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	f, err := h.app.slot.Take(ctx)
	if err != nil {
		t.Fatalf("no frame produced: %v", err)
	}
	h.app.pipeline.Process(f)
}

func (h *harness) moves() int {
	n := 0
	for _, e := range h.recorder.Events() {
		if e.Kind == dispatch.Move {
			n++
		}
	}
	return n
}

func TestNew_MissingComponents(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"settings", Config{Camera: capture.NewBlankCamera(), Detector: detector.NewMockDetector()}},
		{"camera", Config{Settings: config.New(), Detector: detector.NewMockDetector()}},
		{"detector", Config{Settings: config.New(), Camera: capture.NewBlankCamera()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestApp_PointingMovesCursor(t *testing.T) {
	cam := flickerCamera(t)
	cam.Open()
	h := newHarness(t, cam, nil)

	for i := 0; i < 12; i++ {
		h.detector.SetGesture(gesture.Point, 0.35+0.02*float64(i), 0.5)
		h.step(t)
	}

	if got := h.app.Mode(); got != capture.Active {
		t.Errorf("Mode() = %v, want active", got)
	}
	snap := h.app.Snapshot()
	if snap.Stable != gesture.Point || snap.State != dispatch.Pointing {
		t.Errorf("snapshot = %v/%v, want POINT/POINTING", snap.Stable, snap.State)
	}
	if h.moves() == 0 {
		t.Error("no cursor moves injected while pointing")
	}
}

func TestApp_IdleSkipsDetector(t *testing.T) {
	cam := capture.NewBlankCamera()
	cam.Open()
	h := newHarness(t, cam, nil)
	h.detector.SetGesture(gesture.Point, 0.5, 0.5)

	for i := 0; i < 5; i++ {
		h.step(t)
	}

	if h.app.Mode() != capture.Idle {
		t.Errorf("Mode() = %v, want idle without motion", h.app.Mode())
	}
	if h.detector.Calls() != 0 {
		t.Errorf("detector called %d times in idle mode", h.detector.Calls())
	}
	if h.app.Snapshot().HandPresent {
		t.Error("idle frames should be hand absent")
	}
}

func TestApp_Disabled(t *testing.T) {
	cam := flickerCamera(t)
	cam.Open()
	h := newHarness(t, cam, nil)
	h.detector.SetGesture(gesture.Point, 0.5, 0.5)

	h.app.SetEnabled(false)
	for i := 0; i < 5; i++ {
		h.step(t)
	}

	if cam.Reads() != 0 {
		t.Errorf("camera read %d times while disabled", cam.Reads())
	}
	if len(h.recorder.Events()) != 0 {
		t.Errorf("events injected while disabled: %v", h.recorder.Events())
	}
}

func TestApp_DetectorErrorIsHandAbsent(t *testing.T) {
	cam := flickerCamera(t)
	cam.Open()
	h := newHarness(t, cam, nil)
	h.detector.SetError(errors.New("model crashed"))

	for i := 0; i < 4; i++ {
		h.step(t)
	}

	if h.app.Snapshot().HandPresent {
		t.Error("detector failure produced a hand-present frame")
	}
}

func TestApp_DroppedFramesCounted(t *testing.T) {
	m := metrics.NewManager()
	cam := flickerCamera(t)
	cam.Open()
	h := newHarness(t, cam, func(c *Config) { c.Metrics = m })

	// Two ticks without a consumer: the second replaces the first.
	h.app.tick(h.now)
	h.app.tick(h.now.Add(40 * time.Millisecond))

	out, err := m.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range out {
		if mf.GetName() == "mudra_pipeline_frames_dropped_total" {
			if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 1 {
				t.Errorf("frames dropped = %v, want 1", v)
			}
			return
		}
	}
	t.Error("frames dropped counter not found")
}

func TestApp_Preview(t *testing.T) {
	cam := flickerCamera(t)
	cam.Open()
	h := newHarness(t, cam, nil)
	h.detector.SetGesture(gesture.Point, 0.5, 0.5)

	h.step(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, _, err := h.app.Preview().Next(ctx, 0); err == nil {
		t.Fatal("preview encoded with nobody watching")
	}

	release := h.app.Preview().Watch()
	defer release()
	for i := 0; i < 3; i++ {
		h.step(t)
	}

	jpeg, seq, err := h.app.Preview().Next(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if seq != 3 || len(jpeg) < 2 || jpeg[0] != 0xff || jpeg[1] != 0xd8 {
		t.Errorf("preview seq = %d, %d bytes; want 3 jpeg frames", seq, len(jpeg))
	}
}

func TestApp_StartStop(t *testing.T) {
	cam := flickerCamera(t)
	h := newHarness(t, cam, nil)
	h.detector.SetGesture(gesture.Point, 0.5, 0.5)

	if err := h.app.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := h.app.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for h.app.Snapshot().State != dispatch.Pointing {
		if time.Now().After(deadline) {
			t.Fatalf("never reached POINTING, snapshot = %+v", h.app.Snapshot())
		}
		time.Sleep(20 * time.Millisecond)
	}

	h.app.Stop()
	if h.app.Running() || cam.IsOpen() {
		t.Error("Stop() left the app running or the camera open")
	}
	h.app.Stop()
}

func TestApp_StartCameraFailure(t *testing.T) {
	a, err := New(Config{
		Settings: config.New(),
		Camera:   brokenCamera{},
		Detector: detector.NewMockDetector(),
		Logger:   logging.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := a.Start(); !errors.Is(err, ErrCameraOpen) {
		t.Errorf("Start() error = %v, want ErrCameraOpen", err)
	}
	if a.Running() {
		t.Error("app running after failed Start")
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestApp_EnabledPersists(t *testing.T) {
	s := newTestStore(t)
	h := newHarness(t, capture.NewBlankCamera(), func(c *Config) { c.Store = s })

	if !h.app.Enabled() {
		t.Fatal("fresh store should start enabled")
	}
	h.app.SetEnabled(false)

	again := newHarness(t, capture.NewBlankCamera(), func(c *Config) { c.Store = s })
	if again.app.Enabled() {
		t.Error("disabled state not restored from the store")
	}
}

func TestApp_LoadTemplates(t *testing.T) {
	s := newTestStore(t)
	hand := detector.PresetLandmarks(gesture.Drag)
	if err := s.Templates().Create(&store.Template{
		Name:      "fist",
		Label:     gesture.Drag,
		Tolerance: 0.5,
		Landmarks: hand.Normalize().Points[:],
	}); err != nil {
		t.Fatal(err)
	}

	cam := flickerCamera(t)
	cam.Open()
	h := newHarness(t, cam, func(c *Config) {
		c.Store = s
		c.Settings.Classifier = config.ClassifierTemplates
	})
	if err := h.app.LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}
	if h.app.templates.Len() != 1 {
		t.Fatalf("templates loaded = %d, want 1", h.app.templates.Len())
	}

	h.detector.SetGesture(gesture.Drag, 0.5, 0.5)
	for i := 0; i < 8; i++ {
		h.step(t)
	}
	if got := h.app.Snapshot().Stable; got != gesture.Drag {
		t.Errorf("stable = %v, want DRAG from the stored template", got)
	}
}

func TestApp_BindingRunsPlugin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell plugins need a POSIX shell")
	}

	root := t.TempDir()
	dir := filepath.Join(root, "echo")
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, plugin.ManifestFile), []byte(`{"name":"echo","executable":"run.sh","actions":["go"]}`), 0644)
	os.WriteFile(filepath.Join(dir, "run.sh"), []byte("#!/bin/sh\ncat > /dev/null\necho '{\"success\":true}'\n"), 0755)

	plugins := plugin.NewManager(root, logging.Discard())
	if err := plugins.Discover(); err != nil {
		t.Fatal(err)
	}

	s := newTestStore(t)
	if err := s.Bindings().Create(&store.Binding{
		Label:      gesture.Pinch,
		PluginName: "echo",
		ActionName: "go",
		Enabled:    true,
	}); err != nil {
		t.Fatal(err)
	}

	cam := flickerCamera(t)
	cam.Open()
	h := newHarness(t, cam, func(c *Config) {
		c.Store = s
		c.Plugins = plugins
	})

	h.detector.SetGesture(gesture.Pinch, 0.5, 0.5)
	for i := 0; i < 8; i++ {
		h.step(t)
	}

	r := h.app.Runner()
	r.Wait()
	if res, err := r.Last(); res != plugin.ResultOK {
		t.Errorf("Last() = %v, %v, want ok", res, err)
	}
	for _, e := range h.recorder.Events() {
		if e.Kind == dispatch.ButtonDown {
			t.Errorf("pinch injected %v", e)
		}
	}
}
