// Package app wires the camera, hand detector and gesture pipeline into the
// running controller.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/cursor"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/inject"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/pipeline"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

var (
	// ErrAlreadyRunning is returned by Start on a running App.
	ErrAlreadyRunning = errors.New("app already running")
	// ErrCameraOpen wraps the camera error that prevented Start.
	ErrCameraOpen = errors.New("camera open failed")
)

// Config holds the collaborators of an App. Settings, Camera and Detector
// are required. A nil Injector records events without injecting them.
type Config struct {
	Settings *config.Config
	Camera   capture.Camera
	Detector detector.Detector
	Injector inject.Injector
	Store    *store.Store
	Plugins  *plugin.Manager
	Metrics  *metrics.Manager
	Logger   logrus.FieldLogger

	// ScreenWidth and ScreenHeight size the cursor mapping.
	ScreenWidth  int
	ScreenHeight int
}

// App owns the capture loop and the gesture pipeline. The producer reads
// the camera and fills the slot; the consumer runs the pipeline.
type App struct {
	settings *config.Config
	camera   capture.Camera
	motion   *capture.MotionDetector
	governor *capture.Governor
	detector detector.Detector
	store    *store.Store
	metrics  *metrics.Manager
	log      *logrus.Entry

	pipeline  *pipeline.Pipeline
	templates *gesture.TemplateClassifier
	slot      *pipeline.Slot
	preview   *capture.Preview
	runner    *plugin.Runner

	readLog    *logging.Throttle
	detectLog  *logging.Throttle
	previewLog *logging.Throttle

	enabled atomic.Bool
	govMu   sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an App and its pipeline. The enabled flag is restored from the
// store when one is configured.
func New(cfg Config) (*App, error) {
	switch {
	case cfg.Settings == nil:
		return nil, fmt.Errorf("%w: settings", pipeline.ErrMissingComponent)
	case cfg.Camera == nil:
		return nil, fmt.Errorf("%w: camera", pipeline.ErrMissingComponent)
	case cfg.Detector == nil:
		return nil, fmt.Errorf("%w: detector", pipeline.ErrMissingComponent)
	}

	s := cfg.Settings
	a := &App{
		settings:   s,
		camera:     cfg.Camera,
		motion:     capture.NewMotionDetector(s.MotionThreshold),
		governor:   capture.NewGovernor(s.IdleFPS, s.ActiveFPS, s.IdleTimeout),
		detector:   cfg.Detector,
		store:      cfg.Store,
		metrics:    cfg.Metrics,
		log:        logging.Component(cfg.Logger, "app"),
		slot:       pipeline.NewSlot(),
		preview:    capture.NewPreview(),
		readLog:    logging.NewThrottle(warnInterval, 1),
		detectLog:  logging.NewThrottle(warnInterval, 1),
		previewLog: logging.NewThrottle(warnInterval, 1),
	}

	var classifier gesture.Classifier
	if s.Classifier == config.ClassifierTemplates {
		a.templates = gesture.NewTemplateClassifier()
		classifier = a.templates
	} else {
		classifier = gesture.NewRuleClassifier(gesture.DefaultRuleConfig())
	}

	stabilizer, err := gesture.NewStabilizer(s.StabilizerConfig())
	if err != nil {
		return nil, fmt.Errorf("stabilizer: %w", err)
	}
	mapper, err := cursor.NewMapper(s.CursorConfig(cfg.ScreenWidth, cfg.ScreenHeight))
	if err != nil {
		return nil, fmt.Errorf("cursor mapper: %w", err)
	}
	dispatcher, err := dispatch.New(s.DispatchConfig())
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}

	injector := cfg.Injector
	if injector == nil {
		injector = inject.NewRecorder()
	}

	a.pipeline, err = pipeline.New(pipeline.Components{
		Classifier: classifier,
		Stabilizer: stabilizer,
		Mapper:     mapper,
		Dispatcher: dispatcher,
		Injector:   injector,
		Logger:     cfg.Logger,
		Metrics:    cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Store != nil && cfg.Plugins != nil {
		a.runner = plugin.NewRunner(cfg.Store.Bindings(), cfg.Plugins, plugin.RunnerConfig{
			Cooldown: s.Bindings.Cooldown,
			Timeout:  s.Bindings.Timeout,
		}, cfg.Logger, cfg.Metrics)
		a.pipeline.OnGestureChange(a.onGestureChange)
	}

	enabled := true
	if cfg.Store != nil {
		if enabled, err = cfg.Store.Settings().GetBool(store.SettingEnabled, true); err != nil {
			a.log.WithError(err).Warn("failed to read enabled setting, defaulting to enabled")
			enabled = true
		}
	}
	a.enabled.Store(enabled)

	return a, nil
}

// LoadTemplates reloads stored templates into the template classifier. It
// is a no-op with the rule classifier or without a store.
func (a *App) LoadTemplates() error {
	if a.templates == nil || a.store == nil {
		return nil
	}
	templates, err := a.store.Templates().Classifier()
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}
	a.templates.Replace(templates)
	a.log.WithField("count", a.templates.Len()).Info("templates loaded")
	return nil
}

// ReloadTemplates is LoadTemplates for callbacks that cannot return errors.
func (a *App) ReloadTemplates() {
	if err := a.LoadTemplates(); err != nil {
		a.log.WithError(err).Error("template reload failed")
	}
}

// ReloadBindings refreshes the binding runner after a binding write.
func (a *App) ReloadBindings() {
	if a.runner == nil {
		return
	}
	if err := a.runner.Reload(); err != nil {
		a.log.WithError(err).Error("binding reload failed")
	}
}

// Start opens the camera and launches the producer and the pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return ErrAlreadyRunning
	}
	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("%w: %w", ErrCameraOpen, err)
	}
	a.govMu.Lock()
	fps := a.governor.FPS()
	a.govMu.Unlock()
	a.camera.SetFPS(fps)
	a.motion.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.pipeline.Run(ctx, a.slot)
	}()
	go func() {
		defer a.wg.Done()
		a.produce(ctx)
	}()

	a.log.WithFields(logrus.Fields{
		"enabled":    a.Enabled(),
		"classifier": a.settings.Classifier,
		"fps":        fps,
	}).Info("detection started")
	return nil
}

// Stop halts both loops, releases held buttons and closes the camera. It is
// safe to call on a stopped App.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel == nil {
		return
	}
	a.cancel()
	a.wg.Wait()
	a.cancel = nil

	if err := a.camera.Close(); err != nil {
		a.log.WithError(err).Warn("error closing camera")
	}
	a.log.Info("detection stopped")
}

// Close stops the App and releases the detector and plugin runner.
func (a *App) Close() error {
	a.Stop()
	if a.runner != nil {
		a.runner.Close()
	}
	a.motion.Close()
	return a.detector.Close()
}

// Running reports whether Start has been called without Stop.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

// Enabled reports whether gestures currently control the pointer.
func (a *App) Enabled() bool {
	return a.enabled.Load()
}

// SetEnabled turns gesture control on or off and persists the choice.
// Disabling feeds hand-absent frames, so held buttons are released by the
// hand-lost timeout.
func (a *App) SetEnabled(enabled bool) {
	if a.enabled.Swap(enabled) == enabled {
		return
	}
	if a.store != nil {
		if err := a.store.Settings().SetBool(store.SettingEnabled, enabled); err != nil {
			a.log.WithError(err).Warn("failed to persist enabled setting")
		}
	}
	a.log.WithField("enabled", enabled).Info("gesture control toggled")
}

// Snapshot returns the pipeline state after the latest frame.
func (a *App) Snapshot() pipeline.Snapshot {
	return a.pipeline.Snapshot()
}

// Subscribe registers a snapshot observer.
func (a *App) Subscribe(buffer int) (<-chan pipeline.Snapshot, func()) {
	return a.pipeline.Subscribe(buffer)
}

// Mode returns the current capture mode.
func (a *App) Mode() capture.Mode {
	a.govMu.Lock()
	defer a.govMu.Unlock()
	return a.governor.Mode()
}

// Preview returns the live camera preview fed by the capture loop.
func (a *App) Preview() *capture.Preview {
	return a.preview
}

// Runner returns the binding runner, or nil without a store and plugins.
func (a *App) Runner() *plugin.Runner {
	return a.runner
}

func (a *App) onGestureChange(_, next gesture.Label) {
	if dispatch.Consumes(next) {
		return
	}
	res := a.runner.Trigger(next)
	a.log.WithFields(logrus.Fields{
		"gesture": next.String(),
		"result":  string(res),
	}).Debug("binding trigger")
}
