// Package pipeline runs the per-frame gesture control loop: classify,
// stabilize, map the cursor, dispatch actions and inject them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/mudra/internal/cursor"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/inject"
	"github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/metrics"
)

// ErrMissingComponent is returned by New when a required stage is nil.
var ErrMissingComponent = errors.New("pipeline component missing")

// warnInterval is the minimum spacing of repeated per-frame warnings.
const warnInterval = 5 * time.Second

var allStates = []string{
	dispatch.Idle.String(),
	dispatch.Pointing.String(),
	dispatch.Pressed.String(),
	dispatch.Dragging.String(),
	dispatch.Scrolling.String(),
}

// Components are the stages of a pipeline. Logger and Metrics are optional.
type Components struct {
	Classifier gesture.Classifier
	Stabilizer *gesture.Stabilizer
	Mapper     *cursor.Mapper
	Dispatcher *dispatch.Dispatcher
	Injector   inject.Injector
	Logger     logrus.FieldLogger
	Metrics    *metrics.Manager
}

// Snapshot is the observable state after a frame.
type Snapshot struct {
	Timestamp   time.Time        `json:"timestamp"`
	HandPresent bool             `json:"hand_present"`
	Raw         gesture.Raw      `json:"raw"`
	Stable      gesture.Label    `json:"stable"`
	State       dispatch.State   `json:"state"`
	Position    cursor.Position  `json:"position"`
	Events      []dispatch.Event `json:"events,omitempty"`
}

// GestureHook is called on every stable gesture change.
type GestureHook func(prev, next gesture.Label)

// Pipeline owns the stabilizer, mapper and dispatcher state. Process and Run
// must be driven from a single goroutine; Snapshot, Subscribe and
// OnGestureChange are safe from any goroutine.
type Pipeline struct {
	classifier gesture.Classifier
	stabilizer *gesture.Stabilizer
	mapper     *cursor.Mapper
	dispatcher *dispatch.Dispatcher
	injector   inject.Injector
	log        *logrus.Entry
	metrics    *metrics.Manager

	invalidLog *logging.Throttle
	injectLog  *logging.Throttle

	mu        sync.RWMutex
	snap      Snapshot
	observers map[int]chan Snapshot
	nextID    int
	hook      GestureHook
}

// New assembles a pipeline.
func New(c Components) (*Pipeline, error) {
	switch {
	case c.Classifier == nil:
		return nil, fmt.Errorf("%w: classifier", ErrMissingComponent)
	case c.Stabilizer == nil:
		return nil, fmt.Errorf("%w: stabilizer", ErrMissingComponent)
	case c.Mapper == nil:
		return nil, fmt.Errorf("%w: mapper", ErrMissingComponent)
	case c.Dispatcher == nil:
		return nil, fmt.Errorf("%w: dispatcher", ErrMissingComponent)
	case c.Injector == nil:
		return nil, fmt.Errorf("%w: injector", ErrMissingComponent)
	}

	p := &Pipeline{
		classifier: c.Classifier,
		stabilizer: c.Stabilizer,
		mapper:     c.Mapper,
		dispatcher: c.Dispatcher,
		injector:   c.Injector,
		log:        logging.Component(c.Logger, "pipeline"),
		metrics:    c.Metrics,
		invalidLog: logging.NewThrottle(warnInterval, 1),
		injectLog:  logging.NewThrottle(warnInterval, 1),
		observers:  make(map[int]chan Snapshot),
	}
	p.snap = Snapshot{State: dispatch.Idle, Position: c.Mapper.Position()}
	return p, nil
}

// Process runs one frame through every stage and returns the events that
// were dispatched. A failure in one frame never stops later frames.
func (p *Pipeline) Process(frame landmark.Frame) (events []dispatch.Event) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.metrics.FramePanic()
			p.log.WithField("panic", r).Error("frame processing panicked")
			events = nil
		}
	}()

	if frame.HandPresent && frame.Validate() != nil {
		p.metrics.FrameInvalid()
		p.invalidLog.Warn(p.log.WithField("keypoints", len(frame.Keypoints)), "malformed landmark frame, treating as hand absent")
		frame = landmark.Absent(frame.Timestamp)
	}

	raw, err := p.classifier.Classify(frame)
	if err != nil {
		p.invalidLog.Warn(p.log.WithError(err), "classification failed")
		raw = gesture.Raw{Label: gesture.None}
		if errors.Is(err, landmark.ErrInvalidFrame) {
			p.metrics.FrameInvalid()
			frame = landmark.Absent(frame.Timestamp)
		}
	}

	prev := p.stabilizer.Stable()
	stable, changed := p.stabilizer.Observe(raw)

	pos, moved := p.mapper.Map(frame)

	now := frame.Timestamp
	if now.IsZero() {
		now = start
	}
	events = p.dispatcher.Step(dispatch.Input{
		Now:         now,
		HandPresent: frame.HandPresent,
		Gesture:     stable,
		Changed:     changed,
		Pos:         pos,
		Moved:       moved,
	})
	p.deliver(events)

	if changed {
		p.metrics.GestureChanged(stable.String())
		p.log.WithFields(logrus.Fields{
			"gesture": stable.String(),
			"state":   p.dispatcher.State().String(),
		}).Debug("stable gesture changed")
	}
	p.metrics.SetState(p.dispatcher.State().String(), allStates)
	p.metrics.ObserveFrame(time.Since(start), frame.HandPresent)

	p.publish(Snapshot{
		Timestamp:   now,
		HandPresent: frame.HandPresent,
		Raw:         raw,
		Stable:      stable,
		State:       p.dispatcher.State(),
		Position:    pos,
		Events:      events,
	})

	if changed {
		p.mu.RLock()
		hook := p.hook
		p.mu.RUnlock()
		if hook != nil {
			hook(prev, stable)
		}
	}

	return events
}

// Run processes frames from slot until ctx is done, then releases any held
// buttons.
func (p *Pipeline) Run(ctx context.Context, slot *Slot) {
	p.log.Info("pipeline started")
	for {
		frame, err := slot.Take(ctx)
		if err != nil {
			p.Shutdown()
			p.log.Info("pipeline stopped")
			return
		}
		p.Process(frame)
	}
}

// Shutdown releases held buttons and returns the dispatcher to Idle.
func (p *Pipeline) Shutdown() []dispatch.Event {
	events := p.dispatcher.Release()
	p.deliver(events)
	if len(events) > 0 {
		p.log.WithField("events", len(events)).Info("released held buttons")
	}

	p.mu.RLock()
	snap := p.snap
	p.mu.RUnlock()
	snap.State = p.dispatcher.State()
	snap.Events = events
	p.publish(snap)
	return events
}

// Snapshot returns the state after the most recent frame.
func (p *Pipeline) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Subscribe registers an observer. Snapshots are dropped for observers whose
// buffer is full. The returned function unsubscribes and closes the channel.
func (p *Pipeline) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.observers[id] = ch
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.observers, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

// OnGestureChange sets the hook called on stable gesture changes. The hook
// runs on the pipeline goroutine and must not block.
func (p *Pipeline) OnGestureChange(h GestureHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hook = h
}

func (p *Pipeline) deliver(events []dispatch.Event) {
	for _, e := range events {
		p.metrics.EventEmitted(e.Kind.String())
		if err := inject.Apply(p.injector, e); err != nil {
			p.metrics.InjectionFailed()
			p.injectLog.Warn(p.log.WithError(err), "input injection failed")
		}
	}
}

func (p *Pipeline) publish(s Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = s
	for _, ch := range p.observers {
		select {
		case ch <- s:
		default:
		}
	}
}
