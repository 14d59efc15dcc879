package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/store"
)

// ErrUnknownAction is returned when a binding names an action its plugin
// does not declare.
var ErrUnknownAction = errors.New("unknown plugin action")

// Result is the outcome of a trigger, also used as the metrics label.
type Result string

const (
	ResultStarted   Result = "started"
	ResultUnbound   Result = "unbound"
	ResultDisabled  Result = "disabled"
	ResultBusy      Result = "busy"
	ResultThrottled Result = "throttled"
	ResultOK        Result = "ok"
	ResultFailed    Result = "failed"
)

// BindingSource lists the stored bindings.
type BindingSource interface {
	List() ([]*store.Binding, error)
}

// PluginSource resolves a plugin by name.
type PluginSource interface {
	Get(name string) (*Plugin, error)
}

// RunnerConfig tunes binding execution.
type RunnerConfig struct {
	// Cooldown is the minimum spacing between two started runs.
	Cooldown time.Duration
	// Timeout bounds one plugin run.
	Timeout time.Duration
}

// DefaultRunnerConfig returns a 1s cooldown and the default timeout.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{Cooldown: time.Second, Timeout: DefaultTimeout}
}

// Runner executes the plugin action bound to a stable gesture. Runs are
// asynchronous and at most one is in flight; triggers arriving while busy or
// inside the cooldown are dropped. Bindings are served from memory and
// refreshed by Reload.
type Runner struct {
	bindings BindingSource
	plugins  PluginSource
	executor *Executor
	limiter  *rate.Limiter
	log      *logrus.Entry
	metrics  *metrics.Manager

	ctx    context.Context
	cancel context.CancelFunc
	busy   atomic.Bool
	wg     sync.WaitGroup

	cacheMu sync.RWMutex
	cache   map[gesture.Label]*store.Binding

	mu      sync.Mutex
	last    Result
	lastErr error
}

// NewRunner creates a Runner and loads the current bindings. metrics may be
// nil.
func NewRunner(bindings BindingSource, plugins PluginSource, cfg RunnerConfig, logger logrus.FieldLogger, m *metrics.Manager) *Runner {
	limit := rate.Inf
	if cfg.Cooldown > 0 {
		limit = rate.Every(cfg.Cooldown)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		bindings: bindings,
		plugins:  plugins,
		executor: NewExecutor(cfg.Timeout),
		limiter:  rate.NewLimiter(limit, 1),
		log:      logging.Component(logger, "bindings"),
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		cache:    make(map[gesture.Label]*store.Binding),
	}
	if err := r.Reload(); err != nil {
		r.log.WithError(err).Warn("initial binding load failed")
	}
	return r
}

// Reload replaces the cached bindings with the stored ones. On error the
// previous bindings stay in effect.
func (r *Runner) Reload() error {
	list, err := r.bindings.List()
	if err != nil {
		return fmt.Errorf("load bindings: %w", err)
	}
	cache := make(map[gesture.Label]*store.Binding, len(list))
	for _, b := range list {
		cache[b.Label] = b
	}

	r.cacheMu.Lock()
	r.cache = cache
	r.cacheMu.Unlock()

	r.log.WithField("count", len(cache)).Debug("bindings loaded")
	return nil
}

// Trigger starts the action bound to label, if any. It reads only the cached
// bindings and never blocks on the plugin; the returned Result says whether a
// run was started.
func (r *Runner) Trigger(label gesture.Label) Result {
	log := r.log.WithField("gesture", label.String())

	r.cacheMu.RLock()
	binding := r.cache[label]
	r.cacheMu.RUnlock()
	if binding == nil {
		return ResultUnbound
	}
	if !binding.Enabled {
		return r.finish(ResultDisabled, nil)
	}

	plugin, err := r.plugins.Get(binding.PluginName)
	if err != nil {
		log.WithError(err).WithField("plugin", binding.PluginName).Warn("bound plugin unavailable")
		return r.finish(ResultFailed, err)
	}
	if !plugin.HasAction(binding.ActionName) {
		err := fmt.Errorf("%w: %s/%s", ErrUnknownAction, binding.PluginName, binding.ActionName)
		log.WithError(err).Warn("bound action unavailable")
		return r.finish(ResultFailed, err)
	}

	if !r.busy.CompareAndSwap(false, true) {
		return r.finish(ResultBusy, nil)
	}
	if !r.limiter.Allow() {
		r.busy.Store(false)
		return r.finish(ResultThrottled, nil)
	}

	req := &Request{
		Action:  binding.ActionName,
		Gesture: label.String(),
		Config:  binding.Config,
	}

	r.metrics.ActionTriggered(string(ResultStarted))
	r.wg.Add(1)
	go r.run(log.WithField("action", binding.PluginName+"/"+binding.ActionName), plugin, req)

	return ResultStarted
}

func (r *Runner) run(log *logrus.Entry, plugin *Plugin, req *Request) {
	defer r.wg.Done()
	defer r.busy.Store(false)

	start := time.Now()
	resp, err := r.executor.Execute(r.ctx, plugin, req)
	if err == nil && !resp.Success {
		err = fmt.Errorf("%w: %s: %s", ErrExecution, plugin.Manifest.Name, resp.Error)
	}

	if err != nil {
		log.WithError(err).Warn("gesture action failed")
		r.finish(ResultFailed, err)
		return
	}

	log.WithField("took", time.Since(start).Round(time.Millisecond)).Info("gesture action done")
	r.finish(ResultOK, nil)
}

func (r *Runner) finish(res Result, err error) Result {
	r.metrics.ActionTriggered(string(res))
	r.mu.Lock()
	r.last, r.lastErr = res, err
	r.mu.Unlock()
	return res
}

// Last returns the most recent final outcome and its error.
func (r *Runner) Last() (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.lastErr
}

// Busy reports whether a run is in flight.
func (r *Runner) Busy() bool {
	return r.busy.Load()
}

// Wait blocks until in-flight runs finish.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close cancels in-flight runs and waits for them.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}
