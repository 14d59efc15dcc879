package logging

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Throttle limits how often a repeating message is logged. Per-frame
// warnings at camera rate would otherwise flood the log. Suppressed lines are
// counted and reported with the next one let through.
type Throttle struct {
	mu         sync.Mutex
	limiter    *rate.Limiter
	suppressed int
}

// NewThrottle allows one line per interval with the given burst.
func NewThrottle(interval time.Duration, burst int) *Throttle {
	if burst < 1 {
		burst = 1
	}
	return &Throttle{limiter: rate.NewLimiter(rate.Every(interval), burst)}
}

// Allow reports whether a line may be written now and how many were
// suppressed since the last allowed one.
func (t *Throttle) Allow() (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.limiter.Allow() {
		t.suppressed++
		return false, 0
	}
	n := t.suppressed
	t.suppressed = 0
	return true, n
}

// Warn logs through entry when the throttle allows it.
func (t *Throttle) Warn(entry *logrus.Entry, msg string) {
	ok, suppressed := t.Allow()
	if !ok {
		return
	}
	if suppressed > 0 {
		entry = entry.WithField("suppressed", suppressed)
	}
	entry.Warn(msg)
}
