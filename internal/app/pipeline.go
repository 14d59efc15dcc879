package app

import (
	"context"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/landmark"
)

// warnInterval is the minimum spacing of repeated capture warnings.
const warnInterval = 5 * time.Second

// produce is the capture loop. It ticks at the governor's frame rate and
// hands one landmark frame per tick to the pipeline:
//
//  1. Disabled: a hand-absent frame, the camera is not read
//  2. Read the camera and run motion detection
//  3. Let the governor pick idle or active mode; idle never engages while
//     the dispatcher is outside Idle
//  4. Idle: a hand-absent frame, the detector is not run
//  5. Active: detect hands and select the controlling one
//  6. Draw the frame for preview viewers, if any
func (a *App) produce(ctx context.Context) {
	ticker := time.NewTicker(interval(a.fps()))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if fps, changed := a.tick(now); changed {
				ticker.Reset(interval(fps))
			}
		}
	}
}

// tick produces one frame and reports the new frame rate when the capture
// mode changed.
func (a *App) tick(now time.Time) (int, bool) {
	if !a.Enabled() {
		a.put(landmark.Absent(now))
		return 0, false
	}

	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.readLog.Warn(a.log.WithError(err), "camera read failed")
		a.put(landmark.Absent(now))
		return 0, false
	}
	defer frame.Close()

	motion, _ := a.motion.Detect(frame)
	busy := a.pipeline.Snapshot().State != dispatch.Idle

	a.govMu.Lock()
	mode, changed := a.governor.Observe(now, motion, busy)
	fps := a.governor.FPS()
	a.govMu.Unlock()

	if changed {
		a.camera.SetFPS(fps)
		a.log.WithField("mode", mode.String()).WithField("fps", fps).Debug("capture mode changed")
	}

	f := landmark.Absent(now)
	if mode == capture.Active {
		hands, err := a.detector.Detect(frame)
		if err != nil {
			// Partial results keep their complete hands.
			a.detectLog.Warn(a.log.WithError(err), "hand detection failed")
		}
		if len(hands) > 0 {
			f = detector.ToFrame(hands, a.settings.Handedness, now)
		}
	}

	if err := a.preview.Render(frame, f); err != nil {
		a.previewLog.Warn(a.log.WithError(err), "preview encode failed")
	}
	a.put(f)
	return fps, changed
}

func (a *App) put(f landmark.Frame) {
	if a.slot.Put(f) {
		a.metrics.FrameDropped()
	}
}

func (a *App) fps() int {
	a.govMu.Lock()
	defer a.govMu.Unlock()
	return a.governor.FPS()
}

func interval(fps int) time.Duration {
	if fps <= 0 {
		fps = 1
	}
	return time.Second / time.Duration(fps)
}
