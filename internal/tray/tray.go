// Package tray provides the system tray menu for the gesture controller.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/dispatch"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/pipeline"
)

// Controller is the part of the app the tray drives.
type Controller interface {
	Enabled() bool
	SetEnabled(enabled bool)
	Subscribe(buffer int) (<-chan pipeline.Snapshot, func())
}

// Tray represents the system tray application.
type Tray struct {
	ctl        Controller
	onSettings func()
	onQuit     func()
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle  *systray.MenuItem
	menuState   *systray.MenuItem
	menuGesture *systray.MenuItem

	unsubscribe func()
	last        status
}

// status is what the menu currently shows.
type status struct {
	state   dispatch.State
	gesture gesture.Label
}

// New creates a Tray driving ctl.
func New(ctl Controller) *Tray {
	return &Tray{ctl: ctl}
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra gesture control")

	t.menuToggle = systray.AddMenuItem(toggleTitle(t.ctl.Enabled()), "Toggle gesture control")
	systray.AddSeparator()

	t.menuState = systray.AddMenuItem(stateTitle(dispatch.Idle), "Pointer state")
	t.menuState.Disable()
	t.menuGesture = systray.AddMenuItem(gestureTitle(gesture.None), "Stable gesture")
	t.menuGesture.Disable()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	snapshots, unsubscribe := t.ctl.Subscribe(8)
	t.mu.Lock()
	t.unsubscribe = unsubscribe
	t.mu.Unlock()

	go func() {
		for {
			select {
			case snap, ok := <-snapshots:
				if !ok {
					return
				}
				t.update(snap)
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	t.mu.Lock()
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// update refreshes the status lines when the snapshot changes them.
func (t *Tray) update(snap pipeline.Snapshot) {
	next := status{state: snap.State, gesture: snap.Stable}

	t.mu.Lock()
	defer t.mu.Unlock()
	if next == t.last {
		return
	}
	t.last = next
	t.menuState.SetTitle(stateTitle(next.state))
	t.menuGesture.SetTitle(gestureTitle(next.gesture))
}

func (t *Tray) handleToggle() {
	enabled := !t.ctl.Enabled()
	t.ctl.SetEnabled(enabled)
	t.menuToggle.SetTitle(toggleTitle(enabled))
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback()
	}

	systray.Quit()
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func stateTitle(s dispatch.State) string {
	return "State: " + s.String()
}

func gestureTitle(l gesture.Label) string {
	if l == gesture.None {
		return "Gesture: none"
	}
	return "Gesture: " + l.String()
}
