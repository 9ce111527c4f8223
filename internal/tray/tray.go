// Package tray provides a system tray menu for flying tellopilot without a
// keyboard: take off, land, quit and a live battery/state title.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"github.com/ayusman/tellopilot/internal/control"
	"github.com/ayusman/tellopilot/internal/pilot"
)

// Submitter accepts operator events for the control loop.
type Submitter interface {
	Submit(ev control.Event) bool
}

// Tray represents the system tray application.
type Tray struct {
	pilot  Submitter
	logger *zap.SugaredLogger
	mu     sync.RWMutex

	title   string
	state   control.FlightState
	warning string
	known   bool

	// Menu items stored for later updates
	menuStatus  *systray.MenuItem
	menuWarning *systray.MenuItem
	menuTakeOff *systray.MenuItem
	menuLand    *systray.MenuItem
}

// New creates a Tray that sends its menu actions to p.
func New(p Submitter, logger *zap.SugaredLogger) *Tray {
	return &Tray{
		pilot:  p,
		logger: logger,
		title:  "Tello",
	}
}

// Run starts the system tray application.
// This function blocks until Quit is called and must run on the main
// goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	t.mu.Lock()
	systray.SetTitle(t.title)
	systray.SetTooltip("tellopilot drone controller")

	t.menuStatus = systray.AddMenuItem("Waiting for telemetry", "Battery and altitude")
	t.menuStatus.Disable()
	t.menuWarning = systray.AddMenuItem("No warnings", "Last safety warning")
	t.menuWarning.Disable()
	systray.AddSeparator()

	t.menuTakeOff = systray.AddMenuItem("Take off", "Take off and hover")
	t.menuLand = systray.AddMenuItem("Land", "Land and stop the motors")
	t.menuLand.Disable()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Land if flying and quit")
	t.mu.Unlock()

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuTakeOff.ClickedCh:
				t.handle(control.TakeOffTrigger)
			case <-t.menuLand.ClickedCh:
				t.handle(control.LandTrigger)
			case <-menuQuit.ClickedCh:
				t.handle(control.QuitTrigger)
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {
	t.logger.Debugw("tray closed")
}

// handle submits a menu action to the pilot.
func (t *Tray) handle(kind control.EventKind) {
	if !t.pilot.Submit(control.Trigger(kind, control.SourceTray)) {
		t.logger.Warnw("event queue full, dropped tray action", "kind", kind.String())
	}
}

// Observe updates the tray from a pilot status. It is meant to be
// registered with pilot.Pilot.OnStatus and only touches the menu when
// something visible changed.
func (t *Tray) Observe(s pilot.Status) {
	title := Title(s)
	warning := warningText(s.Warning)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.known && title == t.title && warning == t.warning && s.State == t.state {
		return
	}
	t.title, t.warning, t.state, t.known = title, warning, s.State, true

	if t.menuStatus == nil {
		return
	}
	systray.SetTitle(title)
	t.menuStatus.SetTitle(fmt.Sprintf("Battery %d%%, altitude %d cm", s.BatteryPct, s.AltitudeCM))
	if warning == "" {
		t.menuWarning.SetTitle("No warnings")
	} else {
		t.menuWarning.SetTitle(warning)
	}
	if s.State == control.Airborne {
		t.menuTakeOff.Disable()
		t.menuLand.Enable()
	} else {
		t.menuTakeOff.Enable()
		t.menuLand.Disable()
	}
}

// Title returns the tray title for s, e.g. "Tello 64% airborne". A "!"
// marks an active warning.
func Title(s pilot.Status) string {
	title := fmt.Sprintf("Tello %d%% %s", s.BatteryPct, s.State)
	if s.Warning != nil {
		title = "! " + title
	}
	return title
}

// CurrentTitle returns the last title computed by Observe.
func (t *Tray) CurrentTitle() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.title
}

func warningText(w *control.Warning) string {
	if w == nil {
		return ""
	}
	return w.Message
}
