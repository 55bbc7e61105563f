// Package tray provides the system tray menu for jabcam.
package tray

import (
	"fmt"
	"sync"

	"github.com/ayusman/jabcam/internal/events"
	"github.com/ayusman/jabcam/internal/punch"
	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle    func(enabled bool)
	onDashboard func()
	onQuit      func()
	enabled     bool
	last        *events.PunchEvent
	counts      [2]int
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuToggle    *systray.MenuItem
	menuLastPunch *systray.MenuItem
	menuCounts    *systray.MenuItem
}

// New creates a new Tray showing the given enabled state.
func New(enabled bool) *Tray {
	return &Tray{
		enabled: enabled,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnDashboard sets the callback function to be called when the dashboard menu item is clicked.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called or the quit item is clicked.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("jabcam")
	systray.SetTooltip("jabcam punch tracker")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleLabel(t.enabled), "Toggle punch detection")
	systray.AddSeparator()

	t.menuLastPunch = systray.AddMenuItem(lastPunchLabel(t.last), "Last detected punch")
	t.menuLastPunch.Disable()
	t.menuCounts = systray.AddMenuItem(countsLabel(t.counts), "Punches since start")
	t.menuCounts.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit jabcam")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleDashboard handles the dashboard menu item click.
func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// RecordPunch shows e as the last punch and adds it to the side counts.
// It is meant to be registered as an app punch callback.
func (t *Tray) RecordPunch(e events.PunchEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = &e
	t.counts[e.Side]++

	if t.menuLastPunch != nil {
		t.menuLastPunch.SetTitle(lastPunchLabel(t.last))
	}
	if t.menuCounts != nil {
		t.menuCounts.SetTitle(countsLabel(t.counts))
	}
}

// Counts returns the punches recorded per side.
func (t *Tray) Counts() (left, right int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[punch.Left], t.counts[punch.Right]
}

// SetEnabled updates the toggle without calling the toggle callback.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(enabled))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleLabel(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func lastPunchLabel(e *events.PunchEvent) string {
	if e == nil {
		return "Last: none"
	}
	return fmt.Sprintf("Last: %s %.0f px/s", e.Side, e.SpeedAvg)
}

func countsLabel(counts [2]int) string {
	return fmt.Sprintf("Left %d · Right %d", counts[punch.Left], counts[punch.Right])
}
