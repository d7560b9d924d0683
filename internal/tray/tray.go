// Package tray provides a desktop system tray for the camera bridge.
package tray

import (
	"sync"

	"github.com/ayusman/camerabridge/internal/capture"
	"github.com/ayusman/camerabridge/internal/extension"
	"github.com/getlantern/systray"
)

// Controller is the capture surface the tray drives.
type Controller interface {
	Toggle() bool
	Capturing() bool
	Observe(fn extension.Observer) (cancel func())
}

// Tray represents the system tray application.
type Tray struct {
	ctrl       Controller
	onSettings func()
	onQuit     func()
	cancelObs  func()
	capturing  bool
	last       string
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle      *systray.MenuItem
	menuLastMessage *systray.MenuItem
}

// New creates a Tray for ctrl and subscribes to its lifecycle messages.
func New(ctrl Controller) *Tray {
	t := &Tray{
		ctrl:      ctrl,
		capturing: ctrl.Capturing(),
	}
	t.cancelObs = ctrl.Observe(t.observe)
	return t
}

// OnSettings sets the callback function to be called when the diagnostics menu item is clicked.
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
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Camera Bridge")
	systray.SetTooltip("Camera Bridge")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.capturing), "Start or stop the camera")
	systray.AddSeparator()

	t.menuLastMessage = systray.AddMenuItem(lastTitle(t.last), "Last lifecycle message")
	t.menuLastMessage.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Diagnostics...", "Open the diagnostics page in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Camera Bridge")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
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
	if t.cancelObs != nil {
		t.cancelObs()
	}
}

// handleToggle asks the controller to flip capture. The menu follows the
// STARTED and STOPPED messages rather than the request.
func (t *Tray) handleToggle() {
	t.ctrl.Toggle()
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
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

// observe runs on the engine tick and only updates menu titles.
func (t *Tray) observe(st extension.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch st.Message {
	case capture.MessageStarted:
		t.capturing = true
	case capture.MessageStopped:
		t.capturing = false
	}
	t.last = st.Message.String()

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(t.capturing))
	}
	if t.menuLastMessage != nil {
		t.menuLastMessage.SetTitle(lastTitle(t.last))
	}
}

// LastMessage returns the name of the last lifecycle message seen.
func (t *Tray) LastMessage() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// IsCapturing returns the capture state shown in the menu.
func (t *Tray) IsCapturing() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.capturing
}

func toggleTitle(capturing bool) string {
	if capturing {
		return "● Capturing"
	}
	return "○ Stopped"
}

func lastTitle(msg string) string {
	if msg == "" {
		return "Last: none"
	}
	return "Last: " + msg
}
