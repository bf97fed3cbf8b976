// Package tray provides a system tray interface for driving a camrelay
// capture engine from the desktop.
package tray

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/camrelay/internal/capture"
	"github.com/ayusman/camrelay/internal/delivery"
)

// Presets are the resolutions offered in the menu.
var Presets = []capture.Resolution{
	{Width: 640, Height: 240},
	{Width: 800, Height: 600},
	{Width: 1280, Height: 1024},
}

// Camera is the part of the engine the tray drives.
type Camera interface {
	Start()
	Stop()
	SetResolution(width, height int) error
}

// Tray represents the system tray application. It is also a delivery sink:
// heartbeats update the status line.
type Tray struct {
	camera Camera
	logger *slog.Logger
	onQuit func()

	mu    sync.RWMutex
	stats delivery.Stats

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a Tray driving camera.
func New(camera Camera, logger *slog.Logger) *Tray {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{camera: camera, logger: logger}
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
	systray.SetTitle("camrelay")
	systray.SetTooltip("camrelay camera capture")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.stats.Active), "Start or stop capturing")
	t.menuStatus = systray.AddMenuItem(StatusLine(t.stats), "Capture statistics")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuResolution := systray.AddMenuItem("Resolution", "Capture resolution")
	presets := make([]*systray.MenuItem, len(Presets))
	for i, res := range Presets {
		presets[i] = menuResolution.AddSubMenuItem(PresetTitle(res), "")
	}
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit camrelay")

	for i, item := range presets {
		go func() {
			for range item.ClickedCh {
				t.handlePreset(Presets[i])
			}
		}()
	}

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle starts or stops the engine based on the last heartbeat.
func (t *Tray) handleToggle() {
	t.mu.RLock()
	active := t.stats.Active
	t.mu.RUnlock()

	if active {
		t.camera.Stop()
	} else {
		t.camera.Start()
	}
}

func (t *Tray) handlePreset(res capture.Resolution) {
	if err := t.camera.SetResolution(res.Width, res.Height); err != nil {
		t.logger.Warn("Failed to change resolution", "width", res.Width, "height", res.Height, "error", err)
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

func (t *Tray) OnFrame(*capture.Frame) {}

// OnStats refreshes the menu from a heartbeat.
func (t *Tray) OnStats(st delivery.Stats) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats = st
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(st.Active))
	}
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(StatusLine(st))
	}
}

// Stats returns the last heartbeat seen by the tray.
func (t *Tray) Stats() delivery.Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}

// StatusLine renders a heartbeat for the menu.
func StatusLine(st delivery.Stats) string {
	if !st.Active {
		return "Stopped"
	}
	return fmt.Sprintf("%dx%d  frames %d  errors %d",
		st.Resolution.Width, st.Resolution.Height, st.FrameCount, st.ErrorCount)
}

// PresetTitle renders a resolution preset.
func PresetTitle(res capture.Resolution) string {
	return fmt.Sprintf("%d x %d", res.Width, res.Height)
}

func toggleTitle(active bool) string {
	if active {
		return "■ Stop"
	}
	return "▶ Start"
}
