// Package tray shows the daemon's status in the system tray and offers a
// small menu: toggle recording, recent dictations, quit.
package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log/slog"

	"github.com/getlantern/systray"

	"github.com/voxkey/voxkey/state"
)

// HistoryEntry is one recent dictation shown in the menu.
type HistoryEntry struct {
	Text string
}

// Callbacks connect menu actions to the application.
type Callbacks struct {
	// OnToggle starts or stops a recording.
	OnToggle func()
	// OnHistorySelect copies a recent dictation.
	OnHistorySelect func(text string)
	// RecentEntries supplies the history submenu contents.
	RecentEntries func() []HistoryEntry
	// OnQuit shuts the daemon down.
	OnQuit func()
}

const historyMenuSize = 5

// Tray drives the systray icon. Run blocks the calling goroutine for the
// life of the process, so the application runs from its callbacks.
type Tray struct {
	cb Callbacks

	toggle  *systray.MenuItem
	history [historyMenuSize]*systray.MenuItem
}

// New creates a tray with the given callbacks.
func New(cb Callbacks) *Tray {
	return &Tray{cb: cb}
}

// Run enters the systray main loop. onReady is called once the tray is up.
func (t *Tray) Run(onReady func()) {
	systray.Run(func() {
		t.setup()
		if onReady != nil {
			onReady()
		}
	}, func() {
		if t.cb.OnQuit != nil {
			t.cb.OnQuit()
		}
	})
}

// Quit leaves the systray loop.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) setup() {
	systray.SetIcon(dotIcon(colorIdle))
	systray.SetTitle("voxkey")
	systray.SetTooltip("voxkey (idle)")

	t.toggle = systray.AddMenuItem("Start Recording", "Toggle dictation")
	systray.AddSeparator()
	for i := range t.history {
		t.history[i] = systray.AddMenuItem("", "Copy this dictation")
		t.history[i].Hide()
	}
	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Stop voxkey")

	go t.loop(quit)
	t.RefreshHistory()
}

func (t *Tray) loop(quit *systray.MenuItem) {
	historyClicks := make(chan int)
	for i := range t.history {
		go func(idx int, ch <-chan struct{}) {
			for range ch {
				historyClicks <- idx
			}
		}(i, t.history[i].ClickedCh)
	}

	for {
		select {
		case <-t.toggle.ClickedCh:
			if t.cb.OnToggle != nil {
				t.cb.OnToggle()
			}
		case idx := <-historyClicks:
			t.onHistoryClick(idx)
		case <-quit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (t *Tray) onHistoryClick(idx int) {
	if t.cb.RecentEntries == nil || t.cb.OnHistorySelect == nil {
		return
	}
	entries := t.cb.RecentEntries()
	if idx >= len(entries) {
		return
	}
	t.cb.OnHistorySelect(entries[idx].Text)
}

// SetState updates the icon and toggle label for the given machine state.
func (t *Tray) SetState(s state.State) {
	switch s {
	case state.Recording:
		systray.SetIcon(dotIcon(colorRecording))
		systray.SetTooltip("voxkey (recording)")
		t.toggle.SetTitle("Stop Recording")
	case state.Processing:
		systray.SetIcon(dotIcon(colorProcessing))
		systray.SetTooltip("voxkey (transcribing)")
		t.toggle.SetTitle("Start Recording")
	case state.Error:
		systray.SetIcon(dotIcon(colorError))
		systray.SetTooltip("voxkey (error)")
		t.toggle.SetTitle("Start Recording")
	default:
		systray.SetIcon(dotIcon(colorIdle))
		systray.SetTooltip("voxkey (idle)")
		t.toggle.SetTitle("Start Recording")
	}
}

// RefreshHistory repopulates the recent-dictations submenu.
func (t *Tray) RefreshHistory() {
	if t.cb.RecentEntries == nil {
		return
	}
	entries := t.cb.RecentEntries()
	for i, item := range t.history {
		if i < len(entries) {
			item.SetTitle(truncate(entries[i].Text, 48))
			item.Show()
		} else {
			item.Hide()
		}
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

var (
	colorIdle       = color.RGBA{128, 128, 128, 255}
	colorRecording  = color.RGBA{220, 50, 47, 255}
	colorProcessing = color.RGBA{245, 166, 35, 255}
	colorError      = color.RGBA{108, 31, 28, 255}
)

// dotIcon renders a filled circle as a 22x22 PNG, the standard tray size.
func dotIcon(c color.RGBA) []byte {
	const size = 22
	const r = 7
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cx, cy := size/2, size/2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, c)
			}
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		slog.Debug("icon encode failed", "err", err)
		return nil
	}
	return buf.Bytes()
}
