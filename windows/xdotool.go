package windows

import (
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/voxkey/voxkey/clipboard"
	"github.com/voxkey/voxkey/internal/types"
)

// XdotoolStrategy drives X11 window focus with the xdotool CLI and delivers
// text through the clipboard followed by a synthetic ctrl+v.
type XdotoolStrategy struct {
	// FocusSettle is the pause between refocusing and the paste keystroke.
	FocusSettle time.Duration
}

// NewXdotoolStrategy returns the xdotool fallback strategy.
func NewXdotoolStrategy() *XdotoolStrategy {
	return &XdotoolStrategy{FocusSettle: 100 * time.Millisecond}
}

func (s *XdotoolStrategy) Name() string { return "xdotool" }

// Available reports whether xdotool is installed and can see a display.
func (s *XdotoolStrategy) Available() bool {
	if _, err := exec.LookPath("xdotool"); err != nil {
		return false
	}
	return exec.Command("xdotool", "getactivewindow").Run() == nil
}

// ActiveWindow queries xdotool for the focused window id and title.
func (s *XdotoolStrategy) ActiveWindow() (types.WindowInfo, error) {
	out, err := exec.Command("xdotool", "getactivewindow").Output()
	if err != nil {
		return types.WindowInfo{}, fmt.Errorf("xdotool getactivewindow: %w", err)
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return types.WindowInfo{}, fmt.Errorf("no active window")
	}

	w := types.WindowInfo{ID: id}
	if title, err := exec.Command("xdotool", "getwindowname", id).Output(); err == nil {
		w.Title = strings.TrimSpace(string(title))
	}
	if class, err := exec.Command("xdotool", "getwindowclassname", id).Output(); err == nil {
		w.Class = strings.TrimSpace(string(class))
	}
	return w, nil
}

// FocusAndPaste reactivates the window, places the text on the clipboard,
// and sends ctrl+v.
func (s *XdotoolStrategy) FocusAndPaste(w types.WindowInfo, text string) error {
	if err := exec.Command("xdotool", "windowactivate", "--sync", w.ID).Run(); err != nil {
		return fmt.Errorf("xdotool windowactivate: %w", err)
	}
	if err := clipboard.SetText(text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	time.Sleep(s.FocusSettle)
	if err := exec.Command("xdotool", "key", "--window", w.ID, "ctrl+v").Run(); err != nil {
		return fmt.Errorf("xdotool key: %w", err)
	}
	return nil
}
