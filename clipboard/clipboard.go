// Package clipboard reads and writes the desktop clipboard through the
// session's native tools: wl-copy/wl-paste on Wayland, xclip on X11.
package clipboard

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoBackend is returned when no clipboard tool is installed.
var ErrNoBackend = errors.New("clipboard: no clipboard tool found (install wl-clipboard or xclip)")

type backend struct {
	copyCmd  []string
	pasteCmd []string
}

func detect() (backend, error) {
	if os.Getenv("WAYLAND_DISPLAY") != "" {
		if _, err := exec.LookPath("wl-copy"); err == nil {
			return backend{
				copyCmd:  []string{"wl-copy"},
				pasteCmd: []string{"wl-paste", "--no-newline"},
			}, nil
		}
	}
	if _, err := exec.LookPath("xclip"); err == nil {
		return backend{
			copyCmd:  []string{"xclip", "-selection", "clipboard"},
			pasteCmd: []string{"xclip", "-selection", "clipboard", "-o"},
		}, nil
	}
	return backend{}, ErrNoBackend
}

// SetText places text on the clipboard.
func SetText(text string) error {
	b, err := detect()
	if err != nil {
		return err
	}
	cmd := exec.Command(b.copyCmd[0], b.copyCmd[1:]...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", b.copyCmd[0], err)
	}
	return nil
}

// GetText reads the clipboard contents.
func GetText() (string, error) {
	b, err := detect()
	if err != nil {
		return "", err
	}
	out, err := exec.Command(b.pasteCmd[0], b.pasteCmd[1:]...).Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w", b.pasteCmd[0], err)
	}
	return string(out), nil
}
