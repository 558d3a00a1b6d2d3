// Package windows remembers which window had focus when a dictation started
// and puts the transcribed text back into it. Two strategies exist: a GNOME
// Shell extension reached over D-Bus, and an xdotool fallback for other X11
// environments. The manager picks the first available one.
package windows

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/voxkey/voxkey/internal/types"
)

// ErrNoStrategy is returned when no window strategy works on this desktop.
var ErrNoStrategy = errors.New("windows: no usable window strategy")

// Strategy is one mechanism for window focus tracking and text delivery.
type Strategy interface {
	// Name returns the strategy identifier.
	Name() string

	// Available reports whether this strategy can work in the current
	// session.
	Available() bool

	// ActiveWindow returns the currently focused window.
	ActiveWindow() (types.WindowInfo, error)

	// FocusAndPaste refocuses the window and types or pastes text into it.
	FocusAndPaste(w types.WindowInfo, text string) error
}

// Manager selects a strategy and tracks the target window across one
// dictation. Store and Deliver run on different goroutines, so the target
// is mutex-guarded.
type Manager struct {
	strategy Strategy

	mu     sync.Mutex
	target *types.WindowInfo
}

// NewManager probes the given strategies in order and keeps the first
// available one.
func NewManager(strategies ...Strategy) (*Manager, error) {
	for _, s := range strategies {
		if s.Available() {
			slog.Info("window strategy selected", "strategy", s.Name())
			return &Manager{strategy: s}, nil
		}
		slog.Debug("window strategy unavailable", "strategy", s.Name())
	}
	return nil, ErrNoStrategy
}

// DefaultStrategies returns the built-in strategies in preference order.
func DefaultStrategies() []Strategy {
	return []Strategy{NewDBusStrategy(), NewXdotoolStrategy()}
}

// Strategy returns the name of the active strategy.
func (m *Manager) Strategy() string {
	return m.strategy.Name()
}

// StoreCurrentWindow snapshots the focused window as the paste target.
func (m *Manager) StoreCurrentWindow() error {
	w, err := m.strategy.ActiveWindow()
	m.mu.Lock()
	if err != nil {
		m.target = nil
		m.mu.Unlock()
		return err
	}
	m.target = &w
	m.mu.Unlock()
	slog.Debug("target window stored", "title", w.Title, "class", w.Class)
	return nil
}

// Target returns the stored window, if any.
func (m *Manager) Target() (types.WindowInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.target == nil {
		return types.WindowInfo{}, false
	}
	return *m.target, true
}

// Deliver pastes text into the stored window and clears the target. If no
// window was stored, it delivers to whatever currently has focus.
func (m *Manager) Deliver(text string) error {
	m.mu.Lock()
	target := m.target
	m.target = nil
	m.mu.Unlock()
	if target == nil {
		w, err := m.strategy.ActiveWindow()
		if err != nil {
			return err
		}
		target = &w
	}
	return m.strategy.FocusAndPaste(*target, text)
}
