package windows

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/voxkey/voxkey/internal/types"
)

const (
	dbusDest      = "org.gnome.Shell"
	dbusPath      = "/org/gnome/Shell/Extensions/VoxKey"
	dbusInterface = "org.gnome.Shell.Extensions.VoxKey"
)

// DBusStrategy talks to the companion GNOME Shell extension. The extension
// exposes the focused window and performs the paste inside the compositor,
// which works on Wayland where synthetic input from outside does not.
type DBusStrategy struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

// NewDBusStrategy returns the GNOME Shell extension strategy. The session
// bus connection is established lazily.
func NewDBusStrategy() *DBusStrategy {
	return &DBusStrategy{}
}

func (s *DBusStrategy) Name() string { return "gnome-dbus" }

func (s *DBusStrategy) object() (dbus.BusObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		conn, err := dbus.SessionBus()
		if err != nil {
			return nil, fmt.Errorf("connect session bus: %w", err)
		}
		s.conn = conn
	}
	return s.conn.Object(dbusDest, dbusPath), nil
}

// Available probes the extension with a GetFocusedWindow call.
func (s *DBusStrategy) Available() bool {
	obj, err := s.object()
	if err != nil {
		return false
	}
	call := obj.Call(dbusInterface+".GetFocusedWindow", 0)
	return call.Err == nil
}

// ActiveWindow asks the extension for the focused window. The extension
// replies with a JSON object {id, title, class}.
func (s *DBusStrategy) ActiveWindow() (types.WindowInfo, error) {
	obj, err := s.object()
	if err != nil {
		return types.WindowInfo{}, err
	}

	var payload string
	if err := obj.Call(dbusInterface+".GetFocusedWindow", 0).Store(&payload); err != nil {
		return types.WindowInfo{}, fmt.Errorf("GetFocusedWindow: %w", err)
	}

	var w types.WindowInfo
	if err := json.Unmarshal([]byte(payload), &w); err != nil {
		return types.WindowInfo{}, fmt.Errorf("parse focused window: %w", err)
	}
	if w.ID == "" {
		return types.WindowInfo{}, fmt.Errorf("no focused window")
	}
	return w, nil
}

// FocusAndPaste hands the text to the extension, which refocuses the window
// and pastes inside the shell process.
func (s *DBusStrategy) FocusAndPaste(w types.WindowInfo, text string) error {
	obj, err := s.object()
	if err != nil {
		return err
	}

	var ok bool
	if err := obj.Call(dbusInterface+".FocusAndPaste", 0, w.ID, text).Store(&ok); err != nil {
		return fmt.Errorf("FocusAndPaste: %w", err)
	}
	if !ok {
		return fmt.Errorf("extension could not paste into window %s", w.ID)
	}
	return nil
}
