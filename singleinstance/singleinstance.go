// Package singleinstance ensures only one daemon runs per session, using a
// unix socket in the XDG runtime directory. A connectable socket means a
// live instance; a dangling socket file is from a crashed one and is
// reclaimed.
package singleinstance

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// ErrAlreadyRunning is returned when another instance holds the socket.
var ErrAlreadyRunning = errors.New("singleinstance: another instance is running")

// Lock is a held single-instance lock.
type Lock struct {
	listener net.Listener
	path     string
}

// SocketPath returns the lock socket location.
func SocketPath() string {
	return filepath.Join(xdg.RuntimeDir, "voxkey.sock")
}

// Acquire takes the single-instance lock at path, or the default socket
// location when path is empty. It fails with ErrAlreadyRunning when a live
// instance answers on the socket.
func Acquire(path string) (*Lock, error) {
	if path == "" {
		path = SocketPath()
	}

	if _, err := os.Stat(path); err == nil {
		conn, err := net.DialTimeout("unix", path, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil, ErrAlreadyRunning
		}
		// Nothing answers: the previous instance died without cleanup.
		slog.Warn("removing stale instance socket", "path", path)
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create runtime dir: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on instance socket: %w", err)
	}

	l := &Lock{listener: listener, path: path}
	go l.accept()
	return l, nil
}

// accept answers liveness probes from would-be second instances.
func (l *Lock) accept() {
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}
}

// Release frees the lock and removes the socket.
func (l *Lock) Release() {
	l.listener.Close()
	os.Remove(l.path)
}

// Reset removes the socket file unconditionally, for recovery after a crash
// left the session wedged.
func Reset() error {
	path := SocketPath()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove instance socket: %w", err)
	}
	return nil
}
