// Package types provides shared type definitions for the application.
package types

// WindowInfo identifies the window that held focus when a dictation began.
// The GNOME Shell extension replies with this shape as JSON.
type WindowInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Class string `json:"class"`
}
