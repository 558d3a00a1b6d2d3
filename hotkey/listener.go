package hotkey

import (
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"
)

// Listener adapts the global OS keyboard hook into detector events.
type Listener struct {
	detector *Detector

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewListener creates a listener feeding the given detector.
func NewListener(d *Detector) *Listener {
	return &Listener{detector: d}
}

// Start begins consuming global key events. It is a no-op with a warning if
// the listener is already running.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		slog.Warn("hotkey listener already running")
		return nil
	}

	events := hook.Start()
	l.running = true
	l.done = make(chan struct{})

	go l.consume(events, l.done)
	slog.Info("hotkey listener started")
	return nil
}

// Stop ends the global hook and waits for the consumer goroutine to exit.
func (l *Listener) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	done := l.done
	l.mu.Unlock()

	hook.End()
	<-done
	l.detector.Reset()
	slog.Info("hotkey listener stopped")
}

// consume drains the hook event channel until it is closed by hook.End.
func (l *Listener) consume(events chan hook.Event, done chan struct{}) {
	defer close(done)

	for ev := range events {
		switch ev.Kind {
		case hook.KeyDown, hook.KeyHold:
			// Key repeat arrives as KeyHold; the held-key set makes the
			// extra presses idempotent.
			l.detector.HandleKeyDown(rawKey(ev))
		case hook.KeyUp:
			l.detector.HandleKeyUp(rawKey(ev))
		}
	}
}

func rawKey(ev hook.Event) RawKey {
	return RawKey{Code: ev.Rawcode, Char: ev.Keychar}
}
