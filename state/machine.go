// Package state holds the authoritative recording state machine.
//
// The machine owns the Idle/Recording/Processing/Error state exclusively;
// other components observe it through callbacks or State(). Invalid
// transitions are rejected with a warning and a false return, never a panic.
package state

import (
	"log/slog"
	"sync"
	"time"
)

// State is the recording lifecycle state.
type State int

const (
	Idle State = iota
	Recording
	Processing
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Config holds machine tuning parameters.
type Config struct {
	// ErrorResetDelay is how long the machine stays in Error before
	// automatically resetting to Idle. Zero disables the auto-reset.
	ErrorResetDelay time.Duration
}

// DefaultConfig returns the default machine configuration.
func DefaultConfig() Config {
	return Config{ErrorResetDelay: 2 * time.Second}
}

// Machine serializes recording state transitions. All transitions are totally
// ordered under one mutex; callbacks run outside the lock, in transition
// order for any single goroutine.
type Machine struct {
	cfg Config

	mu         sync.Mutex
	state      State
	startedAt  time.Time
	lastText   string
	resetTimer *time.Timer

	onStateChanged        func(State)
	onRecordingStarted    func()
	onRecordingStopped    func()
	onProcessingCompleted func(text string)
	onError               func(msg string)
}

// NewMachine creates a state machine in the Idle state.
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg, state: Idle}
}

// OnStateChanged registers a callback fired on every transition.
func (m *Machine) OnStateChanged(fn func(State)) { m.onStateChanged = fn }

// OnRecordingStarted registers a callback for the Idle→Recording transition.
func (m *Machine) OnRecordingStarted(fn func()) { m.onRecordingStarted = fn }

// OnRecordingStopped registers a callback for the Recording→Processing transition.
func (m *Machine) OnRecordingStopped(fn func()) { m.onRecordingStopped = fn }

// OnProcessingCompleted registers a callback for the Processing→Idle
// transition. An empty text signals "no content", which the orchestrator, not
// the machine, decides how to surface.
func (m *Machine) OnProcessingCompleted(fn func(text string)) { m.onProcessingCompleted = fn }

// OnError registers a callback for transitions into Error.
func (m *Machine) OnError(fn func(msg string)) { m.onError = fn }

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastTranscription returns the most recent non-empty completed text.
func (m *Machine) LastTranscription() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastText
}

// StartRecording transitions Idle→Recording.
func (m *Machine) StartRecording() bool {
	m.mu.Lock()
	if m.state != Idle {
		slog.Warn("cannot start recording", "state", m.state)
		m.mu.Unlock()
		return false
	}
	m.startedAt = time.Now()
	m.setStateLocked(Recording)
	m.mu.Unlock()

	m.emitStateChanged(Recording)
	if m.onRecordingStarted != nil {
		m.onRecordingStarted()
	}
	slog.Info("recording started")
	return true
}

// StopRecording transitions Recording→Processing.
func (m *Machine) StopRecording() bool {
	m.mu.Lock()
	if m.state != Recording {
		slog.Warn("cannot stop recording", "state", m.state)
		m.mu.Unlock()
		return false
	}
	duration := time.Since(m.startedAt)
	m.setStateLocked(Processing)
	m.mu.Unlock()

	m.emitStateChanged(Processing)
	if m.onRecordingStopped != nil {
		m.onRecordingStopped()
	}
	slog.Info("recording stopped", "duration", duration)
	return true
}

// CompleteProcessing transitions Processing→Idle with the transcribed text.
// An empty or whitespace-only text is still a successful transition; the
// empty payload is the distinguishable "no content" signal.
func (m *Machine) CompleteProcessing(text string) bool {
	m.mu.Lock()
	if m.state != Processing {
		slog.Warn("cannot complete processing", "state", m.state)
		m.mu.Unlock()
		return false
	}
	if text != "" {
		m.lastText = text
	}
	m.setStateLocked(Idle)
	m.mu.Unlock()

	m.emitStateChanged(Idle)
	if m.onProcessingCompleted != nil {
		m.onProcessingCompleted(text)
	}
	slog.Info("processing completed", "chars", len(text))
	return true
}

// Fail transitions Recording→Error or Processing→Error.
func (m *Machine) Fail(msg string) bool {
	m.mu.Lock()
	if m.state != Recording && m.state != Processing {
		slog.Warn("cannot fail", "state", m.state)
		m.mu.Unlock()
		return false
	}
	prev := m.state
	m.setStateLocked(Error)
	if m.cfg.ErrorResetDelay > 0 {
		if m.resetTimer != nil {
			m.resetTimer.Stop()
		}
		m.resetTimer = time.AfterFunc(m.cfg.ErrorResetDelay, func() { m.Reset() })
	}
	m.mu.Unlock()

	m.emitStateChanged(Error)
	if m.onError != nil {
		m.onError(msg)
	}
	slog.Error("state machine error", "from", prev, "message", msg)
	return true
}

// Reset forces the machine back to Idle from any state. Used for error
// recovery; resetting an already idle machine is a no-op returning true.
func (m *Machine) Reset() bool {
	m.mu.Lock()
	if m.resetTimer != nil {
		m.resetTimer.Stop()
		m.resetTimer = nil
	}
	if m.state == Idle {
		m.mu.Unlock()
		return true
	}
	prev := m.state
	m.setStateLocked(Idle)
	m.mu.Unlock()

	m.emitStateChanged(Idle)
	slog.Info("state reset to idle", "from", prev)
	return true
}

// Toggle starts recording when idle and stops it when recording.
func (m *Machine) Toggle() bool {
	switch m.State() {
	case Idle:
		return m.StartRecording()
	case Recording:
		return m.StopRecording()
	default:
		slog.Warn("cannot toggle recording", "state", m.State())
		return false
	}
}

// setStateLocked updates the state. Caller must hold m.mu.
func (m *Machine) setStateLocked(s State) {
	if s != m.state {
		slog.Debug("state transition", "from", m.state, "to", s)
		m.state = s
	}
}

func (m *Machine) emitStateChanged(s State) {
	if m.onStateChanged != nil {
		m.onStateChanged(s)
	}
}
