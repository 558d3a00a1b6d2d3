package hotkey

import (
	"log/slog"
	"sync"
	"time"
)

// Mode is the active recording mode.
type Mode int

const (
	ModeIdle Mode = iota
	ModeHoldToTalk
	ModeHandsFree
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeHoldToTalk:
		return "hold-to-talk"
	case ModeHandsFree:
		return "hands-free"
	default:
		return "unknown"
	}
}

// DetectorConfig holds chord definitions and timing parameters.
type DetectorConfig struct {
	HoldToTalkChord []Key // all keys held simultaneously engage hold-to-talk
	HandsFreeChord  []Key // all keys held simultaneously engage hands-free

	// HandsFreeExit is the key whose release exits hands-free. Note that
	// when the exit key is part of the entry chord (the default: space),
	// the natural release of the engaging press already exits, so
	// hands-free lasts only as long as the exit key stays held. A latched
	// hands-free mode needs an exit key outside the entry chord.
	HandsFreeExit Key

	// DebounceWindow suppresses a release of the same key arriving this soon
	// after the previous release. Default 100ms.
	DebounceWindow time.Duration

	// GracePeriod delays the hold-to-talk stop after a chord break, so a
	// transient release/re-press does not stutter the recording. Default 200ms.
	GracePeriod time.Duration

	LegacyModifierMerge bool
}

// DefaultDetectorConfig returns the default chord and timing configuration.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		HoldToTalkChord: []Key{KeySuper, KeyAlt},
		HandsFreeChord:  []Key{KeySuper, KeyAlt, KeySpace},
		HandsFreeExit:   KeySpace,
		DebounceWindow:  100 * time.Millisecond,
		GracePeriod:     200 * time.Millisecond,
	}
}

// Detector tracks held keys and detects chord engagement and release.
//
// Both the OS key-event callbacks and the grace-period timer mutate the same
// held-key set and mode field, so all of them run under one mutex. Callbacks
// are invoked outside the lock.
type Detector struct {
	cfg  DetectorConfig
	norm Normalizer

	mu          sync.Mutex
	held        map[Key]bool
	mode        Mode
	lastRelease map[Key]time.Time
	pendingStop *time.Timer

	now func() time.Time // injectable for tests

	onEngaged     func(Mode)
	onReleased    func(Mode)
	onModeChanged func(Mode)
}

// NewDetector creates a chord detector. Zero timing values are replaced with
// defaults; an empty hold-to-talk chord falls back to the default chord.
func NewDetector(cfg DetectorConfig) *Detector {
	def := DefaultDetectorConfig()
	if len(cfg.HoldToTalkChord) == 0 {
		cfg.HoldToTalkChord = def.HoldToTalkChord
	}
	if cfg.HandsFreeExit == KeyUnknown {
		cfg.HandsFreeExit = def.HandsFreeExit
	}
	if cfg.DebounceWindow == 0 {
		cfg.DebounceWindow = def.DebounceWindow
	}
	if cfg.GracePeriod == 0 {
		cfg.GracePeriod = def.GracePeriod
	}

	return &Detector{
		cfg:         cfg,
		norm:        Normalizer{LegacyModifierMerge: cfg.LegacyModifierMerge},
		held:        make(map[Key]bool),
		lastRelease: make(map[Key]time.Time),
		now:         time.Now,
	}
}

// OnChordEngaged registers a callback for chord engagement.
func (d *Detector) OnChordEngaged(fn func(Mode)) { d.onEngaged = fn }

// OnChordReleased registers a callback for chord release.
func (d *Detector) OnChordReleased(fn func(Mode)) { d.onReleased = fn }

// OnModeChanged registers a callback for mode transitions.
func (d *Detector) OnModeChanged(fn func(Mode)) { d.onModeChanged = fn }

// Mode returns the current recording mode.
func (d *Detector) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// HeldKeys returns a snapshot of the currently held canonical keys.
func (d *Detector) HeldKeys() []Key {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]Key, 0, len(d.held))
	for k := range d.held {
		keys = append(keys, k)
	}
	return keys
}

// HandleKeyDown processes a raw key press event.
func (d *Detector) HandleKeyDown(raw RawKey) {
	key := d.norm.Normalize(raw)
	if key == KeyUnknown {
		slog.Debug("ignoring unmapped key press", "code", raw.Code)
		return
	}

	d.mu.Lock()
	d.held[key] = true

	var engaged Mode = ModeIdle
	switch {
	case d.mode == ModeIdle && d.chordHeld(d.cfg.HoldToTalkChord):
		d.mode = ModeHoldToTalk
		engaged = ModeHoldToTalk
	case d.mode != ModeHandsFree && d.chordHeld(d.cfg.HandsFreeChord):
		d.mode = ModeHandsFree
		engaged = ModeHandsFree
	}

	// A re-press that restores the chord cancels the pending deferred stop.
	if d.pendingStop != nil && d.mode == ModeHoldToTalk && d.chordHeld(d.cfg.HoldToTalkChord) {
		slog.Debug("chord restored, canceling pending stop")
		d.pendingStop.Stop()
		d.pendingStop = nil
	}
	d.mu.Unlock()

	if engaged != ModeIdle {
		slog.Debug("chord engaged", "mode", engaged)
		d.emitEngaged(engaged)
	}
}

// HandleKeyUp processes a raw key release event. Releases of the same key
// arriving within the debounce window are dropped entirely: the key stays in
// the held set and no mode-exit logic runs.
func (d *Detector) HandleKeyUp(raw RawKey) {
	key := d.norm.Normalize(raw)
	if key == KeyUnknown {
		slog.Debug("ignoring unmapped key release", "code", raw.Code)
		return
	}

	d.mu.Lock()
	now := d.now()
	if last, ok := d.lastRelease[key]; ok && now.Sub(last) < d.cfg.DebounceWindow {
		slog.Debug("debounced duplicate release", "key", key, "since", now.Sub(last))
		d.mu.Unlock()
		return
	}
	d.lastRelease[key] = now
	delete(d.held, key)

	var released Mode = ModeIdle
	switch d.mode {
	case ModeHoldToTalk:
		if !d.chordHeld(d.cfg.HoldToTalkChord) {
			d.scheduleStopLocked()
		}
	case ModeHandsFree:
		// Hands-free exits only on the dedicated gesture: the exit key
		// released while not re-held, regardless of other keys.
		if key == d.cfg.HandsFreeExit && !d.held[d.cfg.HandsFreeExit] {
			d.mode = ModeIdle
			released = ModeHandsFree
		}
	}
	d.mu.Unlock()

	if released != ModeIdle {
		slog.Debug("chord released", "mode", released)
		d.emitReleased(released)
	}
}

// Reset clears all held keys and returns the detector to idle. Used when the
// listener restarts and the physical key state is unknown.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.held = make(map[Key]bool)
	d.lastRelease = make(map[Key]time.Time)
	if d.pendingStop != nil {
		d.pendingStop.Stop()
		d.pendingStop = nil
	}
	changed := d.mode != ModeIdle
	d.mode = ModeIdle
	d.mu.Unlock()

	if changed && d.onModeChanged != nil {
		d.onModeChanged(ModeIdle)
	}
}

// chordHeld reports whether every key of the chord is currently held.
// Caller must hold d.mu. An empty chord never matches.
func (d *Detector) chordHeld(chord []Key) bool {
	if len(chord) == 0 {
		return false
	}
	for _, k := range chord {
		if !d.held[k] {
			return false
		}
	}
	return true
}

// scheduleStopLocked starts (or restarts) the grace-period timer for the
// hold-to-talk chord. At most one timer is outstanding; starting a new one
// always cancels the previous. Caller must hold d.mu.
func (d *Detector) scheduleStopLocked() {
	if d.pendingStop != nil {
		d.pendingStop.Stop()
	}
	d.pendingStop = time.AfterFunc(d.cfg.GracePeriod, d.checkDelayedStop)
}

// checkDelayedStop fires after the grace period and re-checks the chord
// against the current held set. If the chord was restored in the meantime the
// timer is a no-op.
func (d *Detector) checkDelayedStop() {
	d.mu.Lock()
	d.pendingStop = nil
	if d.mode != ModeHoldToTalk || d.chordHeld(d.cfg.HoldToTalkChord) {
		slog.Debug("chord restored during grace period, continuing")
		d.mu.Unlock()
		return
	}
	d.mode = ModeIdle
	d.mu.Unlock()

	slog.Debug("grace period expired, releasing hold-to-talk")
	d.emitReleased(ModeHoldToTalk)
}

func (d *Detector) emitEngaged(m Mode) {
	if d.onEngaged != nil {
		d.onEngaged(m)
	}
	if d.onModeChanged != nil {
		d.onModeChanged(m)
	}
}

func (d *Detector) emitReleased(m Mode) {
	if d.onReleased != nil {
		d.onReleased(m)
	}
	if d.onModeChanged != nil {
		d.onModeChanged(ModeIdle)
	}
}
