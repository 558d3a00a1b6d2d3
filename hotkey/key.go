// Package hotkey detects global key chords and drives the recording modes.
//
// Raw platform key events are normalized into canonical keys, tracked in a
// held-key set, and matched against configured chords. Release debouncing and
// a grace period make chord detection robust against the duplicate and
// out-of-order release events some keyboard drivers emit.
package hotkey

import (
	"strings"
	"unicode"
)

// Key is a canonical key identifier after normalization. Left/right variants
// of a modifier collapse to a single identifier; printable characters are
// their lower-cased literal.
type Key string

const (
	KeySuper Key = "super"
	KeyAlt   Key = "alt"
	KeyCtrl  Key = "ctrl"
	KeyShift Key = "shift"
	KeySpace Key = "space"

	// KeyUnknown marks a raw event that could not be mapped. Unknown events
	// are ignored by the detector.
	KeyUnknown Key = ""
)

// RawKey is a platform key event before normalization.
type RawKey struct {
	Code uint16 // platform keycode
	Char rune   // printable character, zero if none
}

// X11 keycodes for the keys the detector cares about. The hook library
// reports these in the event Rawcode on Linux.
const (
	rawShiftL = 50
	rawShiftR = 62
	rawCtrlL  = 37
	rawCtrlR  = 105
	rawAltL   = 64
	rawAltR   = 108
	rawSuperL = 133
	rawSuperR = 134
	rawSpace  = 65
)

// Normalizer maps raw key events to canonical keys.
type Normalizer struct {
	// LegacyModifierMerge folds Ctrl into the Alt bucket, matching an older
	// hotkey scheme where the two were interchangeable. Off by default; new
	// installs should keep the modifiers distinct.
	LegacyModifierMerge bool
}

// Normalize maps a raw key event to its canonical key. It is pure and total:
// every raw key maps to exactly one canonical key, and unmapped printable
// characters pass through as their lower-cased literal.
func (n Normalizer) Normalize(raw RawKey) Key {
	switch raw.Code {
	case rawSuperL, rawSuperR:
		return KeySuper
	case rawAltL, rawAltR:
		return KeyAlt
	case rawCtrlL, rawCtrlR:
		if n.LegacyModifierMerge {
			return KeyAlt
		}
		return KeyCtrl
	case rawShiftL, rawShiftR:
		return KeyShift
	case rawSpace:
		return KeySpace
	}

	if raw.Char == ' ' {
		return KeySpace
	}
	if unicode.IsPrint(raw.Char) {
		return Key(strings.ToLower(string(raw.Char)))
	}
	return KeyUnknown
}

// ParseKey converts a configuration key name to a canonical key.
// Names are case-insensitive; common aliases are accepted.
func ParseKey(name string) Key {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "super", "win", "cmd", "meta":
		return KeySuper
	case "alt", "option":
		return KeyAlt
	case "ctrl", "control":
		return KeyCtrl
	case "shift":
		return KeyShift
	case "space":
		return KeySpace
	case "":
		return KeyUnknown
	default:
		return Key(strings.ToLower(strings.TrimSpace(name)))
	}
}

// ParseChord converts a list of configuration key names to a chord.
// Unknown or empty names are dropped.
func ParseChord(names []string) []Key {
	chord := make([]Key, 0, len(names))
	for _, name := range names {
		if k := ParseKey(name); k != KeyUnknown {
			chord = append(chord, k)
		}
	}
	return chord
}
