// Package config handles application configuration.
//
// Configuration lives in a TOML file under the XDG config directory
// (~/.config/voxkey/config.toml). A missing file yields the defaults; a
// malformed file is an error so typos do not silently fall back.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

const (
	appName        = "voxkey"
	configFileName = "config.toml"
)

// Config is the application configuration.
type Config struct {
	Audio         Audio         `toml:"audio"`
	Hotkeys       Hotkeys       `toml:"hotkeys"`
	Transcription Transcription `toml:"transcription"`
	WindowManager WindowManager `toml:"window_manager"`
	History       History       `toml:"history"`
	Sounds        Sounds        `toml:"sounds"`
	Logging       Logging       `toml:"logging"`
}

// Audio configures capture.
type Audio struct {
	SampleRate int `toml:"sample_rate"`
	Channels   int `toml:"channels"`
	// DeviceID selects the input device; -1 means the system default.
	DeviceID int `toml:"device_id"`
	// MinDurationMs is the shortest recording worth transcribing.
	MinDurationMs int `toml:"min_duration_ms"`
}

// Hotkeys configures chord detection.
type Hotkeys struct {
	// HoldToTalk lists the keys of the push-to-talk chord.
	HoldToTalk []string `toml:"hold_to_talk"`
	// HandsFree lists the keys that lock recording on.
	HandsFree []string `toml:"hands_free"`
	// HandsFreeExit is the key whose release ends a hands-free session.
	HandsFreeExit string `toml:"hands_free_exit"`

	DebounceMs int `toml:"debounce_ms"`
	GraceMs    int `toml:"grace_ms"`

	// LegacyModifierMerge treats ctrl as alt, for keyboards remapped the
	// old way.
	LegacyModifierMerge bool `toml:"legacy_modifier_merge"`
}

// Transcription selects and configures the speech-to-text backend.
type Transcription struct {
	Backend  string `toml:"backend"`
	Language string `toml:"language"`

	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`

	ModelPath string `toml:"model_path"`
	BinPath   string `toml:"bin_path"`
}

// WindowManager configures focus tracking and paste delivery.
type WindowManager struct {
	// Strategy forces a specific strategy ("gnome-dbus", "xdotool");
	// empty means auto-detect.
	Strategy string `toml:"strategy"`
}

// History configures the dictation history store.
type History struct {
	Enabled    bool `toml:"enabled"`
	MaxEntries int  `toml:"max_entries"`
}

// Sounds configures audio feedback cues.
type Sounds struct {
	Enabled bool `toml:"enabled"`
}

// Logging configures the log output.
type Logging struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Audio: Audio{
			SampleRate:    16000,
			Channels:      1,
			DeviceID:      -1,
			MinDurationMs: 500,
		},
		Hotkeys: Hotkeys{
			HoldToTalk:    []string{"super", "alt"},
			HandsFree:     []string{"super", "alt", "space"},
			HandsFreeExit: "space",
			DebounceMs:    100,
			GraceMs:       200,
		},
		Transcription: Transcription{
			Backend:  "whisper-api",
			Language: "auto",
		},
		History: History{
			Enabled:    true,
			MaxEntries: 200,
		},
		Sounds: Sounds{
			Enabled: true,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Path returns the config file location.
func Path() string {
	return filepath.Join(xdg.ConfigHome, appName, configFileName)
}

// Load reads the config file at path, or the default location when path is
// empty. A missing file returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			slog.Debug("config file absent, using defaults", "path", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.clamp()
	return cfg, nil
}

// CreateDefault writes a default config file if none exists and returns its
// path.
func CreateDefault() (string, error) {
	path := Path()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	slog.Info("default config created", "path", path)
	return path, nil
}

// MinDuration returns the minimum recording duration.
func (a Audio) MinDuration() time.Duration {
	return time.Duration(a.MinDurationMs) * time.Millisecond
}

// Debounce returns the key-release debounce window.
func (h Hotkeys) Debounce() time.Duration {
	return time.Duration(h.DebounceMs) * time.Millisecond
}

// Grace returns the chord-break grace period.
func (h Hotkeys) Grace() time.Duration {
	return time.Duration(h.GraceMs) * time.Millisecond
}

// clamp pulls out-of-range values back to sane bounds.
func (c *Config) clamp() {
	def := Default()
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 48000 {
		slog.Warn("sample_rate out of range, using default",
			"value", c.Audio.SampleRate, "default", def.Audio.SampleRate)
		c.Audio.SampleRate = def.Audio.SampleRate
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 2 {
		c.Audio.Channels = def.Audio.Channels
	}
	if c.Audio.MinDurationMs < 0 {
		c.Audio.MinDurationMs = def.Audio.MinDurationMs
	}
	if c.Hotkeys.DebounceMs < 0 {
		c.Hotkeys.DebounceMs = def.Hotkeys.DebounceMs
	}
	if c.Hotkeys.GraceMs < 0 {
		c.Hotkeys.GraceMs = def.Hotkeys.GraceMs
	}
	if len(c.Hotkeys.HoldToTalk) == 0 {
		c.Hotkeys.HoldToTalk = def.Hotkeys.HoldToTalk
	}
	if c.History.MaxEntries < 0 {
		c.History.MaxEntries = def.History.MaxEntries
	}
}

const defaultConfigTemplate = `# voxkey configuration

[audio]
# sample_rate = 16000
# channels = 1
# device_id = -1          # -1 uses the system default input
# min_duration_ms = 500   # recordings shorter than this are discarded

[hotkeys]
# hold_to_talk = ["super", "alt"]
# hands_free = ["super", "alt", "space"]
# hands_free_exit = "space"
# debounce_ms = 100
# grace_ms = 200

[transcription]
# backend = "whisper-api"   # or "whisper-local"
# language = "auto"
# api_key = ""
# model = "whisper-1"
# model_path = ""           # whisper-local: path to a ggml model
# bin_path = ""             # whisper-local: path to the whisper.cpp binary

[window_manager]
# strategy = ""             # "", "gnome-dbus", or "xdotool"

[history]
# enabled = true
# max_entries = 200

[sounds]
# enabled = true

[logging]
# level = "info"
`
