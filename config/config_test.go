package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Audio.SampleRate != def.Audio.SampleRate {
		t.Errorf("sample rate = %d, want default %d", cfg.Audio.SampleRate, def.Audio.SampleRate)
	}
	if cfg.Hotkeys.DebounceMs != 100 || cfg.Hotkeys.GraceMs != 200 {
		t.Errorf("hotkey timings = %d/%d, want 100/200",
			cfg.Hotkeys.DebounceMs, cfg.Hotkeys.GraceMs)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
[audio]
sample_rate = 44100
min_duration_ms = 250

[hotkeys]
hold_to_talk = ["ctrl", "shift"]
legacy_modifier_merge = true

[transcription]
backend = "whisper-local"
language = "en"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("sample rate = %d, want 44100", cfg.Audio.SampleRate)
	}
	if cfg.Audio.MinDurationMs != 250 {
		t.Errorf("min duration = %d, want 250", cfg.Audio.MinDurationMs)
	}
	if len(cfg.Hotkeys.HoldToTalk) != 2 || cfg.Hotkeys.HoldToTalk[0] != "ctrl" {
		t.Errorf("hold_to_talk = %v, want [ctrl shift]", cfg.Hotkeys.HoldToTalk)
	}
	if !cfg.Hotkeys.LegacyModifierMerge {
		t.Error("legacy_modifier_merge not set")
	}
	if cfg.Transcription.Backend != "whisper-local" {
		t.Errorf("backend = %q, want whisper-local", cfg.Transcription.Backend)
	}
	// Untouched sections keep their defaults.
	if !cfg.History.Enabled || cfg.History.MaxEntries != 200 {
		t.Errorf("history = %+v, want defaults", cfg.History)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeConfig(t, "[audio")
	if _, err := Load(path); err == nil {
		t.Fatal("Load succeeded on malformed TOML, want error")
	}
}

func TestClamping(t *testing.T) {
	path := writeConfig(t, `
[audio]
sample_rate = 192000
channels = 7
min_duration_ms = -5

[hotkeys]
debounce_ms = -1
hold_to_talk = []
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Audio.SampleRate != def.Audio.SampleRate {
		t.Errorf("sample rate = %d, want clamped to %d", cfg.Audio.SampleRate, def.Audio.SampleRate)
	}
	if cfg.Audio.Channels != def.Audio.Channels {
		t.Errorf("channels = %d, want clamped to %d", cfg.Audio.Channels, def.Audio.Channels)
	}
	if cfg.Audio.MinDurationMs != def.Audio.MinDurationMs {
		t.Errorf("min duration = %d, want clamped", cfg.Audio.MinDurationMs)
	}
	if cfg.Hotkeys.DebounceMs != def.Hotkeys.DebounceMs {
		t.Errorf("debounce = %d, want clamped", cfg.Hotkeys.DebounceMs)
	}
	if len(cfg.Hotkeys.HoldToTalk) == 0 {
		t.Error("empty hold_to_talk not replaced with default chord")
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	if cfg.Hotkeys.Debounce().Milliseconds() != 100 {
		t.Errorf("Debounce() = %v, want 100ms", cfg.Hotkeys.Debounce())
	}
	if cfg.Hotkeys.Grace().Milliseconds() != 200 {
		t.Errorf("Grace() = %v, want 200ms", cfg.Hotkeys.Grace())
	}
	if cfg.Audio.MinDuration().Milliseconds() != 500 {
		t.Errorf("MinDuration() = %v, want 500ms", cfg.Audio.MinDuration())
	}
}
