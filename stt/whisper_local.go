package stt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// WhisperLocal transcribes audio by invoking a whisper.cpp CLI binary.
type WhisperLocal struct {
	modelPath string
	binPath   string
}

// WhisperLocalConfig holds configuration for WhisperLocal.
type WhisperLocalConfig struct {
	ModelPath string // Path to a ggml model file
	BinPath   string // Path to the whisper.cpp binary (optional, searched if empty)
}

// NewWhisperLocal creates a whisper.cpp-backed transcriber. Both the binary
// and the model must already be present.
func NewWhisperLocal(cfg WhisperLocalConfig) (*WhisperLocal, error) {
	modelPath := cfg.ModelPath
	if modelPath == "" {
		modelPath = filepath.Join(xdg.DataHome, "voxkey", "models", "ggml-base.bin")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: model not found at %s", ErrNotConfigured, modelPath)
	}

	binPath := cfg.BinPath
	if binPath == "" {
		binPath = findWhisperBinary()
	}
	if binPath == "" {
		return nil, fmt.Errorf("%w: whisper.cpp binary not found in PATH", ErrNotConfigured)
	}

	return &WhisperLocal{modelPath: modelPath, binPath: binPath}, nil
}

func (w *WhisperLocal) Name() string { return "whisper-local" }

// Transcribe writes the audio to a temp WAV file and runs whisper.cpp on it.
// Clips below the minimum length return empty without invoking the binary.
func (w *WhisperLocal) Transcribe(audio []float32, language string) (string, error) {
	if tooShort(audio) {
		slog.Debug("audio below minimum length, skipping whisper.cpp", "samples", len(audio))
		return "", nil
	}

	f, err := os.CreateTemp("", "voxkey-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp audio file: %w", err)
	}
	audioPath := f.Name()
	defer os.Remove(audioPath)

	if err := encodeWAV(f, audio, SampleRate); err != nil {
		f.Close()
		return "", fmt.Errorf("encode audio: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close audio file: %w", err)
	}

	args := []string{
		"-m", w.modelPath,
		"-f", audioPath,
		"-oj",
		"--no-prints",
	}
	if language != "" && language != "auto" {
		args = append(args, "-l", language)
	}

	start := time.Now()
	cmd := exec.Command(w.binPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run whisper.cpp: %w: %s", err, stderr.String())
	}

	var out struct {
		Transcription []struct {
			Text string `json:"text"`
		} `json:"transcription"`
	}
	var text string
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		// Older builds print plain text despite -oj.
		text = stdout.String()
	} else {
		var sb strings.Builder
		for _, seg := range out.Transcription {
			sb.WriteString(seg.Text)
		}
		text = sb.String()
	}

	text = strings.TrimSpace(text)
	slog.Debug("local transcription done",
		"chars", len(text),
		"elapsed", time.Since(start))
	return text, nil
}

func (w *WhisperLocal) Close() error { return nil }

func findWhisperBinary() string {
	names := []string{"whisper-cli", "whisper-cpp", "whisper"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	home, _ := os.UserHomeDir()
	locations := []string{
		"/usr/local/bin",
		filepath.Join(home, ".local", "bin"),
		filepath.Join(home, "whisper.cpp", "build", "bin"),
	}
	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
