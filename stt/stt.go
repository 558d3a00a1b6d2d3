// Package stt converts recorded audio into text.
package stt

import (
	"errors"
	"fmt"
)

// SampleRate is the PCM rate all transcribers expect.
const SampleRate = 16000

// minSamples is the shortest clip worth sending to a backend (0.1s).
// Anything shorter is noise from chord flicker, not speech.
const minSamples = SampleRate / 10

// tooShort reports whether a clip is below the minimum transcribable length.
func tooShort(audio []float32) bool {
	return len(audio) < minSamples
}

// ErrNotConfigured is returned when a backend is missing its credentials
// or model files.
var ErrNotConfigured = errors.New("stt: backend not configured")

// Transcriber converts mono float32 PCM at SampleRate into text.
type Transcriber interface {
	// Name returns the backend identifier.
	Name() string

	// Transcribe converts audio to text. language is a source language
	// code; empty or "auto" means auto-detect. Returns an empty string
	// when the audio contains no recognizable speech.
	Transcribe(audio []float32, language string) (string, error)

	// Close releases resources held by the backend.
	Close() error
}

// Config selects and configures a transcription backend.
type Config struct {
	Backend string // "whisper-api" or "whisper-local"

	// whisper-api
	APIKey  string
	BaseURL string
	Model   string

	// whisper-local
	ModelPath string
	BinPath   string
}

// New creates the transcriber named by cfg.Backend.
func New(cfg Config) (Transcriber, error) {
	switch cfg.Backend {
	case "", "whisper-api":
		return NewWhisperAPI(WhisperAPIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
	case "whisper-local":
		return NewWhisperLocal(WhisperLocalConfig{
			ModelPath: cfg.ModelPath,
			BinPath:   cfg.BinPath,
		})
	default:
		return nil, fmt.Errorf("stt: unknown backend %q", cfg.Backend)
	}
}
