package stt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const defaultWhisperAPIURL = "https://api.openai.com/v1/audio/transcriptions"

// WhisperAPI transcribes audio through an OpenAI-compatible transcription
// endpoint.
type WhisperAPI struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// WhisperAPIConfig holds configuration for WhisperAPI.
type WhisperAPIConfig struct {
	APIKey  string
	BaseURL string // Optional, defaults to OpenAI's endpoint
	Model   string // Optional, defaults to "whisper-1"
}

// NewWhisperAPI creates an API-backed transcriber. The key is required.
func NewWhisperAPI(cfg WhisperAPIConfig) (*WhisperAPI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key required", ErrNotConfigured)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultWhisperAPIURL
	}
	model := cfg.Model
	if model == "" {
		model = "whisper-1"
	}
	return &WhisperAPI{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		model:   model,
		http:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (w *WhisperAPI) Name() string { return "whisper-api" }

// Transcribe uploads the audio as a WAV file and returns the recognized text.
// Clips below the minimum length return empty without an upload.
func (w *WhisperAPI) Transcribe(audio []float32, language string) (string, error) {
	if tooShort(audio) {
		slog.Debug("audio below minimum length, skipping upload", "samples", len(audio))
		return "", nil
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if err := encodeWAV(part, audio, SampleRate); err != nil {
		return "", fmt.Errorf("encode audio: %w", err)
	}
	if err := writer.WriteField("model", w.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	// The API treats an absent language field as auto-detect; it rejects
	// the literal "auto".
	if language != "" && language != "auto" {
		if err := writer.WriteField("language", language); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, w.baseURL, &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+w.apiKey)

	start := time.Now()
	resp, err := w.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription API error %d: %s", resp.StatusCode, string(body))
	}

	var apiResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	text := strings.TrimSpace(apiResp.Text)
	slog.Debug("api transcription done",
		"chars", len(text),
		"elapsed", time.Since(start))
	return text, nil
}

func (w *WhisperAPI) Close() error { return nil }
