package stt

import (
	"bytes"
	"encoding/binary"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewBackendSelection(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"api_with_key", Config{Backend: "whisper-api", APIKey: "sk-test"}, false},
		{"api_missing_key", Config{Backend: "whisper-api"}, true},
		{"default_is_api", Config{APIKey: "sk-test"}, false},
		{"unknown", Config{Backend: "parakeet"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("New(%+v) succeeded, want error", tt.cfg)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%+v): %v", tt.cfg, err)
			}
			defer tr.Close()
			if tr.Name() == "" {
				t.Error("transcriber has empty name")
			}
		})
	}
}

func TestEncodeWAV(t *testing.T) {
	var buf bytes.Buffer
	samples := []float32{0, 0.5, -0.5, 2, -2} // last two clamp
	if err := encodeWAV(&buf, samples, 16000); err != nil {
		t.Fatalf("encodeWAV: %v", err)
	}

	data := buf.Bytes()
	if len(data) != 44+len(samples)*2 {
		t.Fatalf("encoded size = %d, want %d", len(data), 44+len(samples)*2)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Errorf("sample rate = %d, want 16000", rate)
	}
	if ch := binary.LittleEndian.Uint16(data[22:24]); ch != 1 {
		t.Errorf("channels = %d, want 1", ch)
	}

	pcm := data[44:]
	first := int16(binary.LittleEndian.Uint16(pcm[0:2]))
	if first != 0 {
		t.Errorf("sample[0] = %d, want 0", first)
	}
	clampedHigh := int16(binary.LittleEndian.Uint16(pcm[6:8]))
	if clampedHigh != 32767 {
		t.Errorf("clamped high sample = %d, want 32767", clampedHigh)
	}
	clampedLow := int16(binary.LittleEndian.Uint16(pcm[8:10]))
	if clampedLow != -32767 {
		t.Errorf("clamped low sample = %d, want -32767", clampedLow)
	}
}

func TestWhisperAPITranscribe(t *testing.T) {
	var gotLanguage string
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotLanguage = r.FormValue("language")
		gotModel = r.FormValue("model")
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing audio file: %v", err)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("auth header = %q", auth)
		}
		w.Write([]byte(`{"text": "  hello world  "}`))
	}))
	defer srv.Close()

	tr, err := NewWhisperAPI(WhisperAPIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewWhisperAPI: %v", err)
	}

	text, err := tr.Transcribe(speechSamples(t), "en")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world" {
		t.Errorf("text = %q, want trimmed %q", text, "hello world")
	}
	if gotLanguage != "en" {
		t.Errorf("language field = %q, want en", gotLanguage)
	}
	if gotModel != "whisper-1" {
		t.Errorf("model field = %q, want whisper-1", gotModel)
	}
}

func TestWhisperAPIAutoLanguageOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(10 << 20)
		if _, ok := r.MultipartForm.Value["language"]; ok {
			t.Error("language field present for auto-detect, want omitted")
		}
		w.Write([]byte(`{"text": "ok"}`))
	}))
	defer srv.Close()

	tr, err := NewWhisperAPI(WhisperAPIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewWhisperAPI: %v", err)
	}
	if _, err := tr.Transcribe(speechSamples(t), "auto"); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
}

func TestTooShortAudioSkipsBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend called for sub-minimum audio")
	}))
	defer srv.Close()

	tr, err := NewWhisperAPI(WhisperAPIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewWhisperAPI: %v", err)
	}
	text, err := tr.Transcribe(make([]float32, minSamples-1), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty for short clip", text)
	}
}

func TestWhisperAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	tr, err := NewWhisperAPI(WhisperAPIConfig{APIKey: "sk-bad", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewWhisperAPI: %v", err)
	}
	if _, err := tr.Transcribe(speechSamples(t), ""); err == nil {
		t.Fatal("Transcribe succeeded on 401, want error")
	}
}

// speechSamples returns half a second of quiet noise, comfortably above the
// minimum transcribable length.
func speechSamples(t *testing.T) []float32 {
	t.Helper()
	samples := make([]float32, SampleRate/2)
	for i := range samples {
		samples[i] = float32(i%7) * 0.01
	}
	return samples
}
