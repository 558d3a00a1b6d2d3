// Package app wires the daemon together: hotkeys drive the state machine,
// the state machine drives capture, and finished recordings flow through
// transcription into the window that had focus when dictation began.
package app

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/voxkey/voxkey/clipboard"
	"github.com/voxkey/voxkey/config"
	"github.com/voxkey/voxkey/history"
	"github.com/voxkey/voxkey/hotkey"
	"github.com/voxkey/voxkey/soundfx"
	"github.com/voxkey/voxkey/state"
	"github.com/voxkey/voxkey/stt"
)

// Recorder captures audio between Start and Stop.
type Recorder interface {
	Start() error
	Stop() ([]float32, error)
	ForceCleanup()
}

// WindowTarget tracks the focused window and delivers text to it.
type WindowTarget interface {
	StoreCurrentWindow() error
	Deliver(text string) error
}

// StatusSink mirrors machine state into a UI surface such as the tray.
type StatusSink interface {
	SetState(state.State)
	RefreshHistory()
}

// Options holds the service's collaborators. Recorder and Transcriber are
// required; the rest may be nil.
type Options struct {
	Config      *config.Config
	Recorder    Recorder
	Transcriber stt.Transcriber
	Windows     WindowTarget
	History     *history.Store
	Sounds      *soundfx.Player
	Status      StatusSink
}

// Service orchestrates one dictation at a time.
type Service struct {
	cfg         *config.Config
	machine     *state.Machine
	recorder    Recorder
	transcriber stt.Transcriber
	windows     WindowTarget
	store       *history.Store
	sounds      *soundfx.Player
	status      StatusSink
	listener    *hotkey.Listener

	mu          sync.Mutex
	recordStart time.Time
	pendingStop *time.Timer
}

// New creates the service and hooks it to a fresh state machine.
func New(opts Options) *Service {
	s := &Service{
		cfg:         opts.Config,
		machine:     state.NewMachine(state.DefaultConfig()),
		recorder:    opts.Recorder,
		transcriber: opts.Transcriber,
		windows:     opts.Windows,
		store:       opts.History,
		sounds:      opts.Sounds,
		status:      opts.Status,
	}
	s.machine.OnStateChanged(func(st state.State) {
		if s.status != nil {
			s.status.SetState(st)
		}
	})
	s.machine.OnError(func(msg string) {
		s.sounds.Play(soundfx.CueError)
	})
	return s
}

// Machine exposes the state machine for observers.
func (s *Service) Machine() *state.Machine {
	return s.machine
}

// StartHotkeys builds the chord detector from config and begins listening
// for global key events.
func (s *Service) StartHotkeys() error {
	hk := s.cfg.Hotkeys
	dcfg := hotkey.DetectorConfig{
		HoldToTalkChord:     hotkey.ParseChord(hk.HoldToTalk),
		HandsFreeChord:      hotkey.ParseChord(hk.HandsFree),
		HandsFreeExit:       hotkey.ParseKey(hk.HandsFreeExit),
		DebounceWindow:      hk.Debounce(),
		GracePeriod:         hk.Grace(),
		LegacyModifierMerge: hk.LegacyModifierMerge,
	}
	detector := hotkey.NewDetector(dcfg)
	detector.OnChordEngaged(func(m hotkey.Mode) {
		slog.Debug("chord engaged", "mode", m)
		s.BeginDictation()
	})
	detector.OnChordReleased(func(m hotkey.Mode) {
		slog.Debug("chord released", "mode", m)
		s.EndDictation()
	})

	s.listener = hotkey.NewListener(detector)
	return s.listener.Start()
}

// Toggle flips between recording and stopped, for tray or IPC use.
func (s *Service) Toggle() {
	switch s.machine.State() {
	case state.Idle:
		s.BeginDictation()
	case state.Recording:
		s.EndDictation()
	default:
		slog.Warn("toggle ignored", "state", s.machine.State())
	}
}

// BeginDictation snapshots the focused window and starts capturing.
func (s *Service) BeginDictation() {
	if !s.machine.StartRecording() {
		return
	}

	// The target window is captured before the device opens so slow audio
	// setup cannot race a focus change.
	if s.windows != nil {
		if err := s.windows.StoreCurrentWindow(); err != nil {
			slog.Warn("could not store target window", "err", err)
		}
	}

	if err := s.recorder.Start(); err != nil {
		slog.Error("start capture", "err", err)
		s.machine.Fail("could not start recording: " + err.Error())
		s.recorder.ForceCleanup()
		return
	}

	s.mu.Lock()
	s.recordStart = time.Now()
	s.mu.Unlock()
	s.sounds.Play(soundfx.CueStart)
}

// EndDictation stops capturing and kicks off transcription. Releases that
// arrive before the minimum duration keep the microphone open until the
// minimum has elapsed, so a quick tap still produces usable audio.
func (s *Service) EndDictation() {
	if !s.machine.StopRecording() {
		return
	}
	s.sounds.Play(soundfx.CueStop)

	s.mu.Lock()
	elapsed := time.Since(s.recordStart)
	minDur := s.cfg.Audio.MinDuration()
	if remain := minDur - elapsed; remain > 0 {
		slog.Debug("deferring capture stop", "remaining", remain)
		s.pendingStop = time.AfterFunc(remain, s.finishRecording)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.finishRecording()
}

// finishRecording drains the capture and processes the audio.
func (s *Service) finishRecording() {
	s.mu.Lock()
	s.pendingStop = nil
	duration := time.Since(s.recordStart)
	s.mu.Unlock()

	samples, err := s.recorder.Stop()
	if err != nil {
		slog.Error("stop capture", "err", err)
		s.machine.Fail("could not stop recording: " + err.Error())
		return
	}
	s.process(samples, duration)
}

// process transcribes the audio and delivers the text.
func (s *Service) process(samples []float32, duration time.Duration) {
	if len(samples) == 0 {
		slog.Info("no audio captured")
		s.machine.CompleteProcessing("")
		return
	}
	slog.Debug("audio captured",
		"samples", len(samples),
		"duration", duration,
		"rms", rms(samples))

	lang := s.cfg.Transcription.Language
	text, err := s.transcriber.Transcribe(samples, lang)
	if err != nil {
		slog.Error("transcription failed", "err", err)
		s.machine.Fail("transcription failed: " + err.Error())
		return
	}
	if text == "" {
		slog.Info("no speech recognized")
		s.machine.CompleteProcessing("")
		return
	}

	// Delivery happens before the machine returns to Idle so the next
	// dictation cannot overwrite the stored window mid-paste.
	s.deliver(text)
	s.machine.CompleteProcessing(text)
	s.sounds.Play(soundfx.CueComplete)

	if s.store != nil {
		if _, err := s.store.Save(text, lang); err != nil {
			slog.Warn("could not save history", "err", err)
		} else if s.status != nil {
			s.status.RefreshHistory()
		}
	}
}

// deliver pastes into the stored window, falling back to the clipboard.
func (s *Service) deliver(text string) {
	if s.windows == nil {
		if err := clipboard.SetText(text); err != nil {
			slog.Error("clipboard fallback failed", "err", err)
		}
		return
	}
	if err := s.windows.Deliver(text); err != nil {
		slog.Warn("paste failed, text left on clipboard", "err", err)
		if cerr := clipboard.SetText(text); cerr != nil {
			slog.Error("clipboard fallback failed", "err", cerr)
		}
	}
}

// Recent returns the latest history entries, newest first.
func (s *Service) Recent(n int) []history.Entry {
	if s.store == nil {
		return nil
	}
	entries, err := s.store.Recent(n)
	if err != nil {
		slog.Warn("could not read history", "err", err)
		return nil
	}
	return entries
}

// Shutdown stops the listener and releases everything.
func (s *Service) Shutdown() {
	if s.listener != nil {
		s.listener.Stop()
	}
	s.mu.Lock()
	if s.pendingStop != nil {
		s.pendingStop.Stop()
		s.pendingStop = nil
	}
	s.mu.Unlock()
	s.recorder.ForceCleanup()
	if s.transcriber != nil {
		if err := s.transcriber.Close(); err != nil {
			slog.Warn("close transcriber", "err", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("close history", "err", err)
		}
	}
}

func rms(samples []float32) float64 {
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
