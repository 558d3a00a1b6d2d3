package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxkey/voxkey/config"
	"github.com/voxkey/voxkey/hotkey"
	"github.com/voxkey/voxkey/state"
)

type fakeRecorder struct {
	mu        sync.Mutex
	recording bool
	samples   []float32
	startErr  error
	stopErr   error
	stops     []time.Time
	cleanups  int
}

func (r *fakeRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	r.recording = true
	return nil
}

func (r *fakeRecorder) Stop() ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	r.stops = append(r.stops, time.Now())
	if r.stopErr != nil {
		return nil, r.stopErr
	}
	return r.samples, nil
}

func (r *fakeRecorder) ForceCleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	r.cleanups++
}

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (t *fakeTranscriber) Name() string { return "fake" }

func (t *fakeTranscriber) Transcribe(audio []float32, language string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	return t.text, t.err
}

func (t *fakeTranscriber) Close() error { return nil }

type fakeWindows struct {
	mu          sync.Mutex
	stored      int
	delivered   []string
	storeErr    error
	payErr      error
	deliverHook func()
}

func (w *fakeWindows) StoreCurrentWindow() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stored++
	return w.storeErr
}

func (w *fakeWindows) Deliver(text string) error {
	w.mu.Lock()
	hook := w.deliverHook
	w.mu.Unlock()
	if hook != nil {
		hook()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.payErr != nil {
		return w.payErr
	}
	w.delivered = append(w.delivered, text)
	return nil
}

func testService(rec *fakeRecorder, tr *fakeTranscriber, win *fakeWindows) *Service {
	cfg := config.Default()
	cfg.Audio.MinDurationMs = 50
	return New(Options{
		Config:      cfg,
		Recorder:    rec,
		Transcriber: tr,
		Windows:     win,
	})
}

func waitForState(t *testing.T, s *Service, want state.State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.Machine().State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", s.Machine().State(), want)
}

func TestDictationHappyPath(t *testing.T) {
	rec := &fakeRecorder{samples: []float32{0.1, 0.2, 0.3}}
	tr := &fakeTranscriber{text: "hello world"}
	win := &fakeWindows{}
	s := testService(rec, tr, win)

	s.BeginDictation()
	if s.Machine().State() != state.Recording {
		t.Fatalf("state = %v, want recording", s.Machine().State())
	}
	if win.stored != 1 {
		t.Errorf("windows stored %d times, want 1 (before device open)", win.stored)
	}

	time.Sleep(60 * time.Millisecond) // past min duration
	s.EndDictation()
	waitForState(t, s, state.Idle)

	win.mu.Lock()
	defer win.mu.Unlock()
	if len(win.delivered) != 1 || win.delivered[0] != "hello world" {
		t.Errorf("delivered = %v, want [hello world]", win.delivered)
	}
	if got := s.Machine().LastTranscription(); got != "hello world" {
		t.Errorf("last transcription = %q", got)
	}
}

func TestQuickTapKeepsRecordingToMinimum(t *testing.T) {
	rec := &fakeRecorder{samples: []float32{0.1}}
	tr := &fakeTranscriber{text: "ok"}
	s := testService(rec, tr, &fakeWindows{})

	start := time.Now()
	s.BeginDictation()
	s.EndDictation() // immediate release, well under the 50ms minimum

	// The machine leaves Recording right away...
	if s.Machine().State() != state.Processing {
		t.Fatalf("state = %v, want processing", s.Machine().State())
	}

	// ...but the microphone stays open until the minimum has passed.
	waitForState(t, s, state.Idle)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.stops) != 1 {
		t.Fatalf("recorder stopped %d times, want 1", len(rec.stops))
	}
	if held := rec.stops[0].Sub(start); held < 50*time.Millisecond {
		t.Errorf("capture held for %v, want >= 50ms", held)
	}
}

func TestEmptyAudioIsNotAnError(t *testing.T) {
	rec := &fakeRecorder{samples: nil}
	tr := &fakeTranscriber{text: "never called"}
	s := testService(rec, tr, &fakeWindows{})

	s.BeginDictation()
	time.Sleep(60 * time.Millisecond)
	s.EndDictation()
	waitForState(t, s, state.Idle)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.calls != 0 {
		t.Errorf("transcriber called %d times for empty audio, want 0", tr.calls)
	}
}

func TestEmptyTranscriptionIsNotAnError(t *testing.T) {
	rec := &fakeRecorder{samples: []float32{0.1}}
	tr := &fakeTranscriber{text: ""}
	win := &fakeWindows{}
	s := testService(rec, tr, win)

	s.BeginDictation()
	time.Sleep(60 * time.Millisecond)
	s.EndDictation()
	waitForState(t, s, state.Idle)

	win.mu.Lock()
	defer win.mu.Unlock()
	if len(win.delivered) != 0 {
		t.Errorf("delivered = %v, want nothing for silent audio", win.delivered)
	}
}

func TestTranscriptionFailureEntersError(t *testing.T) {
	rec := &fakeRecorder{samples: []float32{0.1}}
	tr := &fakeTranscriber{err: errors.New("api down")}
	s := testService(rec, tr, &fakeWindows{})

	s.BeginDictation()
	time.Sleep(60 * time.Millisecond)
	s.EndDictation()
	waitForState(t, s, state.Error)

	// The default error reset returns the machine to Idle; a new
	// dictation then works.
	waitForState(t, s, state.Idle)
	tr.mu.Lock()
	tr.err = nil
	tr.text = "recovered"
	tr.mu.Unlock()

	s.BeginDictation()
	if s.Machine().State() != state.Recording {
		t.Fatalf("state after recovery = %v, want recording", s.Machine().State())
	}
	time.Sleep(60 * time.Millisecond)
	s.EndDictation()
	waitForState(t, s, state.Idle)
}

func TestCaptureStartFailure(t *testing.T) {
	rec := &fakeRecorder{startErr: errors.New("device busy")}
	s := testService(rec, &fakeTranscriber{}, &fakeWindows{})

	s.BeginDictation()
	if s.Machine().State() != state.Error {
		t.Fatalf("state = %v, want error", s.Machine().State())
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.cleanups == 0 {
		t.Error("no forced cleanup after failed start")
	}
}

func TestWindowStoreFailureDoesNotBlockDictation(t *testing.T) {
	rec := &fakeRecorder{samples: []float32{0.1}}
	tr := &fakeTranscriber{text: "still works"}
	win := &fakeWindows{storeErr: errors.New("no focus info")}
	s := testService(rec, tr, win)

	s.BeginDictation()
	if s.Machine().State() != state.Recording {
		t.Fatalf("state = %v, want recording despite window error", s.Machine().State())
	}
	time.Sleep(60 * time.Millisecond)
	s.EndDictation()
	waitForState(t, s, state.Idle)
}

func TestDeliveryCompletesBeforeIdle(t *testing.T) {
	rec := &fakeRecorder{samples: []float32{0.1}}
	tr := &fakeTranscriber{text: "ordered"}
	win := &fakeWindows{}
	s := testService(rec, tr, win)

	// The machine must still be Processing while the paste runs, so a new
	// dictation cannot start and overwrite the target window mid-delivery.
	var during state.State
	win.deliverHook = func() {
		during = s.Machine().State()
	}

	s.BeginDictation()
	time.Sleep(60 * time.Millisecond)
	s.EndDictation()
	waitForState(t, s, state.Idle)

	if during != state.Processing {
		t.Errorf("state during delivery = %v, want processing", during)
	}
	win.mu.Lock()
	defer win.mu.Unlock()
	if len(win.delivered) != 1 {
		t.Errorf("delivered = %v, want one entry", win.delivered)
	}
}

func TestChordDrivenDictation(t *testing.T) {
	rec := &fakeRecorder{samples: []float32{0.1, 0.2}}
	tr := &fakeTranscriber{text: "dictated"}
	win := &fakeWindows{}
	s := testService(rec, tr, win)

	// Wire a real chord detector the way StartHotkeys does, without the OS
	// hook, and drive it with synthetic X11 key events.
	detector := hotkey.NewDetector(hotkey.DetectorConfig{
		HoldToTalkChord: []hotkey.Key{hotkey.KeySuper, hotkey.KeyAlt},
		DebounceWindow:  time.Millisecond,
		GracePeriod:     20 * time.Millisecond,
	})
	detector.OnChordEngaged(func(hotkey.Mode) { s.BeginDictation() })
	detector.OnChordReleased(func(hotkey.Mode) { s.EndDictation() })

	const (
		superL uint16 = 133
		altL   uint16 = 64
	)
	start := time.Now()
	detector.HandleKeyDown(hotkey.RawKey{Code: superL})
	detector.HandleKeyDown(hotkey.RawKey{Code: altL})
	if s.Machine().State() != state.Recording {
		t.Fatalf("state after chord = %v, want recording", s.Machine().State())
	}

	detector.HandleKeyUp(hotkey.RawKey{Code: altL})
	detector.HandleKeyUp(hotkey.RawKey{Code: superL})
	waitForState(t, s, state.Idle)

	win.mu.Lock()
	defer win.mu.Unlock()
	if len(win.delivered) != 1 || win.delivered[0] != "dictated" {
		t.Errorf("delivered = %v, want [dictated]", win.delivered)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.stops) != 1 {
		t.Fatalf("recorder stopped %d times, want 1", len(rec.stops))
	}
	// Instant release still keeps the capture open for the minimum duration.
	if held := rec.stops[0].Sub(start); held < 50*time.Millisecond {
		t.Errorf("capture held for %v, want >= 50ms", held)
	}
}

func TestToggle(t *testing.T) {
	rec := &fakeRecorder{samples: []float32{0.1}}
	tr := &fakeTranscriber{text: "toggled"}
	s := testService(rec, tr, &fakeWindows{})

	s.Toggle()
	if s.Machine().State() != state.Recording {
		t.Fatalf("state after toggle = %v, want recording", s.Machine().State())
	}
	time.Sleep(60 * time.Millisecond)
	s.Toggle()
	waitForState(t, s, state.Idle)
}
