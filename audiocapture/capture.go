// Package audiocapture records microphone audio through a producer/consumer
// pipeline. A producer goroutine owns the device stream and pushes callback
// blocks onto an unbounded queue; Stop joins the producer with a timeout and
// drains the queue into a single mono buffer. Every failure path funnels
// through ForceCleanup so a wedged device never blocks the next recording.
package audiocapture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrRecording is returned when Start is called while a capture is active.
	ErrRecording = errors.New("audiocapture: already recording")
	// ErrNotRecording is returned when Stop is called with no capture active.
	ErrNotRecording = errors.New("audiocapture: not recording")
	// ErrSetupTimeout is returned when the device does not come up in time.
	ErrSetupTimeout = errors.New("audiocapture: device setup timed out")
)

// Config holds recorder tuning parameters. Zero-value fields are filled in
// from DefaultConfig by NewRecorder.
type Config struct {
	SampleRate      int
	Channels        int
	DeviceID        int // -1 selects the platform default input
	FramesPerBuffer int

	// SetupTimeout bounds how long Start waits for the producer to open
	// and start the device stream.
	SetupTimeout time.Duration

	// StopTimeout bounds how long Stop waits for the producer to exit
	// before forcing cleanup.
	StopTimeout time.Duration

	// SettleDelay is the pause after a forced cleanup before reopening the
	// device, giving the platform API time to release the handle.
	SettleDelay time.Duration

	Opener Opener
}

// DefaultConfig returns the default capture configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		Channels:        1,
		DeviceID:        -1,
		FramesPerBuffer: 1024,
		SetupTimeout:    2 * time.Second,
		StopTimeout:     time.Second,
		SettleDelay:     100 * time.Millisecond,
	}
}

// Recorder captures audio from an input device. Methods are safe for
// concurrent use; only one capture runs at a time.
type Recorder struct {
	cfg Config

	mu        sync.Mutex
	recording bool
	starting  bool
	queue     *blockQueue
	stopCh    chan struct{}
	doneCh    chan struct{}

	// streamMu guards the open stream separately so ForceCleanup can run
	// while the producer goroutine is wedged holding nothing.
	streamMu sync.Mutex
	stream   Stream
}

// NewRecorder creates a recorder, filling zero-value config fields from
// DefaultConfig. The Opener is required.
func NewRecorder(cfg Config) (*Recorder, error) {
	if cfg.Opener == nil {
		return nil, errors.New("audiocapture: opener is required")
	}
	def := DefaultConfig()
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Channels == 0 {
		cfg.Channels = def.Channels
	}
	if cfg.FramesPerBuffer == 0 {
		cfg.FramesPerBuffer = def.FramesPerBuffer
	}
	if cfg.SetupTimeout == 0 {
		cfg.SetupTimeout = def.SetupTimeout
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = def.StopTimeout
	}
	if cfg.SettleDelay == 0 {
		cfg.SettleDelay = def.SettleDelay
	}
	return &Recorder{cfg: cfg}, nil
}

// Recording reports whether a capture is active.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// SetDevice selects the input device for subsequent captures.
func (r *Recorder) SetDevice(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.DeviceID = id
}

// ListDevices returns the available input devices.
func (r *Recorder) ListDevices() ([]Device, error) {
	return r.cfg.Opener.Devices()
}

// Start opens the device and begins capturing. If a previous producer is
// still winding down, its resources are force-cleaned first. Start blocks
// until the stream is delivering or SetupTimeout elapses.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.recording || r.starting {
		r.mu.Unlock()
		slog.Warn("start ignored, capture already active")
		return ErrRecording
	}
	// Held until this Start resolves so a concurrent Start cannot slip
	// through while the device is still coming up.
	r.starting = true

	// A stale producer from an earlier failed stop may still hold the
	// device. Reclaim it before reopening.
	if r.doneCh != nil {
		select {
		case <-r.doneCh:
			r.doneCh = nil
		default:
			r.mu.Unlock()
			slog.Warn("stale producer detected, forcing cleanup")
			r.ForceCleanup()
			time.Sleep(r.cfg.SettleDelay)
			r.mu.Lock()
			r.doneCh = nil
		}
	}

	queue := newBlockQueue()
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	readyCh := make(chan error, 1)

	r.queue = queue
	r.stopCh = stopCh
	r.doneCh = doneCh
	cfg := r.cfg
	r.mu.Unlock()

	go r.produce(cfg, queue, stopCh, doneCh, readyCh)

	select {
	case err := <-readyCh:
		if err != nil {
			r.ForceCleanup()
			r.mu.Lock()
			r.starting = false
			r.mu.Unlock()
			return fmt.Errorf("open input stream: %w", err)
		}
	case <-time.After(cfg.SetupTimeout):
		r.ForceCleanup()
		r.mu.Lock()
		r.starting = false
		r.mu.Unlock()
		return ErrSetupTimeout
	}

	r.mu.Lock()
	r.recording = true
	r.starting = false
	r.mu.Unlock()

	slog.Info("capture started",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"device", cfg.DeviceID)
	return nil
}

// produce owns the device stream for the lifetime of one capture.
func (r *Recorder) produce(cfg Config, queue *blockQueue, stopCh, doneCh chan struct{}, readyCh chan error) {
	defer close(doneCh)

	stream, err := cfg.Opener.Open(StreamConfig{
		SampleRate:      cfg.SampleRate,
		Channels:        cfg.Channels,
		DeviceID:        cfg.DeviceID,
		FramesPerBuffer: cfg.FramesPerBuffer,
	}, queue.push)
	if err != nil {
		readyCh <- err
		return
	}

	r.streamMu.Lock()
	r.stream = stream
	r.streamMu.Unlock()

	if err := stream.Start(); err != nil {
		readyCh <- err
		r.closeStream()
		return
	}
	readyCh <- nil

	<-stopCh
	r.closeStream()
}

// Stop halts the capture, joins the producer, and returns the recorded audio
// downmixed to mono. A capture with no delivered blocks returns (nil, nil).
func (r *Recorder) Stop() ([]float32, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		slog.Warn("stop ignored, no capture active")
		return nil, ErrNotRecording
	}
	r.recording = false
	queue := r.queue
	stopCh := r.stopCh
	doneCh := r.doneCh
	channels := r.cfg.Channels
	stopTimeout := r.cfg.StopTimeout
	r.queue = nil
	r.stopCh = nil
	r.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		r.mu.Lock()
		r.doneCh = nil
		r.mu.Unlock()
	case <-time.After(stopTimeout):
		slog.Warn("producer did not exit in time, forcing cleanup",
			"timeout", stopTimeout)
		r.ForceCleanup()
	}

	blocks := queue.drain()
	samples := concatDownmix(blocks, channels)
	slog.Info("capture stopped",
		"blocks", len(blocks),
		"samples", len(samples))
	return samples, nil
}

// ForceCleanup releases the device stream unconditionally. It is idempotent
// and safe to call at any time, including while a producer is wedged. The
// active stop channel is closed too, so an abandoned producer unblocks and
// exits instead of leaking.
func (r *Recorder) ForceCleanup() {
	r.mu.Lock()
	r.recording = false
	if r.stopCh != nil {
		close(r.stopCh)
		r.stopCh = nil
	}
	r.mu.Unlock()
	r.closeStream()
}

func (r *Recorder) closeStream() {
	r.streamMu.Lock()
	stream := r.stream
	r.stream = nil
	r.streamMu.Unlock()
	if stream == nil {
		return
	}
	if err := stream.Stop(); err != nil {
		slog.Debug("stream stop", "err", err)
	}
	if err := stream.Close(); err != nil {
		slog.Debug("stream close", "err", err)
	}
}

// concatDownmix concatenates blocks in delivery order and averages the
// channels of each frame into a single mono sample.
func concatDownmix(blocks []Block, channels int) []float32 {
	if len(blocks) == 0 {
		return nil
	}
	if channels <= 1 {
		total := 0
		for _, b := range blocks {
			total += len(b.Samples)
		}
		if total == 0 {
			return nil
		}
		out := make([]float32, 0, total)
		for _, b := range blocks {
			out = append(out, b.Samples...)
		}
		return out
	}

	frames := 0
	for _, b := range blocks {
		frames += len(b.Samples) / channels
	}
	if frames == 0 {
		return nil
	}
	out := make([]float32, 0, frames)
	inv := 1 / float32(channels)
	for _, b := range blocks {
		n := len(b.Samples) / channels
		for f := 0; f < n; f++ {
			var sum float32
			for c := 0; c < channels; c++ {
				sum += b.Samples[f*channels+c]
			}
			out = append(out, sum*inv)
		}
	}
	return out
}

// blockQueue is an unbounded FIFO fed by the device callback. Pushes after
// close are dropped so a late callback cannot corrupt a finished capture.
type blockQueue struct {
	mu     sync.Mutex
	blocks []Block
	closed bool
}

func newBlockQueue() *blockQueue {
	return &blockQueue{}
}

func (q *blockQueue) push(b Block) {
	q.mu.Lock()
	if !q.closed {
		q.blocks = append(q.blocks, b)
	}
	q.mu.Unlock()
}

// drain closes the queue and returns all blocks in arrival order.
func (q *blockQueue) drain() []Block {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	blocks := q.blocks
	q.blocks = nil
	return blocks
}
