package audiocapture

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var paInitOnce sync.Once
var paInitErr error

// PortAudioOpener opens input streams through PortAudio. The library is
// initialized lazily on first use and stays initialized for process lifetime.
type PortAudioOpener struct{}

// NewPortAudioOpener returns a PortAudio-backed Opener.
func NewPortAudioOpener() *PortAudioOpener {
	return &PortAudioOpener{}
}

func paInit() error {
	paInitOnce.Do(func() {
		paInitErr = portaudio.Initialize()
	})
	return paInitErr
}

// Devices lists PortAudio input devices.
func (o *PortAudioOpener) Devices() ([]Device, error) {
	if err := paInit(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	def, _ := portaudio.DefaultInputDevice()

	var devices []Device
	for i, d := range all {
		if d.MaxInputChannels == 0 {
			continue
		}
		devices = append(devices, Device{
			ID:         i,
			Name:       d.Name,
			Channels:   d.MaxInputChannels,
			SampleRate: d.DefaultSampleRate,
			Default:    def != nil && d.Name == def.Name,
		})
	}
	return devices, nil
}

// Open creates an input stream. The callback receives a copy of each
// hardware buffer; PortAudio reuses its buffers between invocations.
func (o *PortAudioOpener) Open(cfg StreamConfig, callback func(Block)) (Stream, error) {
	if err := paInit(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	deliver := func(in []float32) {
		samples := make([]float32, len(in))
		copy(samples, in)
		callback(Block{
			Channels: cfg.Channels,
			Frames:   len(in) / cfg.Channels,
			Samples:  samples,
		})
	}

	var stream *portaudio.Stream
	var err error
	if cfg.DeviceID < 0 {
		stream, err = portaudio.OpenDefaultStream(
			cfg.Channels, 0, float64(cfg.SampleRate), cfg.FramesPerBuffer, deliver)
	} else {
		all, derr := portaudio.Devices()
		if derr != nil {
			return nil, fmt.Errorf("list devices: %w", derr)
		}
		if cfg.DeviceID >= len(all) {
			return nil, fmt.Errorf("no such device: %d", cfg.DeviceID)
		}
		params := portaudio.HighLatencyParameters(all[cfg.DeviceID], nil)
		params.Input.Channels = cfg.Channels
		params.SampleRate = float64(cfg.SampleRate)
		params.FramesPerBuffer = cfg.FramesPerBuffer
		stream, err = portaudio.OpenStream(params, deliver)
	}
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return &paStream{stream: stream}, nil
}

type paStream struct {
	mu     sync.Mutex
	stream *portaudio.Stream
	closed bool
}

func (s *paStream) Start() error {
	return s.stream.Start()
}

func (s *paStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.stream.Stop()
}

func (s *paStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stream.Close()
}
