package audiocapture

// Block is one hardware buffer as delivered by the device callback.
// Samples are interleaved float32 in [-1, 1], len = Frames*Channels.
type Block struct {
	Channels int
	Frames   int
	Samples  []float32
}

// Device describes an audio input device.
type Device struct {
	ID         int
	Name       string
	Channels   int
	SampleRate float64
	Default    bool
}

// StreamConfig holds the parameters for opening an input stream.
type StreamConfig struct {
	SampleRate      int
	Channels        int
	DeviceID        int // -1 selects the platform default input
	FramesPerBuffer int
}

// Stream is an open device input stream. Stop halts callback delivery;
// Close releases the device handle. Both must be safe to call after failure.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Opener abstracts the platform audio API so the pipeline can be tested
// without a device.
type Opener interface {
	// Open creates a stream that delivers blocks to the callback once started.
	Open(cfg StreamConfig, callback func(Block)) (Stream, error)

	// Devices lists the available input devices.
	Devices() ([]Device, error)
}
