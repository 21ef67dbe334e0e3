package audiohost

type (
	// Requirements describes the device configuration a venue is built from.
	Requirements struct {
		SampleRate        float64 `mapstructure:"samplerate" yaml:"samplerate"`
		BlockSize         uint32  `mapstructure:"blocksize" yaml:"blocksize"`
		NumInputChannels  int     `mapstructure:"inputchannels" yaml:"inputchannels"`
		NumOutputChannels int     `mapstructure:"outputchannels" yaml:"outputchannels"`

		// MIDIInputName is a prefix of the MIDI input port to open; empty
		// means no MIDI input.
		MIDIInputName string `mapstructure:"midiinput" yaml:"midiinput,omitempty"`
	}

	// RenderCallback is what an AudioSystem drives from its realtime thread.
	// Render must complete within the device deadline: no allocation, no
	// blocking beyond the venue's session mutex, no panics.
	RenderCallback interface {
		RenderStarting(sampleRate float64, maxBlockSize uint32)
		RenderStopped()
		Render(rc *RenderContext)
	}

	// AudioSystem is the device driver consumed by a Venue: a realtime
	// callback with input channels, output channels and input MIDI, plus
	// load and xrun reporting. Implementations live in the portaudio, oto
	// and mock packages.
	AudioSystem interface {
		// SetCallback attaches the render callback; nil detaches it. The
		// callback switch takes effect before the next device block.
		SetCallback(cb RenderCallback)

		NumInputChannels() int
		NumOutputChannels() int
		SampleRate() float64
		MaxBlockSize() uint32

		// CPULoad is the fraction of the realtime deadline spent rendering,
		// 0..1.
		CPULoad() float64

		// XRunCount is the number of missed deadlines the device has seen;
		// negative means not known.
		XRunCount() int

		Close() error
	}

	// MIDIInputSource hands frame-stamped MIDI events to a device backend,
	// one block at a time. CollectBlock appends to dst every pending event
	// that falls inside the coming numFrames frames, with FrameIndex
	// non-decreasing, and returns the extended slice.
	MIDIInputSource interface {
		CollectBlock(dst []MIDIEvent, numFrames uint32) []MIDIEvent
	}

	// SessionState is the lifecycle state of a Session.
	SessionState int

	// Status is a snapshot of a session and its device, as reported by
	// Session.Status.
	Status struct {
		State      SessionState
		CPU        float64
		SampleRate float64
		BlockSize  uint32
		XRuns      int
	}
)

const (
	SessionEmpty SessionState = iota
	SessionLoaded
	SessionLinked
	SessionRunning
)

func (s SessionState) String() string {
	switch s {
	case SessionEmpty:
		return "empty"
	case SessionLoaded:
		return "loaded"
	case SessionLinked:
		return "linked"
	case SessionRunning:
		return "running"
	}
	return "unknown"
}
