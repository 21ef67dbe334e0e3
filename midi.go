package audiohost

type (
	// MIDIEvent is one short MIDI message inside a device block: the frame
	// index relative to the start of the block, and the status + data bytes
	// packed into the low 24 bits of a uint32, status byte highest. The MIDI
	// buffer handed to a render callback is sorted by FrameIndex
	// non-decreasing.
	MIDIEvent struct {
		FrameIndex  uint32
		PackedBytes uint32
	}

	// MIDIMessage is the object value forwarded to a performer's MIDI event
	// endpoint, one per incoming MIDIEvent.
	MIDIMessage struct {
		MIDIBytes uint32
	}
)

// MIDIMessageTypeName is the object type name of MIDI event endpoint frames.
const MIDIMessageTypeName = "midi.Message"

// PackMIDI packs a short (up to 3 byte) MIDI message, status byte first.
func PackMIDI(b0, b1, b2 byte) uint32 {
	return uint32(b0)<<16 | uint32(b1)<<8 | uint32(b2)
}

func (e MIDIEvent) Status() byte  { return byte(e.PackedBytes >> 16) }
func (e MIDIEvent) Channel() byte { return byte(e.PackedBytes>>16) & 0x0f }
func (e MIDIEvent) Data1() byte   { return byte(e.PackedBytes >> 8) }
func (e MIDIEvent) Data2() byte   { return byte(e.PackedBytes) }

// MIDIEventEndpoint returns the details of an event endpoint carrying MIDI
// messages, as used by the device catalog for defaultMidiIn/defaultMidiOut.
func MIDIEventEndpoint(id EndpointID, name string) EndpointDetails {
	return EndpointDetails{ID: id, Name: name, Kind: EndpointEvent, Frame: ObjectFrame(MIDIMessageTypeName)}
}
