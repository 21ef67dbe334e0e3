package audiohost

type (
	// EndpointID is the stable string identity of an endpoint, unique within
	// the performer or device that declares it.
	EndpointID string

	// EndpointHandle is an opaque token obtained by resolving an EndpointID
	// against a loaded performer. A handle is only valid for the lifetime of
	// that performer's loaded state; zero is never a valid handle.
	EndpointHandle uint32

	// EndpointKind tells what an endpoint transports: streams carry
	// per-sample frames, events carry timestamped discrete values, values
	// carry a single current value.
	EndpointKind int

	// FrameKind tells the shape of one frame of endpoint data.
	FrameKind int

	// FrameType describes the data carried by one frame of an endpoint: a
	// scalar float32, a fixed-size vector of float32, or a named object type
	// (used by event endpoints, e.g. MIDI messages).
	FrameType struct {
		Kind       FrameKind
		VectorSize int    // number of elements, when Kind == FrameVector
		ObjectName string // type name, when Kind == FrameObject
	}

	// EndpointDetails is the identity and type of a single endpoint, either
	// on a performer or on the device.
	EndpointDetails struct {
		ID    EndpointID
		Name  string
		Kind  EndpointKind
		Frame FrameType
	}

	// EndpointInfo is a device-side endpoint: the details plus the index of
	// the first device audio channel it maps to (meaningful for streams) and
	// whether it is a MIDI endpoint (meaningful for events).
	EndpointInfo struct {
		EndpointDetails
		AudioChannelIndex int
		IsMIDI            bool
	}
)

const (
	EndpointStream EndpointKind = iota
	EndpointEvent
	EndpointValue
)

const (
	FrameFloat FrameKind = iota
	FrameVector
	FrameObject
)

// Device endpoint catalog IDs. These are stable: hosts connect sessions to
// them by name. defaultMidiOut is declared for API stability but no output
// connection variant routes to it yet.
const (
	DefaultInID      EndpointID = "defaultIn"
	DefaultOutID     EndpointID = "defaultOut"
	DefaultMIDIInID  EndpointID = "defaultMidiIn"
	DefaultMIDIOutID EndpointID = "defaultMidiOut"
)

func FloatFrame() FrameType             { return FrameType{Kind: FrameFloat} }
func VectorFrame(size int) FrameType    { return FrameType{Kind: FrameVector, VectorSize: size} }
func ObjectFrame(name string) FrameType { return FrameType{Kind: FrameObject, ObjectName: name} }

// NumChannels returns how many audio channels one frame spans: 1 for scalar
// float frames, the vector size for vector frames, 0 for object frames.
func (f FrameType) NumChannels() int {
	switch f.Kind {
	case FrameFloat:
		return 1
	case FrameVector:
		return f.VectorSize
	}
	return 0
}

// IsFloat reports whether the frame is a scalar float or a vector of floats,
// i.e. something an audio stream connection can carry.
func (f FrameType) IsFloat() bool {
	return f.Kind == FrameFloat || f.Kind == FrameVector
}

func (d EndpointDetails) IsStream() bool { return d.Kind == EndpointStream }
func (d EndpointDetails) IsEvent() bool  { return d.Kind == EndpointEvent }

// IsMIDIEvent reports whether the endpoint is an event endpoint whose frame
// object type is the MIDI message type.
func (d EndpointDetails) IsMIDIEvent() bool {
	return d.Kind == EndpointEvent && d.Frame.Kind == FrameObject && d.Frame.ObjectName == MIDIMessageTypeName
}

// FindEndpointDetails returns the first endpoint in list with the given id.
func FindEndpointDetails(list []EndpointDetails, id EndpointID) (EndpointDetails, bool) {
	for _, d := range list {
		if d.ID == id {
			return d, true
		}
	}
	return EndpointDetails{}, false
}

// ContainsEndpoint reports whether list declares an endpoint with the given id.
func ContainsEndpoint(list []EndpointDetails, id EndpointID) bool {
	_, ok := FindEndpointDetails(list, id)
	return ok
}
