package audiohost

import "strings"

type (
	// Program is the opaque compiled artifact a performer executes. Concrete
	// program types belong to the performer back-end that produced them; the
	// host only ever asks whether a program is empty. Immutable after load.
	Program interface {
		IsEmpty() bool
	}

	// BuildSettings is what a performer needs to know to link a loaded
	// program for a particular device.
	BuildSettings struct {
		SampleRate   float64
		MaxBlockSize uint32
	}

	// Severity of a compile message.
	Severity int

	// CompileMessage is one diagnostic produced while loading, compiling or
	// linking a program.
	CompileMessage struct {
		FullMessage string
		Description string
		Line        int
		Column      int
		Severity    Severity
	}

	// CompileMessageList accumulates diagnostics across a load/compile/link
	// pass. Methods are nil-safe so callers that do not care about
	// diagnostics can pass nil.
	CompileMessageList struct {
		Messages []CompileMessage
	}

	// Performer is the executable form of a signal-processing program,
	// produced by a compiler back-end. The host drives it with the
	// three-phase per-block protocol: Prepare, per-endpoint mutations,
	// Advance, then post-advance readbacks. Performers are expected to
	// allocate only during Load and Link, never while rendering.
	//
	// Stream frames cross this interface interleaved: a slice of
	// numChannels*numFrames float32 values, frame-major.
	Performer interface {
		// Load installs a program, leaving the performer loaded but not yet
		// linked. Diagnostics are appended to messages; returns false and
		// leaves the performer unloaded on failure.
		Load(messages *CompileMessageList, program Program) bool

		// Link resolves and allocates the loaded program for the given
		// settings. Returns false on failure.
		Link(messages *CompileMessageList, settings BuildSettings) bool

		// Unload discards the program and all endpoint handles.
		Unload()

		IsLinked() bool

		InputEndpoints() []EndpointDetails
		OutputEndpoints() []EndpointDetails

		// EndpointHandle resolves an endpoint ID to a handle valid until the
		// next Unload.
		EndpointHandle(id EndpointID) (EndpointHandle, bool)

		// Prepare reserves internal state for a block of numFrames frames.
		Prepare(numFrames uint32)

		SetNextInputStreamFrames(handle EndpointHandle, interleavedFrames []float32)
		SetSparseInputStreamTarget(handle EndpointHandle, targetFrame []float32, numFramesToReach uint32)
		SetInputValue(handle EndpointHandle, value []float32)
		AddInputEvent(handle EndpointHandle, event any)

		// Advance runs the program for the prepared frame count.
		Advance()

		OutputStreamFrames(handle EndpointHandle) []float32
		IterateOutputEvents(handle EndpointHandle, fn func(frameOffset uint32, event any) bool)

		// XRuns reports how many times the performer has overrun its
		// rendering deadline.
		XRuns() int
	}

	// PerformerFactory creates fresh performers, one per session or player.
	PerformerFactory interface {
		NewPerformer() Performer
	}
)

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityNote:
		return "note"
	}
	return "unknown"
}

func (m CompileMessage) IsError() bool { return m.Severity == SeverityError }

func (l *CompileMessageList) Add(m CompileMessage) {
	if l != nil {
		l.Messages = append(l.Messages, m)
	}
}

func (l *CompileMessageList) AddError(message string) {
	l.Add(CompileMessage{FullMessage: message, Description: message, Severity: SeverityError})
}

func (l *CompileMessageList) AddWarning(message string) {
	l.Add(CompileMessage{FullMessage: message, Description: message, Severity: SeverityWarning})
}

func (l *CompileMessageList) HasErrors() bool {
	if l == nil {
		return false
	}
	for _, m := range l.Messages {
		if m.IsError() {
			return true
		}
	}
	return false
}

func (l *CompileMessageList) String() string {
	if l == nil || len(l.Messages) == 0 {
		return ""
	}
	var b strings.Builder
	for i, m := range l.Messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Severity.String())
		b.WriteString(": ")
		b.WriteString(m.FullMessage)
	}
	return b.String()
}
