package audiohost

import "fmt"

type (
	// Connection is a declarative edge between a device endpoint and a
	// performer endpoint. Exactly one of InputChannel, OutputChannel or
	// IsMIDI is active; the inactive channel fields are -1. Connections are
	// appended during setup and immutable after link.
	Connection struct {
		InputChannel  int
		OutputChannel int
		IsMIDI        bool
		Endpoint      EndpointID
	}

	// renderOp is one step of the per-sub-block plan compiled from the
	// connection table at link time. Ops never allocate.
	renderOp func(rc *RenderContext)
)

// buildOperationList recompiles the pre- and post-render plans from the
// connection table. Called on every link; all scratch buffers are allocated
// here so the ops themselves stay allocation free. Connections whose stream
// frame type is not float or vector-of-float cannot have been added by
// connect, so encountering one is a hard error.
func (s *Session) buildOperationList() {
	s.preRenderOps = nil
	s.postRenderOps = nil

	for _, conn := range s.connections {
		perf := s.performer
		handle, ok := perf.EndpointHandle(conn.Endpoint)
		if !ok {
			continue
		}

		switch {
		case conn.IsMIDI:
			if details, ok := FindEndpointDetails(perf.InputEndpoints(), conn.Endpoint); ok && details.IsMIDIEvent() {
				event := &MIDIMessage{}
				s.preRenderOps = append(s.preRenderOps, func(rc *RenderContext) {
					for _, e := range rc.MIDIIn {
						event.MIDIBytes = e.PackedBytes
						perf.AddInputEvent(handle, event)
					}
				})
			}

		case conn.InputChannel >= 0:
			details, _ := FindEndpointDetails(perf.InputEndpoints(), conn.Endpoint)
			if !details.Frame.IsFloat() {
				panic(fmt.Sprintf("audiohost: input endpoint %q has unsupported frame type", conn.Endpoint))
			}
			numChans := details.Frame.NumChannels()
			startChan := conn.InputChannel
			interleaved := make([]float32, numChans*int(s.maxBlockSize))
			s.preRenderOps = append(s.preRenderOps, func(rc *RenderContext) {
				frames := interleaveChannels(interleaved, rc.InputChannels, startChan, numChans, rc.NumFrames)
				perf.SetNextInputStreamFrames(handle, frames)
			})

		case conn.OutputChannel >= 0:
			details, _ := FindEndpointDetails(perf.OutputEndpoints(), conn.Endpoint)
			if !details.Frame.IsFloat() {
				panic(fmt.Sprintf("audiohost: output endpoint %q has unsupported frame type", conn.Endpoint))
			}
			numChans := details.Frame.NumChannels()
			startChan := conn.OutputChannel
			s.postRenderOps = append(s.postRenderOps, func(rc *RenderContext) {
				deinterleaveAndClear(rc.OutputChannels, startChan, numChans, rc.NumFrames, perf.OutputStreamFrames(handle))
			})
		}
	}
}

// interleaveChannels copies numFrames frames of the planar channel range
// [startChan, startChan+numChans) into dst frame-major, zero-filling any
// channel the device does not have, and returns the filled prefix.
func interleaveChannels(dst []float32, channels [][]float32, startChan, numChans int, numFrames uint32) []float32 {
	frames := int(numFrames)
	dst = dst[:frames*numChans]
	for c := 0; c < numChans; c++ {
		if ch := startChan + c; ch < len(channels) {
			src := channels[ch]
			for f := 0; f < frames; f++ {
				dst[f*numChans+c] = src[f]
			}
		} else {
			for f := 0; f < frames; f++ {
				dst[f*numChans+c] = 0
			}
		}
	}
	return dst
}

// deinterleaveAndClear writes the performer's interleaved output frames into
// the planar channel range [startChan, startChan+numChans), clearing every
// frame in the range the performer did not cover.
func deinterleaveAndClear(channels [][]float32, startChan, numChans int, numFrames uint32, src []float32) {
	srcFrames := 0
	if numChans > 0 {
		srcFrames = len(src) / numChans
	}
	frames := int(numFrames)
	covered := min(srcFrames, frames)
	for c := 0; c < numChans; c++ {
		ch := startChan + c
		if ch >= len(channels) {
			break
		}
		dst := channels[ch]
		for f := 0; f < covered; f++ {
			dst[f] = src[f*numChans+c]
		}
		for f := covered; f < frames; f++ {
			dst[f] = 0
		}
	}
}
