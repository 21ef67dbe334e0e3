package audiohost

type (
	// RenderContext bundles one device block: planar input and output
	// channels, the sorted input MIDI events, a capacity-bounded output MIDI
	// buffer, and the frame offset of the block within the device callback.
	// It is value-copied for sub-block iteration and never shared across
	// threads. NumFrames is explicit because a device may legally open zero
	// channels in either direction.
	RenderContext struct {
		TotalFramesRendered uint64
		InputChannels       [][]float32
		OutputChannels      [][]float32
		MIDIIn              []MIDIEvent
		MIDIOut             []MIDIEvent // appended up to capacity, accumulates across sub-blocks
		FrameOffset         uint32
		NumFrames           uint32

		// reused headers for sub-block channel views, so iteration does not
		// allocate on the realtime thread once warmed up
		subIn, subOut [][]float32
	}
)

// AddMIDIOut appends an outgoing MIDI event, silently dropping it when the
// buffer capacity is exhausted.
func (rc *RenderContext) AddMIDIOut(e MIDIEvent) {
	if len(rc.MIDIOut) < cap(rc.MIDIOut) {
		rc.MIDIOut = append(rc.MIDIOut, e)
	}
}

// IterateInBlocks splits the context's [0, NumFrames) range into consecutive
// sub-blocks and invokes render on each. A sub-block ends at
// maxFramesPerBlock frames, or earlier at the first MIDI event strictly
// beyond the current frame offset. Events at or before the offset when a
// sub-block opens are consumed into that sub-block's MIDIIn prefix; an event
// exactly at the end of a sub-block is left for the next one. MIDI output
// accumulates across sub-blocks into rc.MIDIOut.
//
// On return, rc's FrameOffset has advanced past the block, its MIDIIn holds
// only the events no sub-block delivered (those at or beyond the end of the
// block) and its MIDIOut holds everything the sub-blocks emitted.
func (rc *RenderContext) IterateInBlocks(maxFramesPerBlock uint32, render func(*RenderContext)) {
	if cap(rc.subIn) < len(rc.InputChannels) {
		rc.subIn = make([][]float32, len(rc.InputChannels))
	}
	if cap(rc.subOut) < len(rc.OutputChannels) {
		rc.subOut = make([][]float32, len(rc.OutputChannels))
	}

	sub := *rc
	sub.subIn, sub.subOut = nil, nil

	framesRemaining := rc.NumFrames
	total := rc.TotalFramesRendered
	midiOut := rc.MIDIOut

	for framesRemaining != 0 {
		framesToDo := min(maxFramesPerBlock, framesRemaining)

		consumed := 0
		for consumed < len(rc.MIDIIn) {
			if t := rc.MIDIIn[consumed].FrameIndex; t > rc.FrameOffset {
				if delta := t - rc.FrameOffset; delta < framesToDo {
					framesToDo = delta
				}
				break
			}
			consumed++
		}
		sub.MIDIIn = rc.MIDIIn[:consumed]
		rc.MIDIIn = rc.MIDIIn[consumed:]

		sub.InputChannels = rc.subIn[:len(rc.InputChannels)]
		for i, ch := range rc.InputChannels {
			sub.InputChannels[i] = ch[rc.FrameOffset : rc.FrameOffset+framesToDo]
		}
		sub.OutputChannels = rc.subOut[:len(rc.OutputChannels)]
		for i, ch := range rc.OutputChannels {
			sub.OutputChannels[i] = ch[rc.FrameOffset : rc.FrameOffset+framesToDo]
		}

		sub.FrameOffset = rc.FrameOffset
		sub.NumFrames = framesToDo
		sub.TotalFramesRendered = total
		sub.MIDIOut = midiOut

		render(&sub)

		midiOut = sub.MIDIOut
		rc.FrameOffset += framesToDo
		framesRemaining -= framesToDo
		total += uint64(framesToDo)
	}

	rc.MIDIOut = midiOut
}
