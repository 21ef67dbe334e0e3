package audiohost_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Glomels/audiohost"
)

func makeChannels(numChannels int, numFrames uint32) [][]float32 {
	chs := make([][]float32, numChannels)
	for i := range chs {
		chs[i] = make([]float32, numFrames)
	}
	return chs
}

func makeContext(numFrames uint32, midiFrames ...uint32) *audiohost.RenderContext {
	events := make([]audiohost.MIDIEvent, 0, len(midiFrames))
	for _, f := range midiFrames {
		events = append(events, audiohost.MIDIEvent{FrameIndex: f, PackedBytes: audiohost.PackMIDI(0x90, 60, 100)})
	}
	return &audiohost.RenderContext{
		InputChannels:  makeChannels(2, numFrames),
		OutputChannels: makeChannels(2, numFrames),
		MIDIIn:         events,
		MIDIOut:        make([]audiohost.MIDIEvent, 0, 16),
		NumFrames:      numFrames,
	}
}

type subBlock struct {
	offset    uint32
	frames    uint32
	midi      []uint32
	total     uint64
	inFrames  int
	outFrames int
}

func collectSubBlocks(rc *audiohost.RenderContext, maxFrames uint32) []subBlock {
	var subs []subBlock
	rc.IterateInBlocks(maxFrames, func(sub *audiohost.RenderContext) {
		s := subBlock{
			offset:    sub.FrameOffset,
			frames:    sub.NumFrames,
			total:     sub.TotalFramesRendered,
			inFrames:  len(sub.InputChannels[0]),
			outFrames: len(sub.OutputChannels[0]),
		}
		for _, e := range sub.MIDIIn {
			s.midi = append(s.midi, e.FrameIndex)
		}
		subs = append(subs, s)
	})
	return subs
}

func TestIterateInBlocksSplitsAtMIDIAndBlockLimit(t *testing.T) {
	rc := makeContext(1000, 50, 250, 900)
	subs := collectSubBlocks(rc, 400)

	require.Len(t, subs, 5)
	assert.Equal(t, []uint32{0, 50, 250, 650, 900}, offsets(subs))
	assert.Equal(t, []uint32{50, 200, 400, 250, 100}, frameCounts(subs))

	// every event opens the sub-block whose window starts at its frame index
	assert.Empty(t, subs[0].midi)
	assert.Equal(t, []uint32{50}, subs[1].midi)
	assert.Equal(t, []uint32{250}, subs[2].midi)
	assert.Empty(t, subs[3].midi)
	assert.Equal(t, []uint32{900}, subs[4].midi)

	var sum uint32
	for _, s := range subs {
		sum += s.frames
		assert.LessOrEqual(t, s.frames, uint32(400))
		assert.Equal(t, int(s.frames), s.inFrames)
		assert.Equal(t, int(s.frames), s.outFrames)
	}
	assert.Equal(t, uint32(1000), sum)
}

func TestIterateInBlocksEventAtFrameZero(t *testing.T) {
	rc := makeContext(100, 0, 0, 30)
	subs := collectSubBlocks(rc, 512)

	require.Len(t, subs, 2)
	assert.Equal(t, []uint32{0, 0}, subs[0].midi)
	assert.Equal(t, uint32(30), subs[0].frames)
	assert.Equal(t, []uint32{30}, subs[1].midi)
	assert.Equal(t, uint32(70), subs[1].frames)
}

func TestIterateInBlocksWithoutMIDI(t *testing.T) {
	rc := makeContext(1000)
	subs := collectSubBlocks(rc, 512)

	require.Len(t, subs, 2)
	assert.Equal(t, []uint32{512, 488}, frameCounts(subs))
}

func TestIterateInBlocksEventBeyondBlockIsDropped(t *testing.T) {
	rc := makeContext(100, 1500)
	subs := collectSubBlocks(rc, 512)

	require.Len(t, subs, 1)
	assert.Empty(t, subs[0].midi)
	assert.Equal(t, uint32(100), subs[0].frames)
}

func TestIterateInBlocksAdvancesTotalFrames(t *testing.T) {
	rc := makeContext(300)
	rc.TotalFramesRendered = 1000
	subs := collectSubBlocks(rc, 100)

	require.Len(t, subs, 3)
	assert.Equal(t, []uint64{1000, 1100, 1200}, totals(subs))
}

func TestIterateInBlocksAccumulatesMIDIOut(t *testing.T) {
	rc := makeContext(300)
	rc.MIDIOut = make([]audiohost.MIDIEvent, 0, 2)
	rc.IterateInBlocks(100, func(sub *audiohost.RenderContext) {
		sub.AddMIDIOut(audiohost.MIDIEvent{FrameIndex: sub.FrameOffset})
	})

	// three sub-blocks wrote, but capacity bounds the buffer
	require.Len(t, rc.MIDIOut, 2)
	assert.Equal(t, uint32(0), rc.MIDIOut[0].FrameIndex)
	assert.Equal(t, uint32(100), rc.MIDIOut[1].FrameIndex)
}

func offsets(subs []subBlock) []uint32 {
	out := make([]uint32, len(subs))
	for i, s := range subs {
		out[i] = s.offset
	}
	return out
}

func frameCounts(subs []subBlock) []uint32 {
	out := make([]uint32, len(subs))
	for i, s := range subs {
		out[i] = s.frames
	}
	return out
}

func totals(subs []subBlock) []uint64 {
	out := make([]uint64, len(subs))
	for i, s := range subs {
		out[i] = s.total
	}
	return out
}
