package gomidi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/Glomels/audiohost"
)

// the collector logic is tested without a driver by feeding HandleMessage
// directly; Open is only exercised against real hardware

func TestCollectBlockStampsFrames(t *testing.T) {
	c := NewCollector(1000) // 1 kHz: one frame per millisecond

	c.HandleMessage(midi.NoteOn(0, 60, 100), 10)
	c.HandleMessage(midi.NoteOff(0, 60), 50)

	events := c.CollectBlock(nil, 100)
	require.Len(t, events, 2)
	// the first event anchors the clock, so it lands at frame zero
	assert.Equal(t, uint32(0), events[0].FrameIndex)
	assert.Equal(t, audiohost.PackMIDI(0x90, 60, 100), events[0].PackedBytes)
	assert.Equal(t, uint32(40), events[1].FrameIndex)
	assert.Equal(t, byte(0x80), audiohost.MIDIEvent{PackedBytes: events[1].PackedBytes}.Status())
}

func TestCollectBlockPostponesFutureEvents(t *testing.T) {
	c := NewCollector(1000)

	c.HandleMessage(midi.NoteOn(0, 60, 100), 10)
	c.HandleMessage(midi.NoteOn(0, 61, 100), 200)

	events := c.CollectBlock(nil, 100)
	require.Len(t, events, 1)

	// the postponed event arrives next block, nudged towards its timestamp
	events = c.CollectBlock(nil, 100)
	require.Len(t, events, 1)
	assert.Equal(t, uint32(72), events[0].FrameIndex)
}

func TestCollectBlockFrameIndicesNonDecreasing(t *testing.T) {
	c := NewCollector(1000)

	// jittered timestamps still come out ordered
	c.HandleMessage(midi.NoteOn(0, 60, 100), 30)
	c.HandleMessage(midi.NoteOn(0, 61, 100), 25)
	c.HandleMessage(midi.NoteOn(0, 62, 100), 40)

	events := c.CollectBlock(nil, 100)
	require.Len(t, events, 3)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].FrameIndex, events[i-1].FrameIndex)
	}
}

func TestHandleMessageIgnoresLongMessages(t *testing.T) {
	c := NewCollector(1000)

	c.HandleMessage(midi.Message([]byte{0xf0, 1, 2, 3, 4, 0xf7}), 5)
	c.HandleMessage(midi.NoteOn(1, 60, 100), 10)

	events := c.CollectBlock(nil, 100)
	require.Len(t, events, 1)
	assert.Equal(t, byte(0x91), audiohost.MIDIEvent{PackedBytes: events[0].PackedBytes}.Status())
}
