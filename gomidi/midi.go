// Package gomidi collects MIDI input from a system MIDI port and restamps it
// with frame indices, so a device backend can hand it to the venue render
// callback one block at a time.
package gomidi

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/Glomels/audiohost"
)

type (
	// Collector receives messages on the MIDI driver thread, stamps them
	// with an approximate frame time and drains them block by block on the
	// audio thread. It implements audiohost.MIDIInputSource.
	Collector struct {
		driver     *rtmididrv.Driver
		in         drivers.In
		stop       func()
		sampleRate float64
		events     chan stampedMessage

		// audio-thread state: the pending buffer and the mapping from the
		// driver's millisecond clock to the device frame clock
		pending       []stampedMessage
		startFrame    int64
		startFrameSet bool
		lastEmitted   uint32
	}

	stampedMessage struct {
		frame  int64
		packed uint32
	}
)

// NewCollector opens the system MIDI driver. If no driver is available the
// collector still works, it just never produces events.
func NewCollector(sampleRate float64) *Collector {
	c := &Collector{
		sampleRate: sampleRate,
		events:     make(chan stampedMessage, 1024),
	}
	// there's not much we can do if this fails, so just use c.driver = nil
	// to indicate no driver available
	c.driver, _ = rtmididrv.New()
	return c
}

// Ports lists the names of the available MIDI input ports.
func (c *Collector) Ports() []string {
	if c.driver == nil {
		return nil
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// Open starts listening on the first input port whose name has the given
// prefix, closing any previously open port.
func (c *Collector) Open(namePrefix string) error {
	if c.driver == nil {
		return errors.New("no MIDI driver available")
	}
	ins, err := c.driver.Ins()
	if err != nil {
		return fmt.Errorf("listing MIDI inputs failed: %w", err)
	}
	for _, in := range ins {
		if !strings.HasPrefix(in.String(), namePrefix) {
			continue
		}
		c.closePort()
		if err := in.Open(); err != nil {
			return fmt.Errorf("opening MIDI input %v failed: %w", in, err)
		}
		stop, err := midi.ListenTo(in, c.HandleMessage)
		if err != nil {
			in.Close()
			return fmt.Errorf("listening to MIDI input %v failed: %w", in, err)
		}
		c.in, c.stop = in, stop
		return nil
	}
	return fmt.Errorf("no MIDI input found with prefix %q", namePrefix)
}

// HandleMessage is the driver callback. Short channel messages are packed
// and queued; anything longer (sysex) is ignored. If the queue is full the
// message is dropped.
func (c *Collector) HandleMessage(msg midi.Message, timestampms int32) {
	b := msg.Bytes()
	if len(b) == 0 || len(b) > 3 {
		return
	}
	var b1, b2 byte
	if len(b) > 1 {
		b1 = b[1]
	}
	if len(b) > 2 {
		b2 = b[2]
	}
	m := stampedMessage{
		frame:  int64(timestampms) * int64(c.sampleRate) / 1000,
		packed: audiohost.PackMIDI(b[0], b1, b2),
	}
	select {
	case c.events <- m:
	default:
	}
}

// CollectBlock drains pending messages into dst for a block of numFrames
// frames. Events that fall beyond the block stay pending for the next call.
// The driver clock and the audio clock drift, so the mapping is nudged a
// fifth of the observed error per block, the same way the events themselves
// arrive jittered by the driver. Emitted frame indices are non-decreasing.
func (c *Collector) CollectBlock(dst []audiohost.MIDIEvent, numFrames uint32) []audiohost.MIDIEvent {
	for {
		select {
		case m := <-c.events:
			if !c.startFrameSet {
				c.startFrame = m.frame
				c.startFrameSet = true
			}
			c.pending = append(c.pending, m)
			continue
		default:
		}
		break
	}

	c.lastEmitted = 0
	kept := c.pending[:0]
	for _, m := range c.pending {
		rel := m.frame - c.startFrame
		if rel >= int64(numFrames) {
			kept = append(kept, m)
			continue
		}
		frame := uint32(0)
		if rel > 0 {
			frame = uint32(rel)
		}
		if frame < c.lastEmitted {
			frame = c.lastEmitted
		}
		c.lastEmitted = frame
		dst = append(dst, audiohost.MIDIEvent{FrameIndex: frame, PackedBytes: m.packed})
	}
	c.pending = kept

	c.startFrame += int64(numFrames)
	if len(c.pending) > 0 {
		// events were not consumed this block; nudge the clock towards them
		// so they render close to when they were received
		delta := c.startFrame - c.pending[0].frame
		c.startFrame -= delta / 5
	}
	return dst
}

// Close stops listening and shuts the driver down.
func (c *Collector) Close() {
	if c.driver == nil {
		return
	}
	c.closePort()
	c.driver.Close()
}

func (c *Collector) closePort() {
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
	if c.in != nil && c.in.IsOpen() {
		c.in.Close()
	}
	c.in = nil
}
