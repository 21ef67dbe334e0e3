// Package portaudio implements the venue's AudioSystem on top of a
// full-duplex portaudio stream.
package portaudio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/Glomels/audiohost"
)

type (
	// System is a full-duplex device: the portaudio stream callback is the
	// realtime thread, and every block is forwarded to the attached render
	// callback together with any MIDI collected for it.
	System struct {
		stream *portaudio.Stream
		req    audiohost.Requirements
		midi   audiohost.MIDIInputSource

		mu       sync.Mutex
		callback atomic.Pointer[callbackBox]
		xruns    atomic.Int64

		ctx     audiohost.RenderContext
		midiIn  []audiohost.MIDIEvent
		midiOut []audiohost.MIDIEvent
	}

	callbackBox struct {
		cb audiohost.RenderCallback
	}
)

const midiOutCapacity = 1024

// New opens and starts the default full-duplex stream described by req. The
// optional midi source feeds input MIDI into each block; pass nil for none.
func New(req audiohost.Requirements, midi audiohost.MIDIInputSource) (*System, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("cannot initialize portaudio: %w", err)
	}
	s := &System{
		req:     req,
		midi:    midi,
		midiIn:  make([]audiohost.MIDIEvent, 0, 1024),
		midiOut: make([]audiohost.MIDIEvent, midiOutCapacity),
	}
	stream, err := portaudio.OpenDefaultStream(
		req.NumInputChannels, req.NumOutputChannels,
		req.SampleRate, int(req.BlockSize),
		s.process,
	)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("cannot open portaudio stream: %w", err)
	}
	s.stream = stream
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("cannot start portaudio stream: %w", err)
	}
	return s, nil
}

// SetCallback attaches cb, or detaches the current callback when cb is nil.
func (s *System) SetCallback(cb audiohost.RenderCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old := s.callback.Swap(boxFor(cb)); old != nil && old.cb != nil {
		old.cb.RenderStopped()
	}
	if cb != nil {
		cb.RenderStarting(s.req.SampleRate, s.req.BlockSize)
	}
}

func boxFor(cb audiohost.RenderCallback) *callbackBox {
	if cb == nil {
		return nil
	}
	return &callbackBox{cb: cb}
}

func (s *System) NumInputChannels() int  { return s.req.NumInputChannels }
func (s *System) NumOutputChannels() int { return s.req.NumOutputChannels }
func (s *System) SampleRate() float64    { return s.req.SampleRate }
func (s *System) MaxBlockSize() uint32   { return s.req.BlockSize }

// CPULoad is portaudio's own measure of time spent in the stream callback
// relative to the deadline.
func (s *System) CPULoad() float64 { return s.stream.CpuLoad() }

func (s *System) XRunCount() int { return int(s.xruns.Load()) }

// Close stops and closes the stream and terminates portaudio.
func (s *System) Close() error {
	if err := s.stream.Stop(); err != nil {
		s.stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("cannot stop portaudio stream: %w", err)
	}
	if err := s.stream.Close(); err != nil {
		portaudio.Terminate()
		return fmt.Errorf("cannot close portaudio stream: %w", err)
	}
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("cannot terminate portaudio: %w", err)
	}
	return nil
}

// process is the realtime stream callback.
func (s *System) process(in, out [][]float32, timeInfo portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	if flags&(portaudio.InputUnderflow|portaudio.InputOverflow|portaudio.OutputUnderflow|portaudio.OutputOverflow) != 0 {
		s.xruns.Add(1)
	}

	for _, ch := range out {
		for i := range ch {
			ch[i] = 0
		}
	}

	box := s.callback.Load()
	if box == nil {
		return
	}

	numFrames := uint32(s.req.BlockSize)
	if len(out) > 0 {
		numFrames = uint32(len(out[0]))
	} else if len(in) > 0 {
		numFrames = uint32(len(in[0]))
	}

	s.midiIn = s.midiIn[:0]
	if s.midi != nil {
		s.midiIn = s.midi.CollectBlock(s.midiIn, numFrames)
	}

	s.ctx.InputChannels = in
	s.ctx.OutputChannels = out
	s.ctx.MIDIIn = s.midiIn
	s.ctx.MIDIOut = s.midiOut[:0]
	s.ctx.FrameOffset = 0
	s.ctx.NumFrames = numFrames
	s.ctx.TotalFramesRendered = 0

	box.cb.Render(&s.ctx)
}
