// Package oto implements an output-only AudioSystem on top of ebitengine's
// oto. It has no input channels and cannot observe device xruns.
package oto

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/viterin/vek/vek32"

	"github.com/Glomels/audiohost"
)

type (
	// System pulls audio: oto's player goroutine calls Read, which renders
	// the attached callback block by block into the byte buffer. The pull
	// goroutine is not a hard realtime thread, but the same rules apply:
	// render work is amortized-allocation-free after warmup.
	System struct {
		ctx    *oto.Context
		player *oto.Player
		req    audiohost.Requirements
		midi   audiohost.MIDIInputSource

		mu       sync.Mutex
		callback atomic.Pointer[callbackBox]

		rc       audiohost.RenderContext
		channels [][]float32
		views    [][]float32
		midiIn   []audiohost.MIDIEvent
		midiOut  []audiohost.MIDIEvent
		power    []float32

		load atomic.Uint64 // math.Float64bits of the smoothed load
		rms  atomic.Uint64 // math.Float64bits of the last block RMS
	}

	callbackBox struct {
		cb audiohost.RenderCallback
	}
)

const bytesPerSample = 4 // float32 little endian

// New opens the default output device. Input channel requirements are
// ignored: the system reports zero input channels. The optional midi source
// feeds input MIDI into each block; pass nil for none.
func New(req audiohost.Requirements, midi audiohost.MIDIInputSource) (*System, error) {
	if req.NumOutputChannels <= 0 {
		return nil, fmt.Errorf("oto needs at least one output channel, got %v", req.NumOutputChannels)
	}
	req.NumInputChannels = 0
	s := &System{
		req:     req,
		midi:    midi,
		midiIn:  make([]audiohost.MIDIEvent, 0, 1024),
		midiOut: make([]audiohost.MIDIEvent, 1024),
		power:   make([]float32, int(req.BlockSize)*req.NumOutputChannels),
	}
	s.channels = make([][]float32, req.NumOutputChannels)
	s.views = make([][]float32, req.NumOutputChannels)
	for i := range s.channels {
		s.channels[i] = make([]float32, req.BlockSize)
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(req.SampleRate),
		ChannelCount: req.NumOutputChannels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	s.ctx = ctx
	s.player = ctx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

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

func (s *System) NumInputChannels() int  { return 0 }
func (s *System) NumOutputChannels() int { return s.req.NumOutputChannels }
func (s *System) SampleRate() float64    { return s.req.SampleRate }
func (s *System) MaxBlockSize() uint32   { return s.req.BlockSize }

// CPULoad is the smoothed fraction of each block's duration spent rendering
// it.
func (s *System) CPULoad() float64 { return math.Float64frombits(s.load.Load()) }

// XRunCount is not known for the pull model.
func (s *System) XRunCount() int { return -1 }

// OutputRMS is the root-mean-square level of the most recent rendered
// block, 0..1ish. Useful as a cheap output meter.
func (s *System) OutputRMS() float64 { return math.Float64frombits(s.rms.Load()) }

func (s *System) Close() error {
	if err := s.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}

// Read renders whole blocks of float32 frames into p. oto guarantees len(p)
// is a multiple of the frame size.
func (s *System) Read(p []byte) (int, error) {
	numChans := s.req.NumOutputChannels
	frameBytes := numChans * bytesPerSample
	n := 0
	for len(p)-n >= frameBytes {
		frames := uint32((len(p) - n) / frameBytes)
		if frames > s.req.BlockSize {
			frames = s.req.BlockSize
		}
		s.renderBlock(frames)
		n += s.encodeBlock(p[n:], frames)
	}
	return n, nil
}

func (s *System) renderBlock(frames uint32) {
	for _, ch := range s.channels {
		for i := range ch[:frames] {
			ch[i] = 0
		}
	}
	box := s.callback.Load()
	if box == nil {
		s.rms.Store(0)
		return
	}

	s.midiIn = s.midiIn[:0]
	if s.midi != nil {
		s.midiIn = s.midi.CollectBlock(s.midiIn, frames)
	}

	started := time.Now()
	for i, ch := range s.channels {
		s.views[i] = ch[:frames]
	}
	s.rc.InputChannels = nil
	s.rc.OutputChannels = s.views
	s.rc.MIDIIn = s.midiIn
	s.rc.MIDIOut = s.midiOut[:0]
	s.rc.FrameOffset = 0
	s.rc.NumFrames = frames
	s.rc.TotalFramesRendered = 0
	box.cb.Render(&s.rc)

	elapsed := time.Since(started).Seconds()
	deadline := float64(frames) / s.req.SampleRate
	load := math.Float64frombits(s.load.Load())
	s.load.Store(math.Float64bits(load*0.9 + (elapsed/deadline)*0.1))
	s.measureRMS(frames)
}

// measureRMS updates the output meter from the rendered block.
func (s *System) measureRMS(frames uint32) {
	if frames == 0 {
		return
	}
	var total float32
	for _, ch := range s.views {
		squares := vek32.Mul_Into(s.power[:frames], ch, ch)
		total += vek32.Mean(squares)
	}
	s.rms.Store(math.Float64bits(math.Sqrt(float64(total) / float64(len(s.views)))))
}

// encodeBlock interleaves the rendered planar block into p as float32 LE
// and returns the number of bytes written.
func (s *System) encodeBlock(p []byte, frames uint32) int {
	numChans := s.req.NumOutputChannels
	n := 0
	for f := uint32(0); f < frames; f++ {
		for c := 0; c < numChans; c++ {
			bits := math.Float32bits(s.channels[c][f])
			p[n] = byte(bits)
			p[n+1] = byte(bits >> 8)
			p[n+2] = byte(bits >> 16)
			p[n+3] = byte(bits >> 24)
			n += 4
		}
	}
	return n
}
