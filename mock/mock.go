// Package mock provides scripted stand-ins for the interfaces the host
// consumes: a performer with configurable endpoints, a manually pumped audio
// system and a trivial program. They are used by the package tests and are
// handy for testing hosts built on top of audiohost.
package mock

import (
	"sync"

	"github.com/Glomels/audiohost"
)

type (
	// Program is a compiled artifact that only knows whether it is empty.
	Program struct {
		Empty bool
	}

	// Performer records everything the host does to it and plays back
	// whatever output the test scripted. Handles are indices into the
	// concatenated Inputs+Outputs endpoint lists, plus one.
	Performer struct {
		Inputs  []audiohost.EndpointDetails
		Outputs []audiohost.EndpointDetails

		FailLoad       bool
		FailLink       bool
		PerformerXRuns int

		// Output holds the interleaved frames OutputStreamFrames returns
		// per handle.
		Output map[audiohost.EndpointHandle][]float32

		// OutputEvents holds the events IterateOutputEvents yields per
		// handle.
		OutputEvents map[audiohost.EndpointHandle][]TimedEvent

		Loaded   bool
		Linked   bool
		Settings audiohost.BuildSettings

		PreparedFrames []uint32
		AdvanceCount   int
		Streams        map[audiohost.EndpointHandle][][]float32
		Values         map[audiohost.EndpointHandle][][]float32
		Events         []ReceivedEvent
		UnloadCount    int
	}

	// ReceivedEvent is one event the host pushed into the performer,
	// stamped with the Advance count at the time so tests can tell which
	// sub-block delivered it.
	ReceivedEvent struct {
		Handle   audiohost.EndpointHandle
		SubBlock int
		Event    any
	}

	TimedEvent struct {
		FrameOffset uint32
		Event       any
	}

	// Factory hands out the performers it was given, in order, falling back
	// to empty performers when it runs out.
	Factory struct {
		Performers []*Performer
		next       int
	}

	// AudioSystem is a manually pumped device: tests call Pump to simulate
	// one device callback.
	AudioSystem struct {
		InChannels  int
		OutChannels int
		Rate        float64
		Block       uint32
		CPU         float64
		XRuns       int

		// Input, when set, is copied into the block's input channels.
		Input [][]float32

		mu            sync.Mutex
		callback      audiohost.RenderCallback
		StartingCalls int
		StoppedCalls  int
		Closed        bool
	}
)

func (p Program) IsEmpty() bool { return p.Empty }

func (f *Factory) NewPerformer() audiohost.Performer {
	if f.next < len(f.Performers) {
		p := f.Performers[f.next]
		f.next++
		return p
	}
	return &Performer{}
}

func (p *Performer) Load(messages *audiohost.CompileMessageList, program audiohost.Program) bool {
	if p.FailLoad {
		messages.AddError("mock load failure")
		return false
	}
	p.Loaded = true
	return true
}

func (p *Performer) Link(messages *audiohost.CompileMessageList, settings audiohost.BuildSettings) bool {
	if p.FailLink {
		messages.AddError("mock link failure")
		return false
	}
	p.Linked = true
	p.Settings = settings
	return true
}

func (p *Performer) Unload() {
	p.Loaded = false
	p.Linked = false
	p.UnloadCount++
}

func (p *Performer) IsLinked() bool { return p.Linked }

func (p *Performer) InputEndpoints() []audiohost.EndpointDetails  { return p.Inputs }
func (p *Performer) OutputEndpoints() []audiohost.EndpointDetails { return p.Outputs }

func (p *Performer) EndpointHandle(id audiohost.EndpointID) (audiohost.EndpointHandle, bool) {
	for i, d := range p.Inputs {
		if d.ID == id {
			return audiohost.EndpointHandle(i + 1), true
		}
	}
	for i, d := range p.Outputs {
		if d.ID == id {
			return audiohost.EndpointHandle(len(p.Inputs) + i + 1), true
		}
	}
	return 0, false
}

func (p *Performer) Prepare(numFrames uint32) {
	p.PreparedFrames = append(p.PreparedFrames, numFrames)
}

func (p *Performer) SetNextInputStreamFrames(handle audiohost.EndpointHandle, frames []float32) {
	if p.Streams == nil {
		p.Streams = make(map[audiohost.EndpointHandle][][]float32)
	}
	cp := make([]float32, len(frames))
	copy(cp, frames)
	p.Streams[handle] = append(p.Streams[handle], cp)
}

func (p *Performer) SetSparseInputStreamTarget(handle audiohost.EndpointHandle, targetFrame []float32, numFramesToReach uint32) {
	p.SetInputValue(handle, targetFrame)
}

func (p *Performer) SetInputValue(handle audiohost.EndpointHandle, value []float32) {
	if p.Values == nil {
		p.Values = make(map[audiohost.EndpointHandle][][]float32)
	}
	cp := make([]float32, len(value))
	copy(cp, value)
	p.Values[handle] = append(p.Values[handle], cp)
}

func (p *Performer) AddInputEvent(handle audiohost.EndpointHandle, event any) {
	// the host reuses the event object between calls, so keep a copy
	if m, ok := event.(*audiohost.MIDIMessage); ok {
		event = *m
	}
	p.Events = append(p.Events, ReceivedEvent{Handle: handle, SubBlock: p.AdvanceCount, Event: event})
}

func (p *Performer) Advance() { p.AdvanceCount++ }

func (p *Performer) OutputStreamFrames(handle audiohost.EndpointHandle) []float32 {
	return p.Output[handle]
}

func (p *Performer) IterateOutputEvents(handle audiohost.EndpointHandle, fn func(frameOffset uint32, event any) bool) {
	for _, e := range p.OutputEvents[handle] {
		if !fn(e.FrameOffset, e.Event) {
			return
		}
	}
}

func (p *Performer) XRuns() int { return p.PerformerXRuns }

func (a *AudioSystem) SetCallback(cb audiohost.RenderCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.callback != nil {
		a.callback.RenderStopped()
		a.StoppedCalls++
	}
	a.callback = cb
	if cb != nil {
		cb.RenderStarting(a.Rate, a.Block)
		a.StartingCalls++
	}
}

func (a *AudioSystem) Callback() audiohost.RenderCallback {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.callback
}

func (a *AudioSystem) NumInputChannels() int  { return a.InChannels }
func (a *AudioSystem) NumOutputChannels() int { return a.OutChannels }
func (a *AudioSystem) SampleRate() float64    { return a.Rate }
func (a *AudioSystem) MaxBlockSize() uint32   { return a.Block }
func (a *AudioSystem) CPULoad() float64       { return a.CPU }
func (a *AudioSystem) XRunCount() int         { return a.XRuns }

func (a *AudioSystem) Close() error {
	a.Closed = true
	return nil
}

// Pump simulates one device callback of numFrames frames with the given
// input MIDI, and returns the context so tests can inspect the rendered
// output. Input channels are zero unless a.Input is set.
func (a *AudioSystem) Pump(numFrames uint32, midiIn []audiohost.MIDIEvent) *audiohost.RenderContext {
	in := make([][]float32, a.InChannels)
	for i := range in {
		in[i] = make([]float32, numFrames)
		if i < len(a.Input) {
			copy(in[i], a.Input[i])
		}
	}
	out := make([][]float32, a.OutChannels)
	for i := range out {
		out[i] = make([]float32, numFrames)
	}
	rc := &audiohost.RenderContext{
		InputChannels:  in,
		OutputChannels: out,
		MIDIIn:         midiIn,
		MIDIOut:        make([]audiohost.MIDIEvent, 0, 256),
		NumFrames:      numFrames,
	}
	if cb := a.Callback(); cb != nil {
		cb.Render(rc)
	}
	return rc
}
