package audiohost

import (
	"sync/atomic"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
)

type (
	// Session is one instance of a performer bound to a venue, with its own
	// state machine, connection table and compiled render plan. Sessions are
	// created by Venue.CreateSession and owned by the caller; a session must
	// be stopped before it is discarded.
	//
	// The control-plane methods (Load, Link, Start, Stop, Unload, connect
	// and callback setters) must not be called concurrently with a render of
	// the same session. They may be called freely while other sessions
	// render: the venue mutex serializes the render pass against active-set
	// edits, and a session's own plan is read-only while it renders.
	Session struct {
		venue     *Venue
		performer Performer
		uid       string
		log       *logrus.Entry

		state               SessionState
		stateChangeCallback func(SessionState)
		maxBlockSize        uint32
		totalFramesRendered atomic.Uint64

		// inProcessBlock is set by the render goroutine for the duration of
		// processBlock, so session methods invoked from endpoint service or
		// state-change callbacks can tell they already run under the venue
		// mutex and must defer active-set edits instead of re-locking.
		inProcessBlock atomic.Bool

		connections     []Connection
		preRenderOps    []renderOp
		postRenderOps   []renderOp
		inputCallbacks  []endpointCallback
		outputCallbacks []endpointCallback

		// sub-block channel view scratch, sized at link time
		subIn, subOut [][]float32
	}

	// EndpointServiceFunc is invoked once per sub-block, between the
	// pre-render plan and Advance for input endpoints, and after the
	// post-render plan for output endpoints. It runs on the realtime thread.
	EndpointServiceFunc func(s *Session, handle EndpointHandle)

	endpointCallback struct {
		handle   EndpointHandle
		callback EndpointServiceFunc
	}
)

// maxFramesPerSubBlock caps how many frames a single Advance may cover,
// independent of the device block size.
const maxFramesPerSubBlock = 512

func newSession(v *Venue, performer Performer) *Session {
	uid := xid.New().String()
	return &Session{
		venue:     v,
		performer: performer,
		uid:       uid,
		log:       v.log.WithField("session", uid),
	}
}

func (s *Session) String() string { return s.uid }

func (s *Session) InputEndpoints() []EndpointDetails  { return s.performer.InputEndpoints() }
func (s *Session) OutputEndpoints() []EndpointDetails { return s.performer.OutputEndpoints() }

// Load installs a program, unloading any previous one first. Returns false
// without touching the session when the program is nil or empty, and
// returns false with the session empty when the performer rejects it.
func (s *Session) Load(messages *CompileMessageList, program Program) bool {
	if program == nil || program.IsEmpty() {
		return false
	}
	if s.state != SessionEmpty {
		s.Unload()
	}
	if s.performer.Load(messages, program) {
		s.setState(SessionLoaded)
		return true
	}
	return false
}

// Link compiles the render plan from the connection table and links the
// performer for the given settings. Legal only from the loaded state;
// failure keeps the session loaded.
func (s *Session) Link(messages *CompileMessageList, settings BuildSettings) bool {
	s.maxBlockSize = settings.MaxBlockSize
	s.buildOperationList()
	s.subIn = make([][]float32, s.venue.audioSystem.NumInputChannels())
	s.subOut = make([][]float32, s.venue.audioSystem.NumOutputChannels())

	if s.state == SessionLoaded && s.performer.Link(messages, settings) {
		s.setState(SessionLinked)
		return true
	}
	return false
}

func (s *Session) IsRunning() bool { return s.state == SessionRunning }

// Start makes the session part of the venue's active set, so it receives
// processBlock on the next device callback. Legal only from linked.
func (s *Session) Start() bool {
	if s.state == SessionLinked {
		if s.venue.startSession(s) {
			s.setState(SessionRunning)
		}
	}
	return s.IsRunning()
}

// Stop removes the session from the active set and zeroes the frame
// counter. Idempotent; a no-op unless running.
func (s *Session) Stop() {
	if s.IsRunning() {
		s.venue.stopSession(s)
		s.setState(SessionLinked)
		s.totalFramesRendered.Store(0)
	}
}

// Unload stops the session if needed, unloads the performer and drops the
// connection table, render plan and service callbacks.
func (s *Session) Unload() {
	s.Stop()
	s.performer.Unload()
	s.preRenderOps = nil
	s.postRenderOps = nil
	s.inputCallbacks = nil
	s.outputCallbacks = nil
	s.connections = nil
	s.setState(SessionEmpty)
}

// Status reports the session state together with the device load and the
// combined xrun count: performer xruns plus device xruns when the device
// knows them.
func (s *Session) Status() Status {
	st := Status{
		State:      s.state,
		CPU:        s.venue.audioSystem.CPULoad(),
		SampleRate: s.venue.audioSystem.SampleRate(),
		BlockSize:  s.venue.audioSystem.MaxBlockSize(),
		XRuns:      s.performer.XRuns(),
	}
	if deviceXRuns := s.venue.audioSystem.XRunCount(); deviceXRuns > 0 {
		st.XRuns += deviceXRuns
	}
	return st
}

func (s *Session) setState(newState SessionState) {
	if s.state != newState {
		s.state = newState
		s.log.WithField("state", newState).Debug("session state changed")
		if s.stateChangeCallback != nil {
			s.stateChangeCallback(newState)
		}
	}
}

// SetStateChangeCallback registers a callback invoked synchronously on the
// thread that causes each state transition.
func (s *Session) SetStateChangeCallback(fn func(SessionState)) { s.stateChangeCallback = fn }

func (s *Session) TotalFramesRendered() uint64 { return s.totalFramesRendered.Load() }

// SetEndpointActive resolves the endpoint handle and discards it. Beyond
// validating the ID against the loaded performer it has no effect.
func (s *Session) SetEndpointActive(id EndpointID) {
	s.performer.EndpointHandle(id)
}

func (s *Session) SetNextInputStreamFrames(handle EndpointHandle, interleavedFrames []float32) {
	s.performer.SetNextInputStreamFrames(handle, interleavedFrames)
}

func (s *Session) SetSparseInputStreamTarget(handle EndpointHandle, targetFrame []float32, numFramesToReach uint32) {
	s.performer.SetSparseInputStreamTarget(handle, targetFrame, numFramesToReach)
}

func (s *Session) SetInputValue(handle EndpointHandle, value []float32) {
	s.performer.SetInputValue(handle, value)
}

func (s *Session) AddInputEvent(handle EndpointHandle, event any) {
	s.performer.AddInputEvent(handle, event)
}

func (s *Session) OutputStreamFrames(handle EndpointHandle) []float32 {
	return s.performer.OutputStreamFrames(handle)
}

func (s *Session) IterateOutputEvents(handle EndpointHandle, fn func(frameOffset uint32, event any) bool) {
	s.performer.IterateOutputEvents(handle, fn)
}

// ConnectSessionInputEndpoint connects a venue source endpoint to a
// performer input endpoint. Returns false when either endpoint is unknown or
// the shapes do not match (MIDI to non-event, audio to a non-stream or to a
// stream whose frames are not float or vector-of-float).
func (s *Session) ConnectSessionInputEndpoint(inputID, venueSourceID EndpointID) bool {
	if venueEndpoint, ok := findEndpointInfo(s.venue.sourceEndpoints, venueSourceID); ok {
		return s.connectInputEndpoint(venueEndpoint, inputID)
	}
	return false
}

// ConnectSessionOutputEndpoint connects a performer output endpoint to a
// venue sink endpoint.
func (s *Session) ConnectSessionOutputEndpoint(outputID, venueSinkID EndpointID) bool {
	if venueEndpoint, ok := findEndpointInfo(s.venue.sinkEndpoints, venueSinkID); ok {
		return s.connectOutputEndpoint(venueEndpoint, outputID)
	}
	return false
}

func (s *Session) connectInputEndpoint(external EndpointInfo, inputID EndpointID) bool {
	for _, details := range s.performer.InputEndpoints() {
		if details.ID != inputID {
			continue
		}
		if details.IsStream() && details.Frame.IsFloat() && !external.IsMIDI {
			s.connections = append(s.connections, Connection{
				InputChannel: external.AudioChannelIndex, OutputChannel: -1, Endpoint: details.ID,
			})
			return true
		}
		if details.IsEvent() && external.IsMIDI {
			s.connections = append(s.connections, Connection{
				InputChannel: -1, OutputChannel: -1, IsMIDI: true, Endpoint: details.ID,
			})
			return true
		}
	}
	return false
}

func (s *Session) connectOutputEndpoint(external EndpointInfo, outputID EndpointID) bool {
	for _, details := range s.performer.OutputEndpoints() {
		if details.ID != outputID {
			continue
		}
		if details.IsStream() && details.Frame.IsFloat() && !external.IsMIDI {
			s.connections = append(s.connections, Connection{
				InputChannel: -1, OutputChannel: external.AudioChannelIndex, Endpoint: details.ID,
			})
			return true
		}
	}
	return false
}

// SetInputEndpointServiceCallback registers a callback serviced once per
// sub-block before Advance. Returns false when the performer has no such
// input endpoint.
func (s *Session) SetInputEndpointServiceCallback(id EndpointID, fn EndpointServiceFunc) bool {
	if !ContainsEndpoint(s.performer.InputEndpoints(), id) {
		return false
	}
	handle, _ := s.performer.EndpointHandle(id)
	s.inputCallbacks = append(s.inputCallbacks, endpointCallback{handle: handle, callback: fn})
	return true
}

// SetOutputEndpointServiceCallback registers a callback serviced once per
// sub-block after the post-render plan.
func (s *Session) SetOutputEndpointServiceCallback(id EndpointID, fn EndpointServiceFunc) bool {
	if !ContainsEndpoint(s.performer.OutputEndpoints(), id) {
		return false
	}
	handle, _ := s.performer.EndpointHandle(id)
	s.outputCallbacks = append(s.outputCallbacks, endpointCallback{handle: handle, callback: fn})
	return true
}

// processBlock renders one device block on the realtime thread, splitting it
// into performer-sized sub-blocks with MIDI delivered at sub-block
// boundaries.
func (s *Session) processBlock(rc *RenderContext) {
	maxFrames := min(uint32(maxFramesPerSubBlock), s.maxBlockSize)
	if maxFrames == 0 {
		return
	}
	rc.TotalFramesRendered = s.totalFramesRendered.Load()
	rc.subIn, rc.subOut = s.subIn, s.subOut

	s.inProcessBlock.Store(true)
	rc.IterateInBlocks(maxFrames, func(sub *RenderContext) {
		s.performer.Prepare(sub.NumFrames)
		for _, op := range s.preRenderOps {
			op(sub)
		}
		for _, c := range s.inputCallbacks {
			c.callback(s, c.handle)
		}
		s.performer.Advance()
		for _, op := range s.postRenderOps {
			op(sub)
		}
		for _, c := range s.outputCallbacks {
			c.callback(s, c.handle)
		}
	})
	s.inProcessBlock.Store(false)

	s.totalFramesRendered.Add(uint64(rc.NumFrames))
}

func findEndpointInfo(list []EndpointInfo, id EndpointID) (EndpointInfo, bool) {
	for _, e := range list {
		if e.ID == id {
			return e, true
		}
	}
	return EndpointInfo{}, false
}
