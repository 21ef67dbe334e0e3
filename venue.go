package audiohost

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Glomels/audiohost/log"
)

type (
	// Venue owns a single audio/MIDI device and multiplexes any number of
	// sessions onto its realtime callback. It publishes a fixed device
	// endpoint catalog (defaultIn, defaultOut, defaultMidiIn,
	// defaultMidiOut) built from the device channel counts.
	//
	// The venue's mutex is held across the whole render dispatch, so a
	// session started before a device callback is rendered by the next
	// callback, and a stopped session receives no further processBlock once
	// stopSession has returned. Go has no reentrant mutex; start and stop
	// requests made from inside a session's own render callbacks are
	// deferred and applied at the end of the render pass instead (see
	// Session.inProcessBlock).
	Venue struct {
		audioSystem AudioSystem
		factory     PerformerFactory
		log         *logrus.Entry

		sourceEndpoints []EndpointInfo
		sinkEndpoints   []EndpointInfo

		mu             sync.Mutex
		activeSessions []*Session

		// deferred active-set edits, touched only by the render goroutine
		// while it holds mu
		deferred []deferredEdit
	}

	deferredEdit struct {
		session *Session
		add     bool
	}
)

// ErrSessionsActive is returned by Venue.Close while sessions are running.
var ErrSessionsActive = errors.New("audiohost: venue closed with active sessions")

// NewVenue builds a venue around an audio system and a performer factory,
// taking exclusive ownership of both.
func NewVenue(audioSystem AudioSystem, factory PerformerFactory) *Venue {
	v := &Venue{
		audioSystem: audioSystem,
		factory:     factory,
		log:         log.GetLogger().WithField("component", "venue"),
	}
	v.createDeviceEndpoints(audioSystem.NumInputChannels(), audioSystem.NumOutputChannels())
	return v
}

// CreateSession returns a fresh session bound to this venue, wrapping a new
// performer from the factory. The session starts empty and is owned by the
// caller.
func (v *Venue) CreateSession() *Session {
	return newSession(v, v.factory.NewPerformer())
}

// SourceEndpoints lists the device endpoints a session input can connect to.
func (v *Venue) SourceEndpoints() []EndpointDetails { return convertEndpointList(v.sourceEndpoints) }

// SinkEndpoints lists the device endpoints a session output can connect to.
func (v *Venue) SinkEndpoints() []EndpointDetails { return convertEndpointList(v.sinkEndpoints) }

// Close detaches from the device and closes it. All sessions must have been
// stopped first.
func (v *Venue) Close() error {
	v.mu.Lock()
	active := len(v.activeSessions)
	v.mu.Unlock()
	if active != 0 {
		return ErrSessionsActive
	}
	v.audioSystem.SetCallback(nil)
	return v.audioSystem.Close()
}

func (v *Venue) startSession(s *Session) bool {
	if s.inProcessBlock.Load() {
		v.deferred = append(v.deferred, deferredEdit{session: s, add: true})
		return true
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.addSessionLocked(s)
	return true
}

func (v *Venue) stopSession(s *Session) {
	if s.inProcessBlock.Load() {
		v.deferred = append(v.deferred, deferredEdit{session: s})
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.removeSessionLocked(s)
}

func (v *Venue) addSessionLocked(s *Session) {
	for _, active := range v.activeSessions {
		if active == s {
			return
		}
	}
	v.activeSessions = append(v.activeSessions, s)
	if len(v.activeSessions) == 1 {
		v.audioSystem.SetCallback(v)
	}
	v.log.WithField("session", s.uid).Debug("session started")
}

func (v *Venue) removeSessionLocked(s *Session) {
	for i, active := range v.activeSessions {
		if active == s {
			v.activeSessions = append(v.activeSessions[:i], v.activeSessions[i+1:]...)
			break
		}
	}
	if len(v.activeSessions) == 0 {
		v.audioSystem.SetCallback(nil)
	}
	v.log.WithField("session", s.uid).Debug("session stopped")
}

// RenderStarting implements RenderCallback.
func (v *Venue) RenderStarting(sampleRate float64, maxBlockSize uint32) {
	v.log.WithFields(logrus.Fields{"samplerate": sampleRate, "maxblock": maxBlockSize}).Debug("render starting")
}

// RenderStopped implements RenderCallback.
func (v *Venue) RenderStopped() {
	v.log.Debug("render stopped")
}

// Render implements RenderCallback: it dispatches the device block to every
// active session in insertion order, each with its own copy of the context.
func (v *Venue) Render(rc *RenderContext) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, s := range v.activeSessions {
		ctx := *rc
		s.processBlock(&ctx)
	}

	for _, edit := range v.deferred {
		if edit.add {
			v.addSessionLocked(edit.session)
		} else {
			v.removeSessionLocked(edit.session)
		}
	}
	v.deferred = v.deferred[:0]
}

func (v *Venue) createDeviceEndpoints(numInputChannels, numOutputChannels int) {
	if numInputChannels > 0 {
		v.sourceEndpoints = append(v.sourceEndpoints, EndpointInfo{
			EndpointDetails: EndpointDetails{
				ID: DefaultInID, Name: string(DefaultInID), Kind: EndpointStream,
				Frame: VectorFrame(numInputChannels),
			},
		})
	}
	if numOutputChannels > 0 {
		v.sinkEndpoints = append(v.sinkEndpoints, EndpointInfo{
			EndpointDetails: EndpointDetails{
				ID: DefaultOutID, Name: string(DefaultOutID), Kind: EndpointStream,
				Frame: VectorFrame(numOutputChannels),
			},
		})
	}
	v.sourceEndpoints = append(v.sourceEndpoints, EndpointInfo{
		EndpointDetails: MIDIEventEndpoint(DefaultMIDIInID, string(DefaultMIDIInID)),
		IsMIDI:          true,
	})
	v.sinkEndpoints = append(v.sinkEndpoints, EndpointInfo{
		EndpointDetails: MIDIEventEndpoint(DefaultMIDIOutID, string(DefaultMIDIOutID)),
		IsMIDI:          true,
	})
}

func convertEndpointList(list []EndpointInfo) []EndpointDetails {
	result := make([]EndpointDetails, 0, len(list))
	for _, e := range list {
		result = append(result, e.EndpointDetails)
	}
	return result
}
