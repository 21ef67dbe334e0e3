package audiohost_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Glomels/audiohost"
	"github.com/Glomels/audiohost/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestVenueEndpointCatalog(t *testing.T) {
	venue, _ := newTestVenue()

	sources := venue.SourceEndpoints()
	require.Len(t, sources, 2)
	assert.Equal(t, audiohost.DefaultInID, sources[0].ID)
	assert.Equal(t, 2, sources[0].Frame.NumChannels())
	assert.Equal(t, audiohost.DefaultMIDIInID, sources[1].ID)
	assert.True(t, sources[1].IsMIDIEvent())

	sinks := venue.SinkEndpoints()
	require.Len(t, sinks, 2)
	assert.Equal(t, audiohost.DefaultOutID, sinks[0].ID)
	assert.Equal(t, audiohost.DefaultMIDIOutID, sinks[1].ID)
}

func TestVenueCatalogWithoutInputChannels(t *testing.T) {
	audio := &mock.AudioSystem{InChannels: 0, OutChannels: 2, Rate: 44100, Block: 512}
	venue := audiohost.NewVenue(audio, &mock.Factory{})

	sources := venue.SourceEndpoints()
	require.Len(t, sources, 1)
	assert.Equal(t, audiohost.DefaultMIDIInID, sources[0].ID)
}

func startSession(t *testing.T, venue *audiohost.Venue) *audiohost.Session {
	t.Helper()
	session := venue.CreateSession()
	require.True(t, session.Load(nil, mock.Program{}))
	require.True(t, session.Link(nil, settings(512)))
	require.True(t, session.Start())
	return session
}

func TestVenueDispatchesInInsertionOrder(t *testing.T) {
	performerA := newTestPerformer()
	performerB := newTestPerformer()
	venue, audio := newTestVenue(performerA, performerB)

	sessionA := startSession(t, venue)
	sessionB := startSession(t, venue)

	var order []*audiohost.Session
	for _, s := range []*audiohost.Session{sessionA, sessionB} {
		session := s
		require.True(t, session.SetInputEndpointServiceCallback(audioInID, func(cs *audiohost.Session, h audiohost.EndpointHandle) {
			order = append(order, session)
		}))
	}

	audio.Pump(64, nil)
	require.Len(t, order, 2)
	assert.Same(t, sessionA, order[0])
	assert.Same(t, sessionB, order[1])

	sessionA.Stop()
	order = nil
	audio.Pump(64, nil)
	require.Len(t, order, 1)
	assert.Same(t, sessionB, order[0])

	sessionB.Stop()
}

func TestVenueCallbackAttachDetach(t *testing.T) {
	performerA := newTestPerformer()
	performerB := newTestPerformer()
	venue, audio := newTestVenue(performerA, performerB)

	assert.Nil(t, audio.Callback())

	sessionA := startSession(t, venue)
	assert.NotNil(t, audio.Callback())
	sessionB := startSession(t, venue)

	sessionA.Stop()
	assert.NotNil(t, audio.Callback())
	sessionB.Stop()
	assert.Nil(t, audio.Callback())

	assert.Equal(t, 1, audio.StartingCalls)
	assert.Equal(t, 1, audio.StoppedCalls)
}

func TestVenueCloseRefusesWhileRunning(t *testing.T) {
	performer := newTestPerformer()
	venue, audio := newTestVenue(performer)
	session := startSession(t, venue)

	assert.ErrorIs(t, venue.Close(), audiohost.ErrSessionsActive)
	assert.False(t, audio.Closed)

	session.Stop()
	require.NoError(t, venue.Close())
	assert.True(t, audio.Closed)
}

func TestStopFromServiceCallbackIsDeferred(t *testing.T) {
	performer := newTestPerformer()
	venue, audio := newTestVenue(performer)
	session := startSession(t, venue)

	stops := 0
	require.True(t, session.SetInputEndpointServiceCallback(audioInID, func(cs *audiohost.Session, h audiohost.EndpointHandle) {
		if cs.IsRunning() {
			cs.Stop()
			stops++
		}
	}))

	audio.Pump(1000, nil) // must not deadlock
	assert.Equal(t, 1, stops)
	assert.Equal(t, audiohost.SessionLinked, session.Status().State)

	// the removal took effect before the next callback
	performer.PreparedFrames = nil
	audio.Pump(64, nil)
	assert.Empty(t, performer.PreparedFrames)
	assert.Nil(t, audio.Callback())
}

func TestRestartAfterStop(t *testing.T) {
	performer := newTestPerformer()
	venue, audio := newTestVenue(performer)
	session := startSession(t, venue)

	audio.Pump(128, nil)
	assert.Equal(t, uint64(128), session.TotalFramesRendered())

	session.Stop()
	require.True(t, session.Start())
	audio.Pump(128, nil)
	assert.Equal(t, uint64(128), session.TotalFramesRendered())
	session.Stop()
}
