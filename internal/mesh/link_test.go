package mesh

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
	"github.com/EmilioRXD/Chat-de-voz/internal/protocol"
)

// fakePC records negotiation calls in order, standing in for a pion
// PeerConnection.
type fakePC struct {
	remote     *webrtc.SessionDescription
	candidates []string
	closed     bool
}

func (f *fakePC) CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "offer-sdp"}, nil
}

func (f *fakePC) CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-sdp"}, nil
}

func (f *fakePC) SetLocalDescription(webrtc.SessionDescription) error { return nil }

func (f *fakePC) SetRemoteDescription(d webrtc.SessionDescription) error {
	f.remote = &d
	return nil
}

func (f *fakePC) RemoteDescription() *webrtc.SessionDescription { return f.remote }

func (f *fakePC) AddICECandidate(c webrtc.ICECandidateInit) error {
	f.candidates = append(f.candidates, c.Candidate)
	return nil
}

func (f *fakePC) Close() error {
	f.closed = true
	return nil
}

type sentBody struct {
	bodies []protocol.NegotiationBody
}

func (s *sentBody) send(b protocol.NegotiationBody) error {
	s.bodies = append(s.bodies, b)
	return nil
}

func TestInitiatorFor(t *testing.T) {
	a, b := domain.ConnectionID("aaa"), domain.ConnectionID("bbb")
	assert.Equal(t, a, InitiatorFor(a, b))
	assert.Equal(t, a, InitiatorFor(b, a), "both sides agree regardless of argument order")
}

func TestLinkInitiatorOffer(t *testing.T) {
	pc := &fakePC{}
	out := &sentBody{}
	l := newLink("conn-b", "bob", RoleInitiator, pc, out.send)

	require.NoError(t, l.startOffer())
	assert.Equal(t, StateNegotiating, l.State())
	require.Len(t, out.bodies, 1)
	assert.Equal(t, protocol.DescriptionOffer, out.bodies[0].Description.Kind)
	assert.Equal(t, "offer-sdp", out.bodies[0].Description.SDP)

	require.NoError(t, l.HandleDescription(protocol.Description{Kind: protocol.DescriptionAnswer, SDP: "remote-answer"}))
	assert.Equal(t, "remote-answer", pc.remote.SDP)
}

func TestLinkResponderAnswersOffer(t *testing.T) {
	pc := &fakePC{}
	out := &sentBody{}
	l := newLink("conn-a", "alice", RoleResponder, pc, out.send)

	require.NoError(t, l.HandleDescription(protocol.Description{Kind: protocol.DescriptionOffer, SDP: "remote-offer"}))
	assert.Equal(t, StateNegotiating, l.State())
	assert.Equal(t, webrtc.SDPTypeOffer, pc.remote.Type)
	require.Len(t, out.bodies, 1)
	assert.Equal(t, protocol.DescriptionAnswer, out.bodies[0].Description.Kind)
}

func TestLinkBuffersEarlyCandidates(t *testing.T) {
	pc := &fakePC{}
	l := newLink("conn-a", "alice", RoleResponder, pc, (&sentBody{}).send)

	// Candidates before any description must be held, not dropped and not
	// applied.
	require.NoError(t, l.HandleCandidate(protocol.Candidate{Candidate: "cand-1"}))
	require.NoError(t, l.HandleCandidate(protocol.Candidate{Candidate: "cand-2"}))
	assert.Empty(t, pc.candidates)

	require.NoError(t, l.HandleDescription(protocol.Description{Kind: protocol.DescriptionOffer, SDP: "remote-offer"}))
	assert.Equal(t, []string{"cand-1", "cand-2"}, pc.candidates)

	// After the remote description, candidates apply immediately. The end
	// state matches the delivered-after ordering.
	require.NoError(t, l.HandleCandidate(protocol.Candidate{Candidate: "cand-3"}))
	assert.Equal(t, []string{"cand-1", "cand-2", "cand-3"}, pc.candidates)
}

func TestLinkCandidateBufferBounded(t *testing.T) {
	pc := &fakePC{}
	l := newLink("conn-a", "alice", RoleResponder, pc, (&sentBody{}).send)

	for i := 0; i < maxPendingCandidates+10; i++ {
		require.NoError(t, l.HandleCandidate(protocol.Candidate{Candidate: "c"}))
	}

	require.NoError(t, l.HandleDescription(protocol.Description{Kind: protocol.DescriptionOffer, SDP: "sdp"}))
	assert.Len(t, pc.candidates, maxPendingCandidates)
}

func TestLinkGlareOfferDropped(t *testing.T) {
	pc := &fakePC{}
	out := &sentBody{}
	l := newLink("conn-b", "bob", RoleInitiator, pc, out.send)
	require.NoError(t, l.startOffer())

	// A remote that ignored the deterministic role sends us an offer; it
	// must not disturb our own exchange.
	require.NoError(t, l.HandleDescription(protocol.Description{Kind: protocol.DescriptionOffer, SDP: "glare-offer"}))
	assert.Nil(t, pc.remote)
	require.Len(t, out.bodies, 1, "no answer generated for a glare offer")
}

func TestLinkClosedIgnoresLateEvents(t *testing.T) {
	pc := &fakePC{}
	l := newLink("conn-a", "alice", RoleResponder, pc, (&sentBody{}).send)

	l.Close()
	assert.True(t, pc.closed)
	assert.Equal(t, StateClosed, l.State())

	assert.ErrorIs(t, l.HandleCandidate(protocol.Candidate{Candidate: "late"}), ErrLinkClosed)
	assert.ErrorIs(t, l.HandleDescription(protocol.Description{Kind: protocol.DescriptionOffer, SDP: "late"}), ErrLinkClosed)
	assert.Empty(t, pc.candidates)

	// Double close is safe.
	l.Close()
}

func TestLinkConnectionStateTransitions(t *testing.T) {
	l := newLink("conn-a", "alice", RoleResponder, &fakePC{}, (&sentBody{}).send)

	assert.False(t, l.onConnectionState(webrtc.PeerConnectionStateConnected))
	assert.Equal(t, StateConnected, l.State())

	assert.True(t, l.onConnectionState(webrtc.PeerConnectionStateFailed))

	l.Close()
	assert.False(t, l.onConnectionState(webrtc.PeerConnectionStateFailed), "late callback after close is discarded")
}

func TestLinkGain(t *testing.T) {
	l := newLink("conn-a", "alice", RoleResponder, &fakePC{}, (&sentBody{}).send)
	assert.Equal(t, 1.0, l.Gain())
	l.SetGain(0.296)
	assert.Equal(t, 0.296, l.Gain())
}
