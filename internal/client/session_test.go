package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmilioRXD/Chat-de-voz/internal/domain"
	"github.com/EmilioRXD/Chat-de-voz/internal/media"
	"github.com/EmilioRXD/Chat-de-voz/internal/protocol"
	"github.com/EmilioRXD/Chat-de-voz/internal/spatial"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(Options{
		DisplayName: "alice",
		Source:      media.NewSilenceSource(),
	})
	require.NoError(t, err)
	return s
}

func TestNewSessionRequiresSource(t *testing.T) {
	_, err := NewSession(Options{DisplayName: "alice"})
	assert.ErrorIs(t, err, media.ErrMediaAccessDenied)
}

func TestNewSessionRequiresDisplayName(t *testing.T) {
	_, err := NewSession(Options{Source: media.NewSilenceSource()})
	assert.ErrorIs(t, err, domain.ErrNameEmpty)
}

func TestNewSessionDefaultsSpatialParams(t *testing.T) {
	s := newTestSession(t)
	assert.Equal(t, spatial.DefaultParams(), s.engine.Params())
}

func TestSendNegotiationEncodesBody(t *testing.T) {
	s := newTestSession(t)

	err := s.SendNegotiation("conn-b", protocol.DescriptionBody(protocol.DescriptionOffer, "v=0 fake"))
	require.NoError(t, err)

	select {
	case data := <-s.send:
		var out protocol.NegotiationIn
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, protocol.MsgNegotiation, out.Type)
		assert.Equal(t, domain.ConnectionID("conn-b"), out.To)
		body, err := protocol.DecodeNegotiationBody(out.Message)
		require.NoError(t, err)
		assert.Equal(t, "v=0 fake", body.Description.SDP)
	case <-time.After(time.Second):
		t.Fatal("no frame queued")
	}
}

func TestNegotiationBufferedUntilSnapshot(t *testing.T) {
	s := newTestSession(t)

	raw, err := json.Marshal(protocol.NegotiationOut{
		Type:    protocol.MsgNegotiation,
		From:    "conn-b",
		Message: json.RawMessage(`{"kind":"candidate","candidate":{"candidate":"c"}}`),
	})
	require.NoError(t, err)

	s.dispatch(raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Nil(t, s.mesh)
	require.Len(t, s.pendingNeg, 1)
	assert.JSONEq(t, string(raw), string(s.pendingNeg[0]))
}

func TestIDsByNameResolvesRoster(t *testing.T) {
	s := newTestSession(t)
	s.mu.Lock()
	s.roster["conn-b"] = "bob"
	s.roster["conn-c"] = "bob"
	s.roster["conn-d"] = "carol"
	s.mu.Unlock()

	ids := s.IDsByName("bob")
	assert.ElementsMatch(t, []domain.ConnectionID{"conn-b", "conn-c"}, ids)
	assert.Empty(t, s.IDsByName("nobody"))
}

func TestParticipantLeftBeforeSnapshotIsHarmless(t *testing.T) {
	s := newTestSession(t)

	raw, err := json.Marshal(protocol.ParticipantLeft{Type: protocol.MsgParticipantLeft, ID: "conn-b"})
	require.NoError(t, err)
	s.dispatch(raw)
}

func TestRunReturnsOnContextCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		// Swallow everything, reply with nothing. The client read blocks.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := newTestSession(t)
	s.opts.ServerURL = "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run still blocked after cancellation")
	}
}

func TestSetMutedTracksAuthorityFlag(t *testing.T) {
	s := newTestSession(t)
	assert.False(t, s.Muted())
	s.setMuted(true)
	assert.True(t, s.Muted())
	s.setMuted(false)
	assert.False(t, s.Muted())
}
