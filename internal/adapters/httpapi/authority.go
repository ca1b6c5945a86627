package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/EmilioRXD/Chat-de-voz/internal/app"
	"github.com/EmilioRXD/Chat-de-voz/internal/protocol"
)

// AuthorityHandler accepts authoritative world snapshots. Each push is fanned
// out to every connected client; the response doubles as the authority's poll
// of voice and connection state.
type AuthorityHandler struct {
	Registry *app.Registry
	Hub      *app.Hub
}

func (h *AuthorityHandler) HandlePush(c *gin.Context) {
	var frame protocol.AuthorityFrame
	if err := c.ShouldBindJSON(&frame); err != nil {
		log.Warn().Err(err).Str("module", "adapters.httpapi").Msg("bad authority frame")
		c.JSON(http.StatusBadRequest, protocol.AuthorityResponse{Success: false})
		return
	}

	b, err := json.Marshal(protocol.AuthorityFrameMsg{
		Type:  protocol.MsgAuthorityFrame,
		Frame: frame,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.httpapi").Msg("authority frame marshal")
		c.JSON(http.StatusInternalServerError, protocol.AuthorityResponse{Success: false})
		return
	}
	h.Hub.Broadcast("", b)

	participants := h.Registry.Snapshot()
	resp := protocol.AuthorityResponse{
		Success:          true,
		VoiceStates:      make([]protocol.AuthorityVoiceState, 0, len(participants)),
		ConnectionStates: make([]protocol.AuthorityConnection, 0, len(participants)),
	}
	for _, p := range participants {
		resp.VoiceStates = append(resp.VoiceStates, protocol.AuthorityVoiceState{
			DisplayName: p.DisplayName,
			Talking:     p.Voice.Talking,
			LevelDb:     p.Voice.LevelDb,
		})
		resp.ConnectionStates = append(resp.ConnectionStates, protocol.AuthorityConnection{
			DisplayName: p.DisplayName,
			Connected:   h.Hub.Live(p.ID),
		})
	}
	c.JSON(http.StatusOK, resp)
}
