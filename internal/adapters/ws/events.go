package ws

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/akoval/parley/internal/app"
	"github.com/akoval/parley/internal/core"
	"github.com/akoval/parley/internal/domain"
)

func (ctl *Controller) handleJoin(id core.ConnID, c *wsConn, data []byte) {
	type joinPayload struct {
		Type     string      `json:"type"`
		RoomName string      `json:"roomName"`
		User     domain.User `json:"user"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("bad join payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	err := ctl.presence.Join(id, domain.RoomName(p.RoomName), p.User)
	switch {
	case errors.Is(err, app.ErrMalformedEvent):
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("join rejected")
		ctl.sendError(c, "bad_payload")
	case err != nil:
		log.Error().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("join failed")
		ctl.sendError(c, "join_failed")
	}
}

func (ctl *Controller) handleChatMessage(id core.ConnID, c *wsConn, data []byte) {
	type messagePayload struct {
		Type    string      `json:"type"`
		Room    string      `json:"room"`
		Message string      `json:"message"`
		User    domain.User `json:"user"`
	}
	var p messagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "ws").Msg("bad message payload")
		ctl.sendError(c, "bad_payload")
		return
	}

	if !ctl.limiter.Allow(id) {
		log.Warn().Str("module", "ws").Str("conn", string(id)).Msg("message rate limited")
		ctl.sendError(c, "rate_limited")
		return
	}

	err := ctl.presence.Message(id, domain.RoomName(p.Room), p.Message)
	switch {
	case errors.Is(err, app.ErrMalformedEvent):
		ctl.sendError(c, "bad_payload")
	case errors.Is(err, app.ErrRoomMismatch):
		log.Warn().Str("module", "ws").Str("conn", string(id)).
			Str("claimed_room", p.Room).Msg("message for room sender is not in")
		ctl.sendError(c, "not_in_room")
	}
}

// handleLeave exits the current room without dropping the socket.
func (ctl *Controller) handleLeave(id core.ConnID, c *wsConn) {
	ctl.presence.LeaveRoom(id)
	ctl.sendJSON(c, map[string]any{"type": "left"})
}

func (ctl *Controller) handlePing(c *wsConn) {
	ctl.sendJSON(c, map[string]any{"type": "pong"})
}
