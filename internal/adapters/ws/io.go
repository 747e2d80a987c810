package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/akoval/parley/internal/core"
)

func (ctl *Controller) writePump(ctx context.Context, id core.ConnID, c *wsConn) {
	ticker := time.NewTicker(ctl.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "ws").Str("conn", string(id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "ws").Str("conn", string(id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteTimeout)); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump owns the disconnect path: whatever ends the loop, exactly one
// disconnect event reaches the presence layer.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, id core.ConnID, c *wsConn) {
	defer func() {
		log.Info().Str("module", "ws").Str("conn", string(id)).Msg("connection closing")
		cancel()
		ctl.presence.Disconnect(id)
		ctl.limiter.Forget(id)
		c.Close()
	}()

	c.conn.SetReadLimit(ctl.cfg.ReadLimit)
	readWindow := ctl.cfg.PingPeriod + ctl.cfg.WriteTimeout
	_ = c.conn.SetReadDeadline(time.Now().Add(readWindow))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWindow))
	})

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "ws").Str("conn", string(id)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("readPump read error")
				}
				return
			}
			ctl.handleFrame(id, c, data)
		}
	}
}

func (ctl *Controller) handleFrame(id core.ConnID, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn", string(id)).Msg("bad json frame")
		ctl.sendError(c, "bad_payload")
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(id, c, data)
	case "chatMessage":
		ctl.handleChatMessage(id, c, data)
	case "leave":
		ctl.handleLeave(id, c)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown frame type")
	}
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) sendError(c *wsConn, reason string) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"error": reason,
	})
}
