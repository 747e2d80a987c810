// Package ws adapts gorilla websocket connections to the presence core:
// it assigns connection ids, runs the read/write pumps, and translates
// inbound frames into join/message/disconnect events.
package ws

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/akoval/parley/internal/app"
	"github.com/akoval/parley/internal/config"
	"github.com/akoval/parley/internal/core"
)

type Controller struct {
	presence *app.Presence
	limiter  *messageLimiter
	upgrader websocket.Upgrader
	cfg      *config.Config
}

func NewController(cfg *config.Config, presence *app.Presence) *Controller {
	oc := newOriginChecker(cfg.AllowedOrigins)
	return &Controller{
		presence: presence,
		limiter:  newMessageLimiter(cfg.RateLimit.Burst, cfg.RateLimit.Interval),
		upgrader: websocket.Upgrader{CheckOrigin: oc.check},
		cfg:      cfg,
	}
}

// Handle upgrades the request and starts the pumps. The connection id is
// minted here, one per live socket, and is never reused while the socket
// is open.
func (ctl *Controller) Handle(ctx context.Context, c *gin.Context) {
	socket, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}

	id := core.ConnID(uuid.NewString())
	log.Info().Str("module", "ws").Str("conn", string(id)).Msg("new connection")

	conn := newWSConn(socket, ctl.cfg.SendBuffer)
	ctl.presence.Connect(id, conn)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, id, conn)
	go ctl.readPump(ctx, cancel, id, conn)
}
