package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/akoval/parley/internal/adapters/ws"
	"github.com/akoval/parley/internal/app"
	"github.com/akoval/parley/internal/config"
	"github.com/akoval/parley/internal/store"
)

// ClientTokenMiddleware tags every browser with a stable opaque token.
// It identifies the client across page loads; connection ids stay
// per-socket and are minted by the ws controller.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *ws.Controller, reg *app.Registry, users *store.Users) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	sessionStore := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ParleySessions", sessionStore))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/ws", func(c *gin.Context) {
		ctl.Handle(ctx, c)
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(200, gin.H{"rooms": reg.Rooms()})
	})

	auth := &AuthHandlers{Users: users}
	api.POST("/users/register", auth.Register)
	api.POST("/users/login", auth.Login)

	return r
}
