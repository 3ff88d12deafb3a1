package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/mavprep/voice/internal/adapters/auth"
	"github.com/mavprep/voice/internal/adapters/signal"
	"github.com/mavprep/voice/internal/app/orch"
	"github.com/mavprep/voice/internal/config"
	"github.com/mavprep/voice/internal/store"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// Deps are the collaborators the router serves.
type Deps struct {
	Orch     *orch.Orchestrator
	Store    store.Store
	Verifier *auth.Verifier
	Signal   *signal.SignalWSController
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookies := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("VoiceSessions", cookies))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{orch: deps.Orch, store: deps.Store, ice: iceServers(cfg.ICEServers)}

	api := r.Group("/api")
	api.GET("/status", h.status)
	api.GET("/ice-servers", h.iceServers)

	authed := api.Group("", IdentityMiddleware(deps.Verifier))
	authed.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("sid", c.GetString(clientTokenKey)).Msg("ws signal endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	authed.GET("/rooms", h.listRooms)
	authed.GET("/rooms/:id/members", h.roomMembers)

	authed.GET("/channels", h.listChannels)
	authed.POST("/channels", h.createChannel)
	authed.POST("/channels/seed", h.seedChannels)
	authed.GET("/channels/:id", h.getChannel)
	authed.DELETE("/channels/:id", h.deleteChannel)
	authed.GET("/channels/:id/messages", h.listMessages)
	authed.POST("/channels/:id/messages", h.createMessage)

	authed.PUT("/messages/:id", h.updateMessage)
	authed.DELETE("/messages/:id", h.deleteMessage)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

func iceServers(urls []string) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		out = append(out, webrtc.ICEServer{URLs: []string{u}})
	}
	return out
}
