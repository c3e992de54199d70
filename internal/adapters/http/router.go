package http

import (
	"context"
	"path/filepath"

	"github.com/dkeye/MeshCall/internal/adapters/signal"
	"github.com/dkeye/MeshCall/internal/config"
	"github.com/dkeye/MeshCall/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// SetupRouter wires the signaling endpoint, the static client and the
// read-only room API. ctx bounds every signaling channel.
func SetupRouter(ctx context.Context, cfg *config.Config, ctrl *signal.SignalWSController, m *metrics.Metrics) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	index := filepath.Join(cfg.StaticPath, "index.html")
	ws := func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("remote", c.ClientIP()).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	}

	r.Static("/static", cfg.StaticPath)
	r.GET("/ws", ws)
	// Browser clients dial the page URL itself.
	r.GET("/", func(c *gin.Context) {
		if websocket.IsWebSocketUpgrade(c.Request) {
			ws(c)
			return
		}
		c.File(index)
	})
	r.GET("/join/:room", func(c *gin.Context) {
		c.File(index)
	})

	rooms := roomsHandler{orch: ctrl.Orch}
	r.GET("/healthz", rooms.health)

	api := r.Group("/api")
	api.GET("/rooms", rooms.list)
	api.GET("/rooms/:name", rooms.get)

	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")
	return r
}
