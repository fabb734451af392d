package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/meshcall/meshcall-server/internal/auth"
	"github.com/meshcall/meshcall-server/internal/config"
	"github.com/meshcall/meshcall-server/internal/core"
	"github.com/meshcall/meshcall-server/internal/store"
)

// NewServer builds the HTTP server: health, guest identity, call history
// REST and the signaling WebSocket endpoint.
func NewServer(coordinator *core.Coordinator, channel *core.LocalChannel, authService *auth.Service, history store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	authHandlers := NewAuthHandlers(authService, logger)
	router.POST("/api/auth/guest", authHandlers.Guest)

	if history != nil {
		callsHandlers := NewCallsHandlers(history, logger)
		api := router.Group("/api", AuthMiddleware(authService, logger))
		api.GET("/calls/active", callsHandlers.ListActiveCalls)
		api.GET("/calls/:id", callsHandlers.GetCall)
	}

	wsHandler := NewWSHandler(coordinator, channel, authService, logger)
	router.GET("/ws", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
