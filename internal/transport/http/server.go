package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/boardcall/internal/config"
	"github.com/vovakirdan/boardcall/internal/service/calls"
)

// NewServer builds the HTTP server with the credential routes.
func NewServer(svc *calls.Service, cfg *config.Config, logger *zerolog.Logger) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(svc, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter wires middleware and routes onto a gin engine.
func NewRouter(svc *calls.Service, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(logger))
	r.Use(CORSMiddleware(cfg.CORSOrigin))

	r.GET("/health", healthHandler)

	auth := NewAuthHandlers(svc, logger)
	rtk := r.Group("/api/rtk")
	rtk.Use(RateLimitMiddleware(newRateLimiter(cfg.AuthRateLimit), logger))
	{
		rtk.POST("/auth", auth.HostAuth)
		rtk.POST("/audience-auth", auth.AudienceAuth)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Not found"})
	})

	return r
}

func healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
