package router

import (
	"net/http"

	conversationapi "tabletop-chat/backend/conversation/api"
	gameapi "tabletop-chat/backend/game/api"
	"tabletop-chat/backend/pkg/di"
	"tabletop-chat/backend/pkg/errors"
	"tabletop-chat/backend/pkg/logger"
	"tabletop-chat/backend/pkg/middleware"
	"tabletop-chat/backend/realtime"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Container   *di.Container
	Logger      *logger.Logger
	rateLimiter *middleware.RateLimiter
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	cfg := container.Config

	// Configure Gin mode based on environment
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	// Request ids first so the request logger picks them up
	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(container.Logger, "/health", "/api/health", "/api/v1/health", "/metrics"))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(middleware.CORS(cfg.Security.AllowedOrigins))

	opts := middleware.DefaultRateLimiterOptions()
	opts.Limit = rate.Limit(cfg.Security.RateLimit)
	opts.Burst = cfg.Security.RateLimitBurst

	return &Router{
		Engine:      engine,
		Container:   container,
		Logger:      container.Logger,
		rateLimiter: middleware.NewRateLimiter(container.Logger, opts),
	}
}

// SetupRoutes registers all application routes. Request validation, when a
// schema is configured, is installed before any route.
func (r *Router) SetupRoutes() {
	if path := r.Container.Config.OpenAPI.SchemaPath; path != "" {
		r.AddOpenAPIValidation(path)
	}

	c := r.Container
	gameHandler := gameapi.NewGameHandler(c.GameService)
	messageHandler := conversationapi.NewMessageHandler(c.Workflow, c.MessageService, c.GameRepository)
	write := r.rateLimiter.Middleware()

	// Unversioned routes are the ones the web client uses
	gameapi.RegisterRoutes(r.Engine, gameHandler, write)
	conversationapi.RegisterRoutes(r.Engine, messageHandler, write)

	v1 := r.Engine.Group("/api/v1")
	gameapi.RegisterRoutes(v1, gameHandler, write)
	conversationapi.RegisterRoutes(v1, messageHandler, write)

	health := c.Health.Handler()
	r.Engine.GET("/health", health)
	r.Engine.GET("/api/health", health)
	v1.GET("/health", health)

	if c.Config.Server.MetricsEnabled {
		r.Engine.GET("/metrics", gin.WrapH(c.Metrics.Handler()))
	}

	r.Engine.GET("/ws", realtime.ServeWS(c.Hub, c.Config.Security.AllowedOrigins))

	r.Engine.NoRoute(func(ctx *gin.Context) {
		_ = ctx.Error(errors.NewError(http.StatusNotFound, "NOT_FOUND", "Route not found"))
	})
}

// Stop releases the router's background resources
func (r *Router) Stop() {
	r.rateLimiter.Stop()
}
