package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"notify-service/internal/api/handlers"
	"notify-service/internal/api/middleware"
	"notify-service/internal/auth"
	"notify-service/internal/dispatch"
	"notify-service/internal/registry"
	"notify-service/internal/ws"
)

type Router struct {
	engine        *gin.Engine
	wsHandler     *ws.Handler
	notifyHandler *handlers.NotifyHandler
	statusHandler *handlers.StatusHandler
	authMW        *middleware.AuthMiddleware
}

func NewRouter(
	wsHandler *ws.Handler,
	dispatcher *dispatch.Dispatcher,
	reg *registry.Registry,
	verifier auth.Verifier,
	allowedOrigins []string,
	logger *slog.Logger,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(allowedOrigins))
	engine.Use(middleware.AccessLog(logger))

	return &Router{
		engine:        engine,
		wsHandler:     wsHandler,
		notifyHandler: handlers.NewNotifyHandler(dispatcher),
		statusHandler: handlers.NewStatusHandler(reg),
		authMW:        middleware.NewAuthMiddleware(verifier, logger),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.engine.Group("/api/v1")

	// The upgrade endpoint authenticates via query parameter inside the
	// handler; middleware auth would reject browsers before the handshake.
	api.GET("/ws", r.wsHandler.Serve)

	authed := api.Group("/")
	authed.Use(r.authMW.RequireAuth())
	{
		authed.POST("/notifications", r.notifyHandler.Notify)
		authed.GET("/status", r.authMW.RequireRole("admin"), r.statusHandler.Status)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
