package app

import (
	"github.com/gin-gonic/gin"

	"github.com/voxlane/voxlane-backend/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers, mw Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AllowedOrigins:     cfg.AllowedOrigins,
		AuthHandler:        handlerset.Auth,
		AuthMiddleware:     mw.Auth,
		UserHandler:        handlerset.User,
		ProjectHandler:     handlerset.Project,
		ConfigHandler:      handlerset.Config,
		FunctionHandler:    handlerset.Function,
		ChatHandler:        handlerset.Chat,
		PhoneNumberHandler: handlerset.PhoneNumber,
		PlanHandler:        handlerset.Plan,
		RealtimeHandler:    handlerset.Realtime,
	})
}
