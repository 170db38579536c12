package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/voxlane/voxlane-backend/internal/handlers"
	"github.com/voxlane/voxlane-backend/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins     []string
	AuthHandler        *handlers.AuthHandler
	AuthMiddleware     *middleware.AuthMiddleware
	UserHandler        *handlers.UserHandler
	ProjectHandler     *handlers.ProjectHandler
	ConfigHandler      *handlers.ConfigHandler
	FunctionHandler    *handlers.FunctionHandler
	ChatHandler        *handlers.ChatHandler
	PhoneNumberHandler *handlers.PhoneNumberHandler
	PlanHandler        *handlers.PlanHandler
	RealtimeHandler    *handlers.RealtimeHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("voxlane-backend"))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.Healthcheck)
	api := router.Group("/api")
	{
		api.POST("/register", cfg.AuthHandler.Register)
		api.POST("/login", cfg.AuthHandler.Login)
		api.POST("/billing/webhook", cfg.PlanHandler.BillingWebhook)
	}

	// ===============
	// || Protected ||
	// ===============
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// Auth
	protected.POST("/refresh", cfg.AuthHandler.Refresh)
	protected.POST("/logout", cfg.AuthHandler.Logout)
	// User
	protected.GET("/user", cfg.UserHandler.GetMe)
	protected.GET("/plan", cfg.PlanHandler.Get)
	// Projects
	protected.POST("/projects", cfg.ProjectHandler.Create)
	protected.GET("/projects", cfg.ProjectHandler.List)
	protected.GET("/projects/:id", cfg.ProjectHandler.Get)
	protected.POST("/projects/:id/archive", cfg.ProjectHandler.Archive)
	protected.POST("/projects/:id/unarchive", cfg.ProjectHandler.Unarchive)
	protected.DELETE("/projects/:id", cfg.ProjectHandler.Delete)
	// Project config
	protected.GET("/projects/:id/config", cfg.ConfigHandler.GetActive)
	protected.PUT("/projects/:id/config", cfg.ConfigHandler.Update)
	protected.GET("/projects/:id/config/history", cfg.ConfigHandler.History)
	protected.POST("/projects/:id/config/revert", cfg.ConfigHandler.Revert)
	// Functions
	protected.POST("/functions/test", cfg.FunctionHandler.Test)
	protected.POST("/functions/generate", cfg.FunctionHandler.Generate)
	// Chat
	protected.POST("/chat", cfg.ChatHandler.Stream)
	// Phone numbers
	protected.GET("/phone-numbers/search", cfg.PhoneNumberHandler.Search)
	protected.POST("/phone-numbers", cfg.PhoneNumberHandler.Purchase)
	protected.GET("/phone-numbers", cfg.PhoneNumberHandler.List)
	protected.POST("/phone-numbers/:id/assign", cfg.PhoneNumberHandler.Assign)
	protected.POST("/phone-numbers/:id/unassign", cfg.PhoneNumberHandler.Unassign)
	protected.DELETE("/phone-numbers/:id", cfg.PhoneNumberHandler.Release)
	// Realtime
	protected.GET("/realtime/stream", cfg.RealtimeHandler.Stream)
	protected.POST("/realtime/subscribe", cfg.RealtimeHandler.Subscribe)
	protected.POST("/realtime/unsubscribe", cfg.RealtimeHandler.Unsubscribe)

	return router
}
