package app

import (
	"github.com/voxlane/voxlane-backend/internal/handlers"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/realtime"
)

type Handlers struct {
	Auth        *handlers.AuthHandler
	User        *handlers.UserHandler
	Project     *handlers.ProjectHandler
	Config      *handlers.ConfigHandler
	Function    *handlers.FunctionHandler
	Chat        *handlers.ChatHandler
	PhoneNumber *handlers.PhoneNumberHandler
	Plan        *handlers.PlanHandler
	Realtime    *handlers.RealtimeHandler
}

func wireHandlers(log *logger.Logger, reposet Repos, serviceset Services, hub *realtime.Hub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Auth:        handlers.NewAuthHandler(serviceset.Auth),
		User:        handlers.NewUserHandler(reposet.User),
		Project:     handlers.NewProjectHandler(serviceset.Project),
		Config:      handlers.NewConfigHandler(serviceset.Project, serviceset.ProjectConfig),
		Function:    handlers.NewFunctionHandler(serviceset.Function, serviceset.FunctionGen),
		Chat:        handlers.NewChatHandler(serviceset.Chat),
		PhoneNumber: handlers.NewPhoneNumberHandler(serviceset.PhoneNumber),
		Plan:        handlers.NewPlanHandler(serviceset.Plan),
		Realtime:    handlers.NewRealtimeHandler(log, hub),
	}
}
