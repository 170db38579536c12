package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/voxlane/voxlane-backend/internal/catalog"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/realtime"
	"github.com/voxlane/voxlane-backend/internal/services"
)

type Services struct {
	Bucket        services.BucketService
	Avatar        services.AvatarService
	Auth          services.AuthService
	Notifier      services.Notifier
	ProjectConfig services.ProjectConfigService
	Project       services.ProjectService
	Function      services.FunctionService
	FunctionGen   services.FunctionGenService
	Chat          services.ChatService
	PhoneNumber   services.PhoneNumberService
	Plan          services.PlanService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, hub *realtime.Hub, clients Clients) (Services, error) {
	log.Info("Wiring services...")

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return Services{}, fmt.Errorf("load provider catalog: %w", err)
	}

	bucketService, bErr := services.NewBucketService(log)
	if bErr != nil {
		log.Warn("BucketService unavailable, file uploads disabled", "error", bErr)
	}

	var avatarService services.AvatarService
	if bucketService != nil {
		avatarService, err = services.NewAvatarService(log, bucketService)
		if err != nil {
			log.Warn("AvatarService unavailable, registrations proceed without avatars", "error", err)
			avatarService = nil
		}
	}

	notifier := services.NewNotifier(log, hub, clients.Bus)

	authService := services.NewAuthService(
		db, log,
		reposet.User, reposet.UserToken, reposet.UserPlan,
		avatarService,
		cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
	)

	configService := services.NewProjectConfigService(db, log, reposet.Project, reposet.ProjectData, cat, notifier)
	projectService := services.NewProjectService(db, log, reposet.Project, reposet.PhoneNumber, configService, notifier)

	functionService := services.NewFunctionService(log)
	functionGenService := services.NewFunctionGenService(log, clients.OpenAI)

	chatService := services.NewChatService(log, chatStreamers(clients))

	phoneService := services.NewPhoneNumberService(
		db, log,
		reposet.PhoneNumber, reposet.Project, reposet.UserPlan,
		clients.Twilio, notifier, cfg.VoiceWebhookURL,
	)

	planService := services.NewPlanService(db, log, reposet.UserPlan, notifier)

	return Services{
		Bucket:        bucketService,
		Avatar:        avatarService,
		Auth:          authService,
		Notifier:      notifier,
		ProjectConfig: configService,
		Project:       projectService,
		Function:      functionService,
		FunctionGen:   functionGenService,
		Chat:          chatService,
		PhoneNumber:   phoneService,
		Plan:          planService,
	}, nil
}
