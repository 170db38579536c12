package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/repos"
	"github.com/voxlane/voxlane-backend/internal/types"
)

type ProjectService interface {
	Create(ctx context.Context, userID uuid.UUID, name string, initialPrompt string, cfg ConfigInput) (*types.Project, *types.ProjectData, error)
	Get(ctx context.Context, userID uuid.UUID, projectID uuid.UUID) (*types.Project, error)
	List(ctx context.Context, userID uuid.UUID) ([]*types.Project, error)
	Archive(ctx context.Context, userID uuid.UUID, projectID uuid.UUID) error
	Unarchive(ctx context.Context, userID uuid.UUID, projectID uuid.UUID) error
	SoftDelete(ctx context.Context, userID uuid.UUID, projectID uuid.UUID) error
	HardDelete(ctx context.Context, userID uuid.UUID, projectID uuid.UUID) error
}

type projectService struct {
	db              *gorm.DB
	log             *logger.Logger
	projectRepo     repos.ProjectRepo
	phoneNumberRepo repos.PhoneNumberRepo
	configService   ProjectConfigService
	notifier        Notifier
}

func NewProjectService(
	db *gorm.DB,
	log *logger.Logger,
	projectRepo repos.ProjectRepo,
	phoneNumberRepo repos.PhoneNumberRepo,
	configService ProjectConfigService,
	notifier Notifier,
) ProjectService {
	serviceLog := log.With("service", "ProjectService")
	return &projectService{
		db:              db,
		log:             serviceLog,
		projectRepo:     projectRepo,
		phoneNumberRepo: phoneNumberRepo,
		configService:   configService,
		notifier:        notifier,
	}
}

// Create inserts the project and its version-1 configuration in one
// transaction so a project is never observable without an active config.
func (ps *projectService) Create(ctx context.Context, userID uuid.UUID, name string, initialPrompt string, cfg ConfigInput) (*types.Project, *types.ProjectData, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, fmt.Errorf("%w: project name required", apperr.ErrInvalidArgument)
	}

	project := &types.Project{
		ID:            uuid.New(),
		UserID:        userID,
		Name:          name,
		InitialPrompt: strings.TrimSpace(initialPrompt),
		Status:        types.ProjectStatusActive,
	}
	if cfg.Prompt == nil && project.InitialPrompt != "" {
		cfg.Prompt = &project.InitialPrompt
	}

	var config *types.ProjectData
	err := ps.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, cErr := ps.projectRepo.Create(ctx, tx, []*types.Project{project}); cErr != nil {
			return fmt.Errorf("failed to create project: %w", cErr)
		}
		created, cfgErr := ps.configService.Create(ctx, tx, project.ID, cfg)
		if cfgErr != nil {
			return fmt.Errorf("failed to create initial config: %w", cfgErr)
		}
		config = created
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if ps.notifier != nil {
		ps.notifier.ProjectCreated(ctx, userID, project.ID)
	}
	return project, config, nil
}

func (ps *projectService) Get(ctx context.Context, userID uuid.UUID, projectID uuid.UUID) (*types.Project, error) {
	project, err := ps.projectRepo.GetByID(ctx, nil, projectID)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, fmt.Errorf("%w: project does not belong to user", apperr.ErrNotFound)
	}
	return project, nil
}

func (ps *projectService) List(ctx context.Context, userID uuid.UUID) ([]*types.Project, error) {
	return ps.projectRepo.ListByUser(ctx, nil, userID)
}

func (ps *projectService) Archive(ctx context.Context, userID uuid.UUID, projectID uuid.UUID) error {
	if _, err := ps.Get(ctx, userID, projectID); err != nil {
		return err
	}
	return ps.projectRepo.UpdateStatus(ctx, nil, projectID, types.ProjectStatusArchived)
}

func (ps *projectService) Unarchive(ctx context.Context, userID uuid.UUID, projectID uuid.UUID) error {
	if _, err := ps.Get(ctx, userID, projectID); err != nil {
		return err
	}
	return ps.projectRepo.UpdateStatus(ctx, nil, projectID, types.ProjectStatusActive)
}

func (ps *projectService) SoftDelete(ctx context.Context, userID uuid.UUID, projectID uuid.UUID) error {
	if _, err := ps.Get(ctx, userID, projectID); err != nil {
		return err
	}
	if err := ps.projectRepo.UpdateStatus(ctx, nil, projectID, types.ProjectStatusDeleted); err != nil {
		return err
	}
	return ps.projectRepo.SoftDelete(ctx, nil, projectID)
}

// HardDelete unassigns every phone number still pointing at the project
// before removing it. The loop is best effort: a failure on one number is
// logged and the rest are still processed, so a single bad row cannot leave
// every other number pointing at a dead project.
func (ps *projectService) HardDelete(ctx context.Context, userID uuid.UUID, projectID uuid.UUID) error {
	if _, err := ps.Get(ctx, userID, projectID); err != nil {
		return err
	}

	numbers, nErr := ps.phoneNumberRepo.ListByProject(ctx, nil, projectID)
	if nErr != nil {
		return fmt.Errorf("failed to list phone numbers for project: %w", nErr)
	}
	var failed int
	for _, num := range numbers {
		if num == nil {
			continue
		}
		if uErr := ps.phoneNumberRepo.Unassign(ctx, nil, num.ID); uErr != nil {
			failed++
			ps.log.Warn("Failed to unassign phone number during project delete, continuing",
				"phone_number_id", num.ID, "number", num.Number, "error", uErr)
		}
	}
	if failed > 0 {
		ps.log.Warn("Some phone numbers could not be unassigned before delete",
			"project_id", projectID, "failed", failed, "total", len(numbers))
	}

	if err := ps.projectRepo.HardDelete(ctx, nil, projectID); err != nil {
		return err
	}

	if ps.notifier != nil {
		ps.notifier.ProjectDeleted(ctx, userID, projectID)
	}
	return nil
}
