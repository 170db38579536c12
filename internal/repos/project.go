package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/types"
)

type ProjectRepo interface {
	Create(ctx context.Context, tx *gorm.DB, projects []*types.Project) ([]*types.Project, error)
	GetByID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.Project, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Project, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, status string) error
	SoftDelete(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error
	HardDelete(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error
}

type projectRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectRepo(db *gorm.DB, baseLog *logger.Logger) ProjectRepo {
	repoLog := baseLog.With("repo", "ProjectRepo")
	return &projectRepo{db: db, log: repoLog}
}

func (r *projectRepo) Create(ctx context.Context, tx *gorm.DB, projects []*types.Project) ([]*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(projects) == 0 {
		return []*types.Project{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&projects).Error; err != nil {
		return nil, apperr.ClassifyStore("project.create", err)
	}
	return projects, nil
}

func (r *projectRepo) GetByID(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Project
	if err := transaction.WithContext(ctx).
		Where("id = ?", projectID).
		First(&result).Error; err != nil {
		return nil, apperr.ClassifyStore("project.get_by_id", err)
	}
	return &result, nil
}

func (r *projectRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Project, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Project
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, apperr.ClassifyStore("project.list_by_user", err)
	}
	return results, nil
}

func (r *projectRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.Project{}).
		Where("id = ?", projectID).
		Update("status", status)
	if res.Error != nil {
		return apperr.ClassifyStore("project.update_status", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ClassifyStore("project.update_status", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *projectRepo) SoftDelete(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).
		Where("id = ?", projectID).
		Delete(&types.Project{}).Error; err != nil {
		return apperr.ClassifyStore("project.soft_delete", err)
	}
	return nil
}

func (r *projectRepo) HardDelete(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).
		Unscoped().
		Where("id = ?", projectID).
		Delete(&types.Project{}).Error; err != nil {
		return apperr.ClassifyStore("project.hard_delete", err)
	}
	return nil
}
