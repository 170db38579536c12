package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/types"
)

// ProjectDataRepo accesses the append-only configuration version table.
// Rows are never updated in place except for the is_active flag flip.
type ProjectDataRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.ProjectData) ([]*types.ProjectData, error)
	GetActive(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectData, error)
	GetByVersion(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, version int) (*types.ProjectData, error)
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectData, error)
	MaxVersion(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (int, error)
	DeactivateAll(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error
	ActivateVersion(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, version int) error
}

type projectDataRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProjectDataRepo(db *gorm.DB, baseLog *logger.Logger) ProjectDataRepo {
	repoLog := baseLog.With("repo", "ProjectDataRepo")
	return &projectDataRepo{db: db, log: repoLog}
}

func (r *projectDataRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.ProjectData) ([]*types.ProjectData, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.ProjectData{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, apperr.ClassifyStore("project_data.create", err)
	}
	return rows, nil
}

// GetActive returns every row flagged active, highest version first. More
// than one element is a bug state the service layer logs and repairs.
func (r *projectDataRepo) GetActive(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectData, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ProjectData
	if err := transaction.WithContext(ctx).
		Where("project_id = ? AND is_active = ?", projectID, true).
		Order("version DESC").
		Find(&results).Error; err != nil {
		return nil, apperr.ClassifyStore("project_data.get_active", err)
	}
	return results, nil
}

func (r *projectDataRepo) GetByVersion(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, version int) (*types.ProjectData, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.ProjectData
	if err := transaction.WithContext(ctx).
		Where("project_id = ? AND version = ?", projectID, version).
		First(&result).Error; err != nil {
		return nil, apperr.ClassifyStore("project_data.get_by_version", err)
	}
	return &result, nil
}

func (r *projectDataRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.ProjectData, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.ProjectData
	if err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("version DESC").
		Find(&results).Error; err != nil {
		return nil, apperr.ClassifyStore("project_data.list_by_project", err)
	}
	return results, nil
}

func (r *projectDataRepo) MaxVersion(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var max *int
	if err := transaction.WithContext(ctx).
		Model(&types.ProjectData{}).
		Where("project_id = ?", projectID).
		Select("MAX(version)").
		Scan(&max).Error; err != nil {
		return 0, apperr.ClassifyStore("project_data.max_version", err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *projectDataRepo) DeactivateAll(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).
		Model(&types.ProjectData{}).
		Where("project_id = ? AND is_active = ?", projectID, true).
		Update("is_active", false).Error; err != nil {
		return apperr.ClassifyStore("project_data.deactivate_all", err)
	}
	return nil
}

func (r *projectDataRepo) ActivateVersion(ctx context.Context, tx *gorm.DB, projectID uuid.UUID, version int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.ProjectData{}).
		Where("project_id = ? AND version = ?", projectID, version).
		Update("is_active", true)
	if res.Error != nil {
		return apperr.ClassifyStore("project_data.activate_version", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ClassifyStore("project_data.activate_version", gorm.ErrRecordNotFound)
	}
	return nil
}
