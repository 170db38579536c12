package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/types"
)

type PhoneNumberRepo interface {
	Create(ctx context.Context, tx *gorm.DB, numbers []*types.PhoneNumber) ([]*types.PhoneNumber, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.PhoneNumber, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.PhoneNumber, error)
	ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.PhoneNumber, error)
	Assign(ctx context.Context, tx *gorm.DB, id uuid.UUID, projectID uuid.UUID, voiceAgentEnabled bool) error
	Unassign(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type phoneNumberRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPhoneNumberRepo(db *gorm.DB, baseLog *logger.Logger) PhoneNumberRepo {
	repoLog := baseLog.With("repo", "PhoneNumberRepo")
	return &phoneNumberRepo{db: db, log: repoLog}
}

func (r *phoneNumberRepo) Create(ctx context.Context, tx *gorm.DB, numbers []*types.PhoneNumber) ([]*types.PhoneNumber, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(numbers) == 0 {
		return []*types.PhoneNumber{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&numbers).Error; err != nil {
		return nil, apperr.ClassifyStore("phone_number.create", err)
	}
	return numbers, nil
}

func (r *phoneNumberRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.PhoneNumber, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.PhoneNumber
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, apperr.ClassifyStore("phone_number.get_by_id", err)
	}
	return &result, nil
}

func (r *phoneNumberRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.PhoneNumber, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PhoneNumber
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, apperr.ClassifyStore("phone_number.list_by_user", err)
	}
	return results, nil
}

func (r *phoneNumberRepo) ListByProject(ctx context.Context, tx *gorm.DB, projectID uuid.UUID) ([]*types.PhoneNumber, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.PhoneNumber
	if err := transaction.WithContext(ctx).
		Where("project_id = ?", projectID).
		Find(&results).Error; err != nil {
		return nil, apperr.ClassifyStore("phone_number.list_by_project", err)
	}
	return results, nil
}

func (r *phoneNumberRepo) Assign(ctx context.Context, tx *gorm.DB, id uuid.UUID, projectID uuid.UUID, voiceAgentEnabled bool) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.PhoneNumber{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"project_id":          projectID,
			"voice_agent_enabled": voiceAgentEnabled,
		})
	if res.Error != nil {
		return apperr.ClassifyStore("phone_number.assign", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ClassifyStore("phone_number.assign", gorm.ErrRecordNotFound)
	}
	return nil
}

// Unassign returns the number to the pool and clears dependent flags.
func (r *phoneNumberRepo) Unassign(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).
		Model(&types.PhoneNumber{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"project_id":          nil,
			"voice_agent_enabled": false,
		})
	if res.Error != nil {
		return apperr.ClassifyStore("phone_number.unassign", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ClassifyStore("phone_number.unassign", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *phoneNumberRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.PhoneNumber{}).Error; err != nil {
		return apperr.ClassifyStore("phone_number.delete", err)
	}
	return nil
}
