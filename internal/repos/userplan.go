package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/types"
)

type UserPlanRepo interface {
	Create(ctx context.Context, tx *gorm.DB, plans []*types.UserPlan) ([]*types.UserPlan, error)
	GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserPlan, error)
	GetByStripeCustomerID(ctx context.Context, tx *gorm.DB, customerID string) (*types.UserPlan, error)
	Update(ctx context.Context, tx *gorm.DB, plan *types.UserPlan) error
	IncrementPhoneNumberCount(ctx context.Context, tx *gorm.DB, userID uuid.UUID, delta int) error
}

type userPlanRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserPlanRepo(db *gorm.DB, baseLog *logger.Logger) UserPlanRepo {
	repoLog := baseLog.With("repo", "UserPlanRepo")
	return &userPlanRepo{db: db, log: repoLog}
}

func (r *userPlanRepo) Create(ctx context.Context, tx *gorm.DB, plans []*types.UserPlan) ([]*types.UserPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(plans) == 0 {
		return []*types.UserPlan{}, nil
	}
	if err := transaction.WithContext(ctx).Create(&plans).Error; err != nil {
		return nil, apperr.ClassifyStore("user_plan.create", err)
	}
	return plans, nil
}

func (r *userPlanRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.UserPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.UserPlan
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&result).Error; err != nil {
		return nil, apperr.ClassifyStore("user_plan.get_by_user_id", err)
	}
	return &result, nil
}

func (r *userPlanRepo) GetByStripeCustomerID(ctx context.Context, tx *gorm.DB, customerID string) (*types.UserPlan, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.UserPlan
	if err := transaction.WithContext(ctx).
		Where("stripe_customer_id = ?", customerID).
		First(&result).Error; err != nil {
		return nil, apperr.ClassifyStore("user_plan.get_by_stripe_customer_id", err)
	}
	return &result, nil
}

func (r *userPlanRepo) Update(ctx context.Context, tx *gorm.DB, plan *types.UserPlan) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Save(plan).Error; err != nil {
		return apperr.ClassifyStore("user_plan.update", err)
	}
	return nil
}

func (r *userPlanRepo) IncrementPhoneNumberCount(ctx context.Context, tx *gorm.DB, userID uuid.UUID, delta int) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).
		Model(&types.UserPlan{}).
		Where("user_id = ?", userID).
		Update("phone_number_count", gorm.Expr("phone_number_count + ?", delta)).Error; err != nil {
		return apperr.ClassifyStore("user_plan.increment_phone_number_count", err)
	}
	return nil
}
