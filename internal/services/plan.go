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

// BillingEvent is the normalized shape of a billing webhook payload. The
// webhook handler extracts these fields; signature verification happens at
// the edge before this service runs.
type BillingEvent struct {
	Type             string `json:"type"`
	CustomerID       string `json:"customer_id"`
	SubscriptionID   string `json:"subscription_id"`
	Tier             string `json:"tier"`
	MinutesUsed      *int   `json:"minutes_used,omitempty"`
	MinutesLimit     *int   `json:"minutes_limit,omitempty"`
	PhoneNumberLimit *int   `json:"phone_number_limit,omitempty"`
}

const (
	BillingEventCheckoutCompleted   = "checkout.session.completed"
	BillingEventSubscriptionUpdated = "customer.subscription.updated"
	BillingEventSubscriptionDeleted = "customer.subscription.deleted"
	BillingEventUsageReported       = "usage.reported"
)

type PlanService interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*types.UserPlan, error)
	ApplyBillingEvent(ctx context.Context, ev BillingEvent) (*types.UserPlan, error)
}

type planService struct {
	db           *gorm.DB
	log          *logger.Logger
	userPlanRepo repos.UserPlanRepo
	notifier     Notifier
}

func NewPlanService(db *gorm.DB, log *logger.Logger, userPlanRepo repos.UserPlanRepo, notifier Notifier) PlanService {
	serviceLog := log.With("service", "PlanService")
	return &planService{
		db:           db,
		log:          serviceLog,
		userPlanRepo: userPlanRepo,
		notifier:     notifier,
	}
}

// Tier limits are the source of truth for what a webhook event implies unless
// the event carries explicit overrides.
func applyTierDefaults(plan *types.UserPlan) {
	switch plan.Tier {
	case types.PlanTierPro:
		plan.MinutesLimit = 500
		plan.PhoneNumberLimit = 3
	case types.PlanTierTeam:
		plan.MinutesLimit = 2000
		plan.PhoneNumberLimit = 10
	default:
		plan.Tier = types.PlanTierFree
		plan.MinutesLimit = 30
		plan.PhoneNumberLimit = 1
	}
}

func (ps *planService) GetByUser(ctx context.Context, userID uuid.UUID) (*types.UserPlan, error) {
	return ps.userPlanRepo.GetByUserID(ctx, nil, userID)
}

// ApplyBillingEvent reconciles the local plan row against a webhook event.
// Events are idempotent: replaying one converges on the same row state.
func (ps *planService) ApplyBillingEvent(ctx context.Context, ev BillingEvent) (*types.UserPlan, error) {
	if strings.TrimSpace(ev.CustomerID) == "" {
		return nil, fmt.Errorf("%w: billing event missing customer id", apperr.ErrInvalidArgument)
	}

	plan, pErr := ps.userPlanRepo.GetByStripeCustomerID(ctx, nil, ev.CustomerID)
	if pErr != nil {
		return nil, fmt.Errorf("failed to load plan for customer %s: %w", ev.CustomerID, pErr)
	}

	switch ev.Type {
	case BillingEventCheckoutCompleted, BillingEventSubscriptionUpdated:
		if strings.TrimSpace(ev.Tier) != "" {
			plan.Tier = ev.Tier
		}
		if strings.TrimSpace(ev.SubscriptionID) != "" {
			plan.StripeSubscriptionID = ev.SubscriptionID
		}
		applyTierDefaults(plan)
	case BillingEventSubscriptionDeleted:
		plan.Tier = types.PlanTierFree
		plan.StripeSubscriptionID = ""
		applyTierDefaults(plan)
	case BillingEventUsageReported:
		// limits untouched, only counters move
	default:
		ps.log.Info("Ignoring unhandled billing event type", "type", ev.Type)
		return plan, nil
	}

	if ev.MinutesUsed != nil {
		plan.MinutesUsed = *ev.MinutesUsed
	}
	if ev.MinutesLimit != nil {
		plan.MinutesLimit = *ev.MinutesLimit
	}
	if ev.PhoneNumberLimit != nil {
		plan.PhoneNumberLimit = *ev.PhoneNumberLimit
	}

	if uErr := ps.userPlanRepo.Update(ctx, nil, plan); uErr != nil {
		return nil, fmt.Errorf("failed to persist plan for customer %s: %w", ev.CustomerID, uErr)
	}

	if ps.notifier != nil {
		ps.notifier.PlanUpdated(ctx, plan.UserID, plan.Tier)
	}
	return plan, nil
}
