package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxlane/voxlane-backend/internal/clients/twilio"
	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/repos"
	"github.com/voxlane/voxlane-backend/internal/types"
)

type PhoneNumberService interface {
	SearchAvailable(ctx context.Context, country string, areaCode string) ([]twilio.AvailableNumber, error)
	Purchase(ctx context.Context, userID uuid.UUID, number string) (*types.PhoneNumber, error)
	List(ctx context.Context, userID uuid.UUID) ([]*types.PhoneNumber, error)
	AssignToProject(ctx context.Context, userID uuid.UUID, phoneID uuid.UUID, projectID uuid.UUID, voiceAgentEnabled bool) (*types.PhoneNumber, error)
	Unassign(ctx context.Context, userID uuid.UUID, phoneID uuid.UUID) error
	Release(ctx context.Context, userID uuid.UUID, phoneID uuid.UUID) error
}

type phoneNumberService struct {
	db              *gorm.DB
	log             *logger.Logger
	phoneNumberRepo repos.PhoneNumberRepo
	projectRepo     repos.ProjectRepo
	userPlanRepo    repos.UserPlanRepo
	twilioClient    twilio.Client
	notifier        Notifier
	voiceURL        string
}

func NewPhoneNumberService(
	db *gorm.DB,
	log *logger.Logger,
	phoneNumberRepo repos.PhoneNumberRepo,
	projectRepo repos.ProjectRepo,
	userPlanRepo repos.UserPlanRepo,
	twilioClient twilio.Client,
	notifier Notifier,
	voiceURL string,
) PhoneNumberService {
	serviceLog := log.With("service", "PhoneNumberService")
	return &phoneNumberService{
		db:              db,
		log:             serviceLog,
		phoneNumberRepo: phoneNumberRepo,
		projectRepo:     projectRepo,
		userPlanRepo:    userPlanRepo,
		twilioClient:    twilioClient,
		notifier:        notifier,
		voiceURL:        voiceURL,
	}
}

func (pns *phoneNumberService) SearchAvailable(ctx context.Context, country string, areaCode string) ([]twilio.AvailableNumber, error) {
	if pns.twilioClient == nil {
		return nil, fmt.Errorf("telephony provider is not configured")
	}
	return pns.twilioClient.SearchAvailable(ctx, twilio.SearchRequest{
		Country:  country,
		AreaCode: areaCode,
		Limit:    20,
	})
}

// Purchase provisions the number upstream first, then records it in the pool.
// The plan's number limit is checked before spending money.
func (pns *phoneNumberService) Purchase(ctx context.Context, userID uuid.UUID, number string) (*types.PhoneNumber, error) {
	if pns.twilioClient == nil {
		return nil, fmt.Errorf("telephony provider is not configured")
	}

	plan, pErr := pns.userPlanRepo.GetByUserID(ctx, nil, userID)
	if pErr != nil {
		return nil, fmt.Errorf("failed to load plan: %w", pErr)
	}
	if plan.PhoneNumberCount >= plan.PhoneNumberLimit {
		return nil, fmt.Errorf("%w: phone number limit reached for tier %s", apperr.ErrConflict, plan.Tier)
	}

	purchased, tErr := pns.twilioClient.Purchase(ctx, twilio.PurchaseRequest{PhoneNumber: number})
	if tErr != nil {
		return nil, fmt.Errorf("failed to purchase number: %w", tErr)
	}

	row := &types.PhoneNumber{
		ID:          uuid.New(),
		UserID:      userID,
		Number:      purchased.PhoneNumber,
		ProviderSID: purchased.SID,
	}
	err := pns.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, cErr := pns.phoneNumberRepo.Create(ctx, tx, []*types.PhoneNumber{row}); cErr != nil {
			return cErr
		}
		return pns.userPlanRepo.IncrementPhoneNumberCount(ctx, tx, userID, 1)
	})
	if err != nil {
		// The upstream number exists but we failed to record it. Release so
		// the user is not billed for a number the platform lost track of.
		if rErr := pns.twilioClient.Release(ctx, purchased.SID); rErr != nil {
			pns.log.Error("Failed to release number after store failure, manual cleanup needed",
				"sid", purchased.SID, "number", purchased.PhoneNumber, "error", rErr)
		}
		return nil, err
	}
	return row, nil
}

func (pns *phoneNumberService) List(ctx context.Context, userID uuid.UUID) ([]*types.PhoneNumber, error) {
	return pns.phoneNumberRepo.ListByUser(ctx, nil, userID)
}

func (pns *phoneNumberService) getOwned(ctx context.Context, userID uuid.UUID, phoneID uuid.UUID) (*types.PhoneNumber, error) {
	num, err := pns.phoneNumberRepo.GetByID(ctx, nil, phoneID)
	if err != nil {
		return nil, err
	}
	if num.UserID != userID {
		return nil, fmt.Errorf("%w: phone number does not belong to user", apperr.ErrNotFound)
	}
	return num, nil
}

func (pns *phoneNumberService) AssignToProject(ctx context.Context, userID uuid.UUID, phoneID uuid.UUID, projectID uuid.UUID, voiceAgentEnabled bool) (*types.PhoneNumber, error) {
	num, err := pns.getOwned(ctx, userID, phoneID)
	if err != nil {
		return nil, err
	}
	project, pErr := pns.projectRepo.GetByID(ctx, nil, projectID)
	if pErr != nil {
		return nil, pErr
	}
	if project.UserID != userID {
		return nil, fmt.Errorf("%w: project does not belong to user", apperr.ErrNotFound)
	}

	if aErr := pns.phoneNumberRepo.Assign(ctx, nil, phoneID, projectID, voiceAgentEnabled); aErr != nil {
		return nil, aErr
	}

	if pns.twilioClient != nil && num.ProviderSID != "" && pns.voiceURL != "" {
		hookURL := fmt.Sprintf("%s?project_id=%s", pns.voiceURL, projectID)
		if _, vErr := pns.twilioClient.UpdateVoiceURL(ctx, num.ProviderSID, hookURL); vErr != nil {
			pns.log.Warn("Failed to point number at voice webhook", "sid", num.ProviderSID, "error", vErr)
		}
	}

	if pns.notifier != nil {
		pns.notifier.PhoneNumberAssigned(ctx, userID, projectID, num.Number)
	}
	return pns.phoneNumberRepo.GetByID(ctx, nil, phoneID)
}

func (pns *phoneNumberService) Unassign(ctx context.Context, userID uuid.UUID, phoneID uuid.UUID) error {
	if _, err := pns.getOwned(ctx, userID, phoneID); err != nil {
		return err
	}
	return pns.phoneNumberRepo.Unassign(ctx, nil, phoneID)
}

// Release gives the number back to the provider and removes the local row.
func (pns *phoneNumberService) Release(ctx context.Context, userID uuid.UUID, phoneID uuid.UUID) error {
	num, err := pns.getOwned(ctx, userID, phoneID)
	if err != nil {
		return err
	}

	if pns.twilioClient != nil && num.ProviderSID != "" {
		if rErr := pns.twilioClient.Release(ctx, num.ProviderSID); rErr != nil {
			return fmt.Errorf("failed to release number upstream: %w", rErr)
		}
	}

	err = pns.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dErr := pns.phoneNumberRepo.Delete(ctx, tx, phoneID); dErr != nil {
			return dErr
		}
		return pns.userPlanRepo.IncrementPhoneNumberCount(ctx, tx, userID, -1)
	})
	if err != nil {
		return err
	}

	if pns.notifier != nil {
		pns.notifier.PhoneNumberReleased(ctx, userID, num.Number)
	}
	return nil
}
