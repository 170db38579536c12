package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/voxlane/voxlane-backend/internal/catalog"
	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/repos"
	"github.com/voxlane/voxlane-backend/internal/types"
)

// failingPhoneRepo wraps the real repo and fails Unassign for chosen ids.
type failingPhoneRepo struct {
	repos.PhoneNumberRepo
	failIDs    map[uuid.UUID]bool
	unassigned []uuid.UUID
}

func (f *failingPhoneRepo) Unassign(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if f.failIDs[id] {
		return fmt.Errorf("simulated unassign failure")
	}
	f.unassigned = append(f.unassigned, id)
	return f.PhoneNumberRepo.Unassign(ctx, tx, id)
}

func newProjectService(t *testing.T, db *gorm.DB, phoneRepo repos.PhoneNumberRepo) ProjectService {
	t.Helper()
	log := logger.NewNop()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	projRepo := repos.NewProjectRepo(db, log)
	dataRepo := repos.NewProjectDataRepo(db, log)
	cfgSvc := NewProjectConfigService(db, log, projRepo, dataRepo, cat, nil)
	return NewProjectService(db, log, projRepo, phoneRepo, cfgSvc, nil)
}

func TestProjectCreateWritesInitialConfig(t *testing.T) {
	db := openTestDB(t)
	svc := newProjectService(t, db, repos.NewPhoneNumberRepo(db, logger.NewNop()))
	userID := uuid.New()

	project, config, err := svc.Create(context.Background(), userID, "booking agent", "you book tables", ConfigInput{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if project.Status != types.ProjectStatusActive {
		t.Fatalf("status = %q, want active", project.Status)
	}
	if config.Version != 1 || !config.IsActive {
		t.Fatalf("config version=%d active=%v, want 1/true", config.Version, config.IsActive)
	}
	if config.Prompt != "you book tables" {
		t.Fatalf("config prompt = %q, want the initial prompt", config.Prompt)
	}
	if n := countActive(t, db, project.ID); n != 1 {
		t.Fatalf("active config rows = %d, want 1", n)
	}
}

func TestProjectGetEnforcesOwnership(t *testing.T) {
	db := openTestDB(t)
	svc := newProjectService(t, db, repos.NewPhoneNumberRepo(db, logger.NewNop()))

	project, _, err := svc.Create(context.Background(), uuid.New(), "mine", "", ConfigInput{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Get(context.Background(), uuid.New(), project.ID); err == nil {
		t.Fatalf("Get by a different user should fail")
	}
}

func TestProjectHardDeleteUnassignsNumbersBestEffort(t *testing.T) {
	db := openTestDB(t)
	log := logger.NewNop()
	realPhoneRepo := repos.NewPhoneNumberRepo(db, log)
	phoneRepo := &failingPhoneRepo{PhoneNumberRepo: realPhoneRepo, failIDs: map[uuid.UUID]bool{}}
	svc := newProjectService(t, db, phoneRepo)
	userID := uuid.New()

	project, _, err := svc.Create(context.Background(), userID, "doomed", "", ConfigInput{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		num := &types.PhoneNumber{
			ID:        uuid.New(),
			UserID:    userID,
			ProjectID: &project.ID,
			Number:    fmt.Sprintf("+1555000000%d", i),
		}
		if _, cErr := realPhoneRepo.Create(context.Background(), nil, []*types.PhoneNumber{num}); cErr != nil {
			t.Fatalf("failed to seed phone number: %v", cErr)
		}
		ids[i] = num.ID
	}
	// The middle number refuses to unassign.
	phoneRepo.failIDs[ids[1]] = true

	if err := svc.HardDelete(context.Background(), userID, project.ID); err != nil {
		t.Fatalf("HardDelete failed: %v", err)
	}

	if len(phoneRepo.unassigned) != 2 {
		t.Fatalf("unassigned %d numbers, want 2 despite one failure", len(phoneRepo.unassigned))
	}
	for _, id := range []uuid.UUID{ids[0], ids[2]} {
		num, gErr := realPhoneRepo.GetByID(context.Background(), nil, id)
		if gErr != nil {
			t.Fatalf("failed to reload number: %v", gErr)
		}
		if num.ProjectID != nil {
			t.Fatalf("number %s still assigned after delete", num.Number)
		}
		if num.VoiceAgentEnabled {
			t.Fatalf("number %s still has voice agent enabled", num.Number)
		}
	}

	var count int64
	if err := db.Unscoped().Model(&types.Project{}).Where("id = ?", project.ID).Count(&count).Error; err != nil {
		t.Fatalf("failed to count projects: %v", err)
	}
	if count != 0 {
		t.Fatalf("project row survived hard delete")
	}
}

func TestProjectArchiveRoundTrip(t *testing.T) {
	db := openTestDB(t)
	svc := newProjectService(t, db, repos.NewPhoneNumberRepo(db, logger.NewNop()))
	userID := uuid.New()

	project, _, err := svc.Create(context.Background(), userID, "seasonal", "", ConfigInput{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := svc.Archive(context.Background(), userID, project.ID); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	got, err := svc.Get(context.Background(), userID, project.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != types.ProjectStatusArchived {
		t.Fatalf("status = %q, want archived", got.Status)
	}

	if err := svc.Unarchive(context.Background(), userID, project.ID); err != nil {
		t.Fatalf("Unarchive failed: %v", err)
	}
	got, err = svc.Get(context.Background(), userID, project.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != types.ProjectStatusActive {
		t.Fatalf("status = %q, want active", got.Status)
	}
}

func TestProjectCreateRequiresName(t *testing.T) {
	db := openTestDB(t)
	svc := newProjectService(t, db, repos.NewPhoneNumberRepo(db, logger.NewNop()))

	_, _, err := svc.Create(context.Background(), uuid.New(), "   ", "", ConfigInput{})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument for blank name", err)
	}
}
