package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/voxlane/voxlane-backend/internal/catalog"
	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/repos"
	"github.com/voxlane/voxlane-backend/internal/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.User{}, &types.Project{}, &types.ProjectData{}, &types.PhoneNumber{}, &types.UserPlan{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newConfigService(t *testing.T, db *gorm.DB) (ProjectConfigService, repos.ProjectDataRepo) {
	t.Helper()
	log := logger.NewNop()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("failed to load catalog: %v", err)
	}
	dataRepo := repos.NewProjectDataRepo(db, log)
	projRepo := repos.NewProjectRepo(db, log)
	return NewProjectConfigService(db, log, projRepo, dataRepo, cat, nil), dataRepo
}

func seedProject(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	p := &types.Project{ID: uuid.New(), UserID: uuid.New(), Name: "reception agent", Status: types.ProjectStatusActive}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("failed to seed project: %v", err)
	}
	return p.ID
}

func strPtr(s string) *string   { return &s }
func f64Ptr(f float64) *float64 { return &f }

func countActive(t *testing.T, db *gorm.DB, projectID uuid.UUID) int {
	t.Helper()
	var n int64
	if err := db.Model(&types.ProjectData{}).
		Where("project_id = ? AND is_active = ?", projectID, true).
		Count(&n).Error; err != nil {
		t.Fatalf("failed to count active rows: %v", err)
	}
	return int(n)
}

func TestConfigCreateUsesCatalogDefaults(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newConfigService(t, db)
	projectID := seedProject(t, db)

	row, err := svc.Create(context.Background(), nil, projectID, ConfigInput{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if row.Version != 1 || !row.IsActive {
		t.Fatalf("first version = %d active=%v, want 1/true", row.Version, row.IsActive)
	}
	if row.LLMProvider == "" || row.STTProvider == "" || row.TTSProvider == "" {
		t.Fatalf("defaults not applied: %+v", row)
	}
	if row.Temperature <= 0 {
		t.Fatalf("temperature = %v, want catalog default", row.Temperature)
	}
}

func TestConfigUpdateVersionMonotonicity(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newConfigService(t, db)
	projectID := seedProject(t, db)

	if _, err := svc.Create(context.Background(), nil, projectID, ConfigInput{Prompt: strPtr("v1 prompt")}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	prev := 1
	for i := 0; i < 4; i++ {
		row, err := svc.Update(context.Background(), projectID, ConfigInput{Temperature: f64Ptr(0.5)})
		if err != nil {
			t.Fatalf("Update %d failed: %v", i, err)
		}
		if row.Version != prev+1 {
			t.Fatalf("version = %d after update %d, want %d", row.Version, i, prev+1)
		}
		prev = row.Version
		if n := countActive(t, db, projectID); n != 1 {
			t.Fatalf("active rows = %d after update %d, want exactly 1", n, i)
		}
	}
}

func TestConfigUpdateMergesPreviousValues(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newConfigService(t, db)
	projectID := seedProject(t, db)

	if _, err := svc.Create(context.Background(), nil, projectID, ConfigInput{
		Prompt:      strPtr("greet callers warmly"),
		Temperature: f64Ptr(1.2),
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	row, err := svc.Update(context.Background(), projectID, ConfigInput{TTSVoice: strPtr("sonic-english")})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if row.Prompt != "greet callers warmly" {
		t.Fatalf("prompt = %q, want previous value carried forward", row.Prompt)
	}
	if row.Temperature != 1.2 {
		t.Fatalf("temperature = %v, want previous value carried forward", row.Temperature)
	}
	if row.TTSVoice != "sonic-english" {
		t.Fatalf("tts voice = %q, want updated value", row.TTSVoice)
	}
}

func TestConfigGetActiveRepairsZeroActive(t *testing.T) {
	db := openTestDB(t)
	svc, dataRepo := newConfigService(t, db)
	projectID := seedProject(t, db)

	if _, err := svc.Create(context.Background(), nil, projectID, ConfigInput{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Update(context.Background(), projectID, ConfigInput{Prompt: strPtr("second")}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// Simulate a crash between deactivate and insert.
	if err := dataRepo.DeactivateAll(context.Background(), nil, projectID); err != nil {
		t.Fatalf("DeactivateAll failed: %v", err)
	}
	if n := countActive(t, db, projectID); n != 0 {
		t.Fatalf("setup: active rows = %d, want 0", n)
	}

	row, err := svc.GetActive(context.Background(), projectID)
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if row.Version != 2 {
		t.Fatalf("repaired version = %d, want highest version 2", row.Version)
	}
	if n := countActive(t, db, projectID); n != 1 {
		t.Fatalf("active rows = %d after repair, want 1", n)
	}
}

func TestConfigUpdateRepairsZeroActive(t *testing.T) {
	db := openTestDB(t)
	svc, dataRepo := newConfigService(t, db)
	projectID := seedProject(t, db)

	if _, err := svc.Create(context.Background(), nil, projectID, ConfigInput{Prompt: strPtr("first")}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Update(context.Background(), projectID, ConfigInput{Prompt: strPtr("second")}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// Simulate a crash between deactivate and insert, then update without
	// going through GetActive first.
	if err := dataRepo.DeactivateAll(context.Background(), nil, projectID); err != nil {
		t.Fatalf("DeactivateAll failed: %v", err)
	}
	if n := countActive(t, db, projectID); n != 0 {
		t.Fatalf("setup: active rows = %d, want 0", n)
	}

	row, err := svc.Update(context.Background(), projectID, ConfigInput{Temperature: f64Ptr(0.3)})
	if err != nil {
		t.Fatalf("Update on zero-active state failed: %v", err)
	}
	if row.Version != 3 {
		t.Fatalf("version = %d, want max+1 = 3", row.Version)
	}
	if row.Prompt != "second" {
		t.Fatalf("prompt = %q, want merge against highest version", row.Prompt)
	}
	if !row.IsActive {
		t.Fatal("new version not flagged active")
	}
	if n := countActive(t, db, projectID); n != 1 {
		t.Fatalf("active rows = %d, want exactly 1", n)
	}
}

func TestConfigGetActiveRepairsMultiActive(t *testing.T) {
	db := openTestDB(t)
	svc, dataRepo := newConfigService(t, db)
	projectID := seedProject(t, db)

	if _, err := svc.Create(context.Background(), nil, projectID, ConfigInput{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Update(context.Background(), projectID, ConfigInput{Prompt: strPtr("second")}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	// Simulate a crash that left both versions flagged active.
	if err := dataRepo.ActivateVersion(context.Background(), nil, projectID, 1); err != nil {
		t.Fatalf("ActivateVersion failed: %v", err)
	}
	if n := countActive(t, db, projectID); n != 2 {
		t.Fatalf("setup: active rows = %d, want 2", n)
	}

	row, err := svc.GetActive(context.Background(), projectID)
	if err != nil {
		t.Fatalf("GetActive failed: %v", err)
	}
	if row.Version != 2 {
		t.Fatalf("GetActive returned version %d, want highest version 2", row.Version)
	}
	if n := countActive(t, db, projectID); n != 1 {
		t.Fatalf("active rows = %d after repair, want 1", n)
	}
}

func TestConfigGetActiveUnknownProject(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newConfigService(t, db)

	_, err := svc.GetActive(context.Background(), uuid.New())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestConfigHistoryNewestFirst(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newConfigService(t, db)
	projectID := seedProject(t, db)

	if _, err := svc.Create(context.Background(), nil, projectID, ConfigInput{}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Update(context.Background(), projectID, ConfigInput{Prompt: strPtr("next")}); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	rows, err := svc.History(context.Background(), projectID)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("history length = %d, want 3", len(rows))
	}
	for i, row := range rows {
		if want := 3 - i; row.Version != want {
			t.Fatalf("history[%d].Version = %d, want %d (newest first)", i, row.Version, want)
		}
	}
}

func TestConfigRevertCreatesNewVersion(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newConfigService(t, db)
	projectID := seedProject(t, db)

	if _, err := svc.Create(context.Background(), nil, projectID, ConfigInput{Prompt: strPtr("original prompt")}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Update(context.Background(), projectID, ConfigInput{Prompt: strPtr("edited prompt")}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	row, err := svc.Revert(context.Background(), projectID, 1)
	if err != nil {
		t.Fatalf("Revert failed: %v", err)
	}
	if row.Version != 3 {
		t.Fatalf("revert produced version %d, want new version 3", row.Version)
	}
	if row.Prompt != "original prompt" {
		t.Fatalf("prompt = %q, want version 1 content", row.Prompt)
	}
	if n := countActive(t, db, projectID); n != 1 {
		t.Fatalf("active rows = %d after revert, want 1", n)
	}
}

func TestConfigValidateRejectsUnknownProvider(t *testing.T) {
	db := openTestDB(t)
	svc, _ := newConfigService(t, db)
	projectID := seedProject(t, db)

	_, err := svc.Create(context.Background(), nil, projectID, ConfigInput{LLMProvider: strPtr("nonsense")})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument for unknown provider", err)
	}
}
