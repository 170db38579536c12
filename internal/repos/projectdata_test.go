package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/voxlane/voxlane-backend/internal/pkg/apperr"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/types"
)

func openRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.User{}, &types.Project{}, &types.ProjectData{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedVersions(t *testing.T, repo ProjectDataRepo, projectID uuid.UUID, n int) {
	t.Helper()
	ctx := context.Background()
	for v := 1; v <= n; v++ {
		_, err := repo.Create(ctx, nil, []*types.ProjectData{{
			ID:        uuid.New(),
			ProjectID: projectID,
			Version:   v,
			IsActive:  v == n,
			Prompt:    "version prompt",
		}})
		if err != nil {
			t.Fatalf("create version %d: %v", v, err)
		}
	}
}

func TestProjectDataMaxVersion(t *testing.T) {
	db := openRepoTestDB(t)
	repo := NewProjectDataRepo(db, logger.NewNop())
	projectID := uuid.New()
	ctx := context.Background()

	max, err := repo.MaxVersion(ctx, nil, projectID)
	if err != nil {
		t.Fatalf("max version on empty table: %v", err)
	}
	if max != 0 {
		t.Fatalf("expected 0 for no rows, got %d", max)
	}

	seedVersions(t, repo, projectID, 3)
	max, err = repo.MaxVersion(ctx, nil, projectID)
	if err != nil {
		t.Fatalf("max version: %v", err)
	}
	if max != 3 {
		t.Fatalf("expected 3, got %d", max)
	}
}

func TestProjectDataActiveFlagFlip(t *testing.T) {
	db := openRepoTestDB(t)
	repo := NewProjectDataRepo(db, logger.NewNop())
	projectID := uuid.New()
	ctx := context.Background()

	seedVersions(t, repo, projectID, 3)

	if err := repo.DeactivateAll(ctx, nil, projectID); err != nil {
		t.Fatalf("deactivate all: %v", err)
	}
	active, err := repo.GetActive(ctx, nil, projectID)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active rows, got %d", len(active))
	}

	if err := repo.ActivateVersion(ctx, nil, projectID, 2); err != nil {
		t.Fatalf("activate version 2: %v", err)
	}
	active, err = repo.GetActive(ctx, nil, projectID)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if len(active) != 1 || active[0].Version != 2 {
		t.Fatalf("expected version 2 active, got %+v", active)
	}
}

func TestProjectDataActivateMissingVersion(t *testing.T) {
	db := openRepoTestDB(t)
	repo := NewProjectDataRepo(db, logger.NewNop())
	projectID := uuid.New()

	err := repo.ActivateVersion(context.Background(), nil, projectID, 9)
	if err == nil {
		t.Fatal("expected error activating a version that does not exist")
	}
	var se *apperr.StoreError
	if !errors.As(err, &se) || se.Code != apperr.StoreErrorNotFound {
		t.Fatalf("expected not_found store error, got %v", err)
	}
}

func TestProjectDataListNewestFirst(t *testing.T) {
	db := openRepoTestDB(t)
	repo := NewProjectDataRepo(db, logger.NewNop())
	projectID := uuid.New()
	ctx := context.Background()

	seedVersions(t, repo, projectID, 4)
	rows, err := repo.ListByProject(ctx, nil, projectID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Version != 4-i {
			t.Fatalf("expected descending versions, got %d at index %d", row.Version, i)
		}
	}
}
