package app

import (
	"gorm.io/gorm"

	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/repos"
)

type Repos struct {
	User        repos.UserRepo
	UserToken   repos.UserTokenRepo
	Project     repos.ProjectRepo
	ProjectData repos.ProjectDataRepo
	PhoneNumber repos.PhoneNumberRepo
	UserPlan    repos.UserPlanRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:        repos.NewUserRepo(db, log),
		UserToken:   repos.NewUserTokenRepo(db, log),
		Project:     repos.NewProjectRepo(db, log),
		ProjectData: repos.NewProjectDataRepo(db, log),
		PhoneNumber: repos.NewPhoneNumberRepo(db, log),
		UserPlan:    repos.NewUserPlanRepo(db, log),
	}
}
