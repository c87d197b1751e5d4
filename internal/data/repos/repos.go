package repos

import (
	"github.com/yungbote/studyplan-backend/internal/data/repos/studyplan"
	"github.com/yungbote/studyplan-backend/internal/platform/logger"
	"gorm.io/gorm"
)

type SkillRepo = studyplan.SkillRepo
type PlanDayRepo = studyplan.PlanDayRepo
type AttemptRecordRepo = studyplan.AttemptRecordRepo
type ReviewNoteRepo = studyplan.ReviewNoteRepo
type RegenerationRunRepo = studyplan.RegenerationRunRepo

type VersionSummary = studyplan.VersionSummary

func NewSkillRepo(db *gorm.DB, baseLog *logger.Logger) SkillRepo {
	return studyplan.NewSkillRepo(db, baseLog)
}
func NewPlanDayRepo(db *gorm.DB, baseLog *logger.Logger) PlanDayRepo {
	return studyplan.NewPlanDayRepo(db, baseLog)
}
func NewAttemptRecordRepo(db *gorm.DB, baseLog *logger.Logger) AttemptRecordRepo {
	return studyplan.NewAttemptRecordRepo(db, baseLog)
}
func NewReviewNoteRepo(db *gorm.DB, baseLog *logger.Logger) ReviewNoteRepo {
	return studyplan.NewReviewNoteRepo(db, baseLog)
}
func NewRegenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) RegenerationRunRepo {
	return studyplan.NewRegenerationRunRepo(db, baseLog)
}
