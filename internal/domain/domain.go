package domain

import (
	"github.com/yungbote/studyplan-backend/internal/domain/studyplan"
)

type (
	Skill               = studyplan.Skill
	PlanDay             = studyplan.PlanDay
	AttemptRecord       = studyplan.AttemptRecord
	ReviewNote          = studyplan.ReviewNote
	PlanRegenerationRun = studyplan.PlanRegenerationRun

	DayType      = studyplan.DayType
	DayKind      = studyplan.DayKind
	AttemptState = studyplan.AttemptState
)

const (
	DayTypeStudy    = studyplan.DayTypeStudy
	DayTypeReview   = studyplan.DayTypeReview
	DayTypeAdaptive = studyplan.DayTypeAdaptive

	PlanLength = studyplan.PlanLength
)

// Models lists every persisted type, in migration order.
func Models() []any {
	return []any{
		&Skill{},
		&PlanDay{},
		&AttemptRecord{},
		&ReviewNote{},
		&PlanRegenerationRun{},
	}
}
