package studyplan

import (
	"time"

	"github.com/google/uuid"
)

// ReviewNote pins a question of a finished day for later review.
type ReviewNote struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID       uuid.UUID `gorm:"type:uuid;not null;index" json:"learner_id"`
	PlanDayID       uuid.UUID `gorm:"type:uuid;not null;index" json:"plan_day_id"`
	AttemptRecordID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"attempt_record_id"`
	SkillID         uuid.UUID `gorm:"type:uuid;not null" json:"skill_id"`
	QuestionID      uuid.UUID `gorm:"type:uuid;not null" json:"question_id"`
	DayNumber       int       `gorm:"column:day_number;not null" json:"day_number"`
	Correct         bool      `gorm:"column:correct;not null" json:"correct"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
}

func (ReviewNote) TableName() string { return "review_note" }
