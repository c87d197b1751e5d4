package studyplan

import (
	"time"

	"github.com/google/uuid"
)

// AttemptRecord is one answered question. Rows are append-only.
type AttemptRecord struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID      uuid.UUID `gorm:"type:uuid;not null;index:idx_attempt_record_learner_time,priority:1" json:"learner_id"`
	PlanDayID      uuid.UUID `gorm:"type:uuid;not null;index" json:"plan_day_id"`
	PlanVersion    int       `gorm:"column:plan_version;not null" json:"plan_version"`
	DayNumber      int       `gorm:"column:day_number;not null" json:"day_number"`
	AttemptNo      int       `gorm:"column:attempt_no;not null" json:"attempt_no"`
	SkillID        uuid.UUID `gorm:"type:uuid;not null;index" json:"skill_id"`
	QuestionID     uuid.UUID `gorm:"type:uuid;not null" json:"question_id"`
	QuestionNum    int       `gorm:"column:question_num;not null;default:0" json:"question_num"`
	SelectedOption string    `gorm:"column:selected_option" json:"selected_option,omitempty"`
	Correct        bool      `gorm:"column:correct;not null" json:"correct"`
	Points         float64   `gorm:"column:points;not null" json:"points"`
	EarnedPoints   float64   `gorm:"column:earned_points;not null" json:"earned_points"`
	TimeSpentSec   int       `gorm:"column:time_spent_sec;not null;default:0" json:"time_spent_sec"`
	AttemptedAt    time.Time `gorm:"column:attempted_at;not null;index:idx_attempt_record_learner_time,priority:2" json:"attempted_at"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
}

func (AttemptRecord) TableName() string { return "attempt_record" }
