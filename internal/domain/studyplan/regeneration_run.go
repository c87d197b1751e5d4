package studyplan

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RegenerationStatusRunning   = "running"
	RegenerationStatusSucceeded = "succeeded"
	RegenerationStatusFailed    = "failed"
)

// PlanRegenerationRun records an archive-then-generate cycle so an interrupted run is visible.
type PlanRegenerationRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_regen_run_learner_status,priority:1" json:"learner_id"`
	Status      string         `gorm:"column:status;not null;index:idx_regen_run_learner_status,priority:2" json:"status"`
	FromVersion int            `gorm:"column:from_version;not null" json:"from_version"`
	ToVersion   int            `gorm:"column:to_version;not null;default:0" json:"to_version"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	Metadata    datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
	StartedAt   time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt  *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

func (PlanRegenerationRun) TableName() string { return "plan_regeneration_run" }
