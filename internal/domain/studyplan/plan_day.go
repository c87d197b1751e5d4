package studyplan

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DayType is the persisted discriminator of a PlanDay. Whether the day is planned
// yet is carried by PlannedSkillIDs; see KindOf for the full variant.
type DayType string

const (
	DayTypeStudy    DayType = "study"
	DayTypeReview   DayType = "review"
	DayTypeAdaptive DayType = "adaptive"
)

// PlanDay is one scheduled unit of study within a plan version.
type PlanDay struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	LearnerID   uuid.UUID `gorm:"type:uuid;not null;index:idx_plan_day_learner_version_day,unique,priority:1;index:idx_plan_day_learner_archived,priority:1" json:"learner_id"`
	PlanVersion int       `gorm:"column:plan_version;not null;index:idx_plan_day_learner_version_day,unique,priority:2" json:"plan_version"`
	DayNumber   int       `gorm:"column:day_number;not null;index:idx_plan_day_learner_version_day,unique,priority:3" json:"day_number"`

	PlanDate datatypes.Date `gorm:"column:plan_date;not null" json:"plan_date"`
	Kind     DayType        `gorm:"column:kind;type:varchar(16);not null" json:"kind"`

	// PlannedSkillIDs is an ordered JSON array of skill ids; NULL until the day is planned.
	PlannedSkillIDs datatypes.JSON `gorm:"type:jsonb;column:planned_skill_ids" json:"planned_skill_ids,omitempty"`
	PlannedAt       *time.Time     `gorm:"column:planned_at" json:"planned_at,omitempty"`

	ReviewDay              bool `gorm:"column:review_day;not null;default:false" json:"review_day"`
	ComprehensiveReviewDay bool `gorm:"column:comprehensive_review_day;not null;default:false" json:"comprehensive_review_day"`

	Completed      bool            `gorm:"column:completed;not null;default:false" json:"completed"`
	CompletionDate *datatypes.Date `gorm:"column:completion_date" json:"completion_date,omitempty"`
	Passed         bool            `gorm:"column:passed;not null;default:false" json:"passed"`
	AttemptCount   int             `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	RetestEligible bool            `gorm:"column:retest_eligible;not null;default:false" json:"retest_eligible"`
	LastScore      *float64        `gorm:"column:last_score" json:"last_score,omitempty"`

	Archived   bool       `gorm:"column:archived;not null;default:false;index:idx_plan_day_learner_archived,priority:2" json:"archived"`
	ArchivedAt *time.Time `gorm:"column:archived_at" json:"archived_at,omitempty"`

	// Version is the optimistic row version; every mutation bumps it through a compare-and-set.
	Version int `gorm:"column:version;not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (PlanDay) TableName() string { return "plan_day" }

// Label renders the "DayN" form.
func (d *PlanDay) Label() string { return DayLabel(d.DayNumber) }

// IsPlanned reports whether the day's skill list has been assigned.
func (d *PlanDay) IsPlanned() bool {
	ids, err := d.SkillIDs()
	return err == nil && len(ids) > 0
}

// SkillIDs decodes the planned skill list. A nil slice means "not yet planned".
func (d *PlanDay) SkillIDs() ([]uuid.UUID, error) {
	if len(d.PlannedSkillIDs) == 0 || string(d.PlannedSkillIDs) == "null" {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(d.PlannedSkillIDs, &ids); err != nil {
		return nil, fmt.Errorf("decode planned skills for %s: %w", d.Label(), err)
	}
	return ids, nil
}

// PlanDateTime returns the plan date as a calendar time.Time.
func (d *PlanDay) PlanDateTime() time.Time { return time.Time(d.PlanDate) }

// CompletionDateTime returns the completion date, or the zero time when never completed.
func (d *PlanDay) CompletionDateTime() time.Time {
	if d.CompletionDate == nil {
		return time.Time{}
	}
	return time.Time(*d.CompletionDate)
}

// Terminal reports whether no further attempts are accepted (Passed or Closed).
func (d *PlanDay) Terminal() bool {
	return d.Passed || (d.AttemptCount > 0 && !d.RetestEligible)
}

// AttemptState is the submission-side state of a day.
type AttemptState string

const (
	AttemptStateNotAttempted    AttemptState = "not_attempted"
	AttemptStatePassed          AttemptState = "passed"
	AttemptStateRetestAvailable AttemptState = "retest_available"
	AttemptStateClosed          AttemptState = "closed"
)

func (d *PlanDay) AttemptState() AttemptState {
	switch {
	case d.Passed:
		return AttemptStatePassed
	case d.AttemptCount == 0:
		return AttemptStateNotAttempted
	case d.RetestEligible:
		return AttemptStateRetestAvailable
	default:
		return AttemptStateClosed
	}
}

// EncodeSkillIDs serializes an ordered skill list for PlannedSkillIDs.
func EncodeSkillIDs(ids []uuid.UUID) (datatypes.JSON, error) {
	if ids == nil {
		return nil, nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
