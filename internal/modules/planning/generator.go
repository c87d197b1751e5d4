package planning

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/studyplan-backend/internal/domain"
	"github.com/yungbote/studyplan-backend/internal/domain/studyplan"
	"github.com/yungbote/studyplan-backend/internal/platform/clock"
)

type BuildPlanInput struct {
	LearnerID uuid.UUID
	Version   int
	// Today is the planning-timezone date of Day1.
	Today  time.Time
	Ranked []*types.Skill
	Now    time.Time
}

// StudyDayCount is the number of weekday study days in weeks 1-3.
func StudyDayCount() int {
	n := 0
	for d := 1; d <= studyplan.ResequenceTriggerDay; d++ {
		if !studyplan.IsReviewDay(d) {
			n++
		}
	}
	return n
}

// BuildPlan lays out the 30 rows of a new plan version. Weekday study days consume the
// ranked skills front to back; review and adaptive days are left unplanned.
func BuildPlan(in BuildPlanInput, policy Policy) ([]*types.PlanDay, error) {
	policy = policy.WithDefaults()
	if in.LearnerID == uuid.Nil {
		return nil, fmt.Errorf("missing learner id")
	}
	if in.Version < 1 {
		return nil, fmt.Errorf("plan version must be >= 1, got %d", in.Version)
	}
	need := StudyDayCount() * policy.StudySkillsPerDay
	if len(in.Ranked) < need {
		return nil, fmt.Errorf("%w: need %d skills, catalog has %d", ErrInsufficientSkills, need, len(in.Ranked))
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	start := clock.Date(in.Today)

	days := make([]*types.PlanDay, 0, studyplan.PlanLength)
	weekday := 0
	for d := 1; d <= studyplan.PlanLength; d++ {
		row := &types.PlanDay{
			ID:          uuid.New(),
			LearnerID:   in.LearnerID,
			PlanVersion: in.Version,
			DayNumber:   d,
			PlanDate:    datatypes.Date(clock.AddDays(start, d-1)),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		switch {
		case studyplan.IsReviewDay(d):
			row.Kind = studyplan.DayTypeReview
			row.ReviewDay = true
		case studyplan.IsAdaptiveDay(d):
			row.Kind = studyplan.DayTypeAdaptive
			row.ComprehensiveReviewDay = true
		default:
			row.Kind = studyplan.DayTypeStudy
			lo := weekday * policy.StudySkillsPerDay
			raw, err := studyplan.EncodeSkillIDs(SkillIDs(in.Ranked[lo : lo+policy.StudySkillsPerDay]))
			if err != nil {
				return nil, err
			}
			row.PlannedSkillIDs = raw
			plannedAt := now
			row.PlannedAt = &plannedAt
			weekday++
		}
		days = append(days, row)
	}
	return days, nil
}
