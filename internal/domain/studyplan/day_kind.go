package studyplan

import (
	"fmt"

	"github.com/google/uuid"
)

// DayKind is the tagged variant of a PlanDay's content. Exactly one of the five
// concrete types below is produced by KindOf.
type DayKind interface {
	isDayKind()
	Name() string
}

// StudyDay is a weekday of weeks 1-3 with two skills fixed at generation.
type StudyDay struct{ SkillIDs []uuid.UUID }

// PendingReviewDay is a weekend slot waiting for the weekend planner.
type PendingReviewDay struct{}

// PendingAdaptiveDay is a day 22-30 slot waiting for the resequencer.
type PendingAdaptiveDay struct{}

// ReviewDay is a weekend slot filled by the weekend planner.
type ReviewDay struct{ SkillIDs []uuid.UUID }

// AdaptiveDay is a day 22-30 slot filled by the resequencer.
type AdaptiveDay struct{ SkillIDs []uuid.UUID }

func (StudyDay) isDayKind()           {}
func (PendingReviewDay) isDayKind()   {}
func (PendingAdaptiveDay) isDayKind() {}
func (ReviewDay) isDayKind()          {}
func (AdaptiveDay) isDayKind()        {}

func (StudyDay) Name() string           { return "study" }
func (PendingReviewDay) Name() string   { return "pending_review" }
func (PendingAdaptiveDay) Name() string { return "pending_adaptive" }
func (ReviewDay) Name() string          { return "review" }
func (AdaptiveDay) Name() string        { return "adaptive" }

// KindOf resolves the variant of a persisted day.
func KindOf(d *PlanDay) (DayKind, error) {
	if d == nil {
		return nil, fmt.Errorf("nil plan day")
	}
	ids, err := d.SkillIDs()
	if err != nil {
		return nil, err
	}
	switch d.Kind {
	case DayTypeStudy:
		if len(ids) == 0 {
			return nil, fmt.Errorf("%s is a study day without skills", d.Label())
		}
		return StudyDay{SkillIDs: ids}, nil
	case DayTypeReview:
		if len(ids) == 0 {
			return PendingReviewDay{}, nil
		}
		return ReviewDay{SkillIDs: ids}, nil
	case DayTypeAdaptive:
		if len(ids) == 0 {
			return PendingAdaptiveDay{}, nil
		}
		return AdaptiveDay{SkillIDs: ids}, nil
	default:
		return nil, fmt.Errorf("%s has unknown kind %q", d.Label(), d.Kind)
	}
}

// PlannedSkills returns the skill ids of a planned variant, or nil for pending ones.
func PlannedSkills(k DayKind) []uuid.UUID {
	switch v := k.(type) {
	case StudyDay:
		return v.SkillIDs
	case ReviewDay:
		return v.SkillIDs
	case AdaptiveDay:
		return v.SkillIDs
	case PendingReviewDay, PendingAdaptiveDay:
		return nil
	default:
		return nil
	}
}

// IsPending reports whether the variant still waits for a replanning trigger.
func IsPending(k DayKind) bool {
	switch k.(type) {
	case PendingReviewDay, PendingAdaptiveDay:
		return true
	default:
		return false
	}
}
