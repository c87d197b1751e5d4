package planning

import (
	"time"

	types "github.com/yungbote/studyplan-backend/internal/domain"
	"github.com/yungbote/studyplan-backend/internal/domain/studyplan"
	"github.com/yungbote/studyplan-backend/internal/platform/clock"
)

// Access reasons returned by CheckAccess.
const (
	AccessOK                 = "ok"
	AccessMissingDay         = "day_missing"
	AccessNotPlanned         = "day_not_planned"
	AccessPredecessorMissing = "previous_day_missing"
	AccessPredecessorOpen    = "previous_day_incomplete"
	AccessPredecessorSameDay = "previous_day_completed_today"
)

// CheckAccess decides whether target can be opened today. prev is the day before
// target in the same version and is ignored for Day1.
func CheckAccess(prev, target *types.PlanDay, today time.Time) (bool, string) {
	if target == nil {
		return false, AccessMissingDay
	}
	if !target.IsPlanned() {
		return false, AccessNotPlanned
	}
	if target.DayNumber == 1 {
		return true, AccessOK
	}
	if prev == nil {
		return false, AccessPredecessorMissing
	}
	if !prev.Completed || prev.CompletionDate == nil {
		return false, AccessPredecessorOpen
	}
	if !prev.CompletionDateTime().Before(clock.Date(today)) {
		return false, AccessPredecessorSameDay
	}
	return true, AccessOK
}

// CheckSubmittable rejects submissions for passed or closed days.
func CheckSubmittable(day *types.PlanDay) error {
	if day.Passed {
		return ErrAlreadyPassed
	}
	if day.AttemptCount > 0 && !day.RetestEligible {
		return ErrRetestNotEligible
	}
	return nil
}

// Transition is the attempt bookkeeping after one graded submission.
type Transition struct {
	AttemptCount   int
	Passed         bool
	RetestEligible bool
	State          studyplan.AttemptState
}

// Terminal reports whether the day accepts no further attempts.
func (t Transition) Terminal() bool {
	return t.State == studyplan.AttemptStatePassed || t.State == studyplan.AttemptStateClosed
}

// NextTransition applies one submission to day's attempt counters.
func NextTransition(day *types.PlanDay, passed bool) Transition {
	t := Transition{AttemptCount: day.AttemptCount + 1}
	switch {
	case passed:
		t.Passed = true
		t.State = studyplan.AttemptStatePassed
	case t.AttemptCount == 1:
		t.RetestEligible = true
		t.State = studyplan.AttemptStateRetestAvailable
	default:
		t.State = studyplan.AttemptStateClosed
	}
	return t
}

// WeekendTargets returns the review days filled when day reaches a terminal state.
func WeekendTargets(day int) []int {
	if !studyplan.IsWeekBoundary(day) {
		return nil
	}
	return []int{day + 1, day + 2}
}

// TriggersResequence reports whether a terminal day fills the adaptive block.
func TriggersResequence(day int) bool {
	return day == studyplan.ResequenceTriggerDay
}
