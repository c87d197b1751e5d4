package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Plan event names published after a write commits.
const (
	EventPlanGenerated   = "plan.generated"
	EventDayAttempted    = "day.attempted"
	EventDayCompleted    = "day.completed"
	EventWeekendPlanned  = "weekend.planned"
	EventAdaptivePlanned = "adaptive.planned"
	EventPlanRegenerated = "plan.regenerated"
)

// PlanEvent is the fan-out payload for downstream consumers (notifications, analytics).
type PlanEvent struct {
	ID          uuid.UUID      `json:"id"`
	Event       string         `json:"event"`
	LearnerID   uuid.UUID      `json:"learner_id"`
	PlanVersion int            `json:"plan_version"`
	DayNumbers  []int          `json:"day_numbers,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

func NewPlanEvent(event string, learnerID uuid.UUID, planVersion int, at time.Time) PlanEvent {
	return PlanEvent{
		ID:          uuid.New(),
		Event:       event,
		LearnerID:   learnerID,
		PlanVersion: planVersion,
		OccurredAt:  at.UTC(),
	}
}
