package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/studyplan-backend/internal/domain/studyplan"
)

var StudyPlanAggregateContract = Contract{
	Name: "StudyPlan",
	Writes: []WriteOp{
		{Name: "StudyPlan.Generate", Codes: []ErrorCode{CodeValidation, CodePolicy, CodePreconditionFailed}},
		{Name: "StudyPlan.SubmitAttempt", Codes: []ErrorCode{CodeValidation, CodePolicy, CodeNotFound, CodeInvariantViolation, CodePreconditionFailed}},
		{Name: "StudyPlan.CompleteDay", Codes: []ErrorCode{CodeValidation, CodeNotFound, CodeInvariantViolation, CodePreconditionFailed}},
		{Name: "StudyPlan.Resequence", Codes: []ErrorCode{CodeValidation, CodePolicy, CodeNotFound, CodeInvariantViolation, CodePreconditionFailed}},
		{Name: "StudyPlan.Regenerate", Codes: []ErrorCode{CodeValidation, CodePolicy, CodeNotFound, CodeInvariantViolation, CodePreconditionFailed}},
		{Name: "StudyPlan.Regenerate.Begin", Codes: []ErrorCode{CodePolicy, CodeNotFound}},
		{Name: "StudyPlan.Regenerate.Abort"},
		{Name: "StudyPlan.RecoverRegeneration", Codes: []ErrorCode{CodeValidation, CodePreconditionFailed}},
		{Name: "StudyPlan.SweepRetention", Codes: []ErrorCode{CodeValidation, CodeInvariantViolation}},
	},
}

// StudyPlanAggregate owns the per-learner plan invariants.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodePolicy, CodeNotFound, CodeConflict, CodeInvariantViolation, CodeRetryable, CodeInternal.
type StudyPlanAggregate interface {
	Aggregate

	// Generate creates a 30-day plan at version max+1 for a learner without an active plan.
	Generate(ctx context.Context, in GeneratePlanInput) (GeneratePlanResult, error)

	// SubmitAttempt grades an attempt, advances the day's attempt state and fires replanning triggers.
	SubmitAttempt(ctx context.Context, in SubmitAttemptInput) (SubmitAttemptResult, error)

	// CompleteDay marks a day completed without grading (administrative).
	CompleteDay(ctx context.Context, in CompleteDayInput) (CompleteDayResult, error)

	// Resequence fills days 22-30 once; a planned week four is left untouched.
	Resequence(ctx context.Context, in ResequenceInput) (ResequenceResult, error)

	// Regenerate archives the active version and generates the next one.
	Regenerate(ctx context.Context, in RegenerateInput) (RegenerateResult, error)

	// RecoverRegeneration closes stale runs and restores an active plan if none exists.
	RecoverRegeneration(ctx context.Context, in RecoverRegenerationInput) (RecoverRegenerationResult, error)

	// SweepRetention hard-deletes versions that fall outside the retention window.
	SweepRetention(ctx context.Context, learnerID uuid.UUID) (SweepRetentionResult, error)
}

type GeneratePlanInput struct {
	LearnerID uuid.UUID
}

type GeneratePlanResult struct {
	Version int
	Days    []*studyplan.PlanDay
}

// QuestionAnswer is one graded question of a submission. Points of 0 means the default weight.
type QuestionAnswer struct {
	QuestionID     uuid.UUID
	SkillID        uuid.UUID
	QuestionNum    int
	SelectedOption string
	Correct        bool
	Points         float64
	TimeSpentSec   int
}

type SubmitAttemptInput struct {
	LearnerID uuid.UUID
	DayNumber int
	Answers   []QuestionAnswer
}

// Replan describes a trigger that filled pending days.
type Replan struct {
	Kind       string // "weekend" or "adaptive"
	DayNumbers []int
	Fallback   bool
}

const (
	ReplanWeekend  = "weekend"
	ReplanAdaptive = "adaptive"
)

type SubmitAttemptResult struct {
	PlanVersion    int
	DayNumber      int
	Passed         bool
	AttemptCount   int
	RetestEligible bool
	Score          float64
	EarnedPoints   float64
	PossiblePoints float64
	State          studyplan.AttemptState
	Replans        []Replan
	SubmittedAt    time.Time
}

type CompleteDayInput struct {
	LearnerID uuid.UUID
	DayNumber int
}

type CompleteDayResult struct {
	PlanVersion int
	DayNumber   int
	Completed   bool
	Replans     []Replan
}

type ResequenceInput struct {
	LearnerID uuid.UUID
}

type ResequenceResult struct {
	PlanVersion int
	Applied     bool
	Fallback    bool
	SkillIDs    []uuid.UUID
}

type RegenerateInput struct {
	LearnerID uuid.UUID
}

type RegenerateResult struct {
	RunID       uuid.UUID
	FromVersion int
	NewVersion  int
	Days        []*studyplan.PlanDay
	// Retention is the sweep committed together with the new version.
	Retention SweepRetentionResult
}

type RecoverRegenerationInput struct {
	LearnerID uuid.UUID
	// StaleAfter is how old a running marker must be before it is considered abandoned.
	StaleAfter time.Duration
}

type RecoverRegenerationResult struct {
	StaleRunsClosed int
	Restored        bool
	NewVersion      int
}

type SweepRetentionResult struct {
	DeletedVersions []int
	DeletedDays     int64
	DeletedNotes    int64
}
