package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/studyplan-backend/internal/data/repos"
	types "github.com/yungbote/studyplan-backend/internal/domain"
	domainagg "github.com/yungbote/studyplan-backend/internal/domain/aggregates"
	"github.com/yungbote/studyplan-backend/internal/domain/studyplan"
	"github.com/yungbote/studyplan-backend/internal/modules/planning"
	"github.com/yungbote/studyplan-backend/internal/observability"
	"github.com/yungbote/studyplan-backend/internal/platform/clock"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
	"github.com/yungbote/studyplan-backend/internal/platform/logger"
	"github.com/yungbote/studyplan-backend/internal/realtime"
	"github.com/yungbote/studyplan-backend/internal/realtime/bus"
)

// StudyPlanService is the learner-facing facade over the plan aggregate and its read models.
type StudyPlanService interface {
	Generate(ctx context.Context, learnerID uuid.UUID) (*PlanView, error)
	GetPlan(ctx context.Context, learnerID uuid.UUID) (*PlanView, error)
	CanAccess(ctx context.Context, learnerID uuid.UUID, dayNumber int) (*AccessView, error)
	GetDayStatus(ctx context.Context, learnerID uuid.UUID, dayNumber int) (*DayView, error)
	GetDayConcepts(ctx context.Context, learnerID uuid.UUID, dayNumber int) ([]*types.Skill, error)
	GetDaySkillResults(ctx context.Context, learnerID uuid.UUID, dayNumber int) (*DayResultsView, error)
	GetWeeklyResults(ctx context.Context, learnerID uuid.UUID, dayNumber int) (*WeeklyResultsView, error)

	SubmitAttempt(ctx context.Context, learnerID uuid.UUID, dayNumber int, answers []domainagg.QuestionAnswer) (domainagg.SubmitAttemptResult, error)
	CompleteDay(ctx context.Context, learnerID uuid.UUID, dayNumber int) (domainagg.CompleteDayResult, error)
	Resequence(ctx context.Context, learnerID uuid.UUID) (domainagg.ResequenceResult, error)

	RegeneratePlan(ctx context.Context, learnerID uuid.UUID) (domainagg.RegenerateResult, error)
	RecoverRegeneration(ctx context.Context, learnerID uuid.UUID) (domainagg.RecoverRegenerationResult, error)
	GetRegenerationEligibility(ctx context.Context, learnerID uuid.UUID) (*EligibilityView, error)
	ListPlanVersions(ctx context.Context, learnerID uuid.UUID) ([]repos.VersionSummary, error)
	GetPlanVersion(ctx context.Context, learnerID uuid.UUID, version int) (*PlanView, error)
	ListReviewNotes(ctx context.Context, learnerID uuid.UUID, onlyIncorrect bool) ([]*types.ReviewNote, error)
}

type StudyPlanServiceDeps struct {
	Log       *logger.Logger
	Aggregate domainagg.StudyPlanAggregate

	Skills   repos.SkillRepo
	Days     repos.PlanDayRepo
	Attempts repos.AttemptRecordRepo
	Notes    repos.ReviewNoteRepo
	Runs     repos.RegenerationRunRepo

	Bus     bus.Bus
	Clock   clock.Clock
	Policy  planning.Policy
	Metrics *observability.Metrics
}

type studyPlanService struct {
	log      *logger.Logger
	agg      domainagg.StudyPlanAggregate
	skills   repos.SkillRepo
	days     repos.PlanDayRepo
	attempts repos.AttemptRecordRepo
	notes    repos.ReviewNoteRepo
	runs     repos.RegenerationRunRepo
	bus      bus.Bus
	clock    clock.Clock
	policy   planning.Policy
	metrics  *observability.Metrics
}

func NewStudyPlanService(deps StudyPlanServiceDeps) StudyPlanService {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	c := deps.Clock
	if c == nil {
		c = clock.New(time.UTC)
	}
	m := deps.Metrics
	if m == nil {
		m = observability.Current()
	}
	return &studyPlanService{
		log:      log.With("service", "StudyPlanService"),
		agg:      deps.Aggregate,
		skills:   deps.Skills,
		days:     deps.Days,
		attempts: deps.Attempts,
		notes:    deps.Notes,
		runs:     deps.Runs,
		bus:      deps.Bus,
		clock:    c,
		policy:   deps.Policy.WithDefaults(),
		metrics:  m,
	}
}

func (s *studyPlanService) ready(op string) error {
	if s == nil || s.agg == nil || s.days == nil || s.skills == nil || s.attempts == nil || s.notes == nil || s.runs == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "study plan service not configured", nil)
	}
	return nil
}

func validDay(op string, dayNumber int) error {
	if dayNumber < 1 || dayNumber > studyplan.PlanLength {
		return domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("day number %d out of range 1..%d", dayNumber, studyplan.PlanLength), nil)
	}
	return nil
}

func (s *studyPlanService) Generate(ctx context.Context, learnerID uuid.UUID) (view *PlanView, err error) {
	const op = "StudyPlanService.Generate"
	ctx, span := observability.StartSpan(ctx, op)
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return nil, err
	}

	// Read before the write so a committed plan is always returned to the caller.
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	res, err := s.agg.Generate(ctx, domainagg.GeneratePlanInput{LearnerID: learnerID})
	if err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).Info("study plan generated", "learner_id", learnerID, "version", res.Version)
	s.publish(ctx, realtime.NewPlanEvent(realtime.EventPlanGenerated, learnerID, res.Version, s.clock.Now()))
	return buildPlanView(learnerID, res.Days, catalog, s.clock.Today()), nil
}

func (s *studyPlanService) SubmitAttempt(ctx context.Context, learnerID uuid.UUID, dayNumber int, answers []domainagg.QuestionAnswer) (res domainagg.SubmitAttemptResult, err error) {
	const op = "StudyPlanService.SubmitAttempt"
	ctx, span := observability.StartSpan(ctx, op,
		attribute.Int("plan.day", dayNumber),
		attribute.Int("plan.answers", len(answers)),
	)
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return res, err
	}
	if err := validDay(op, dayNumber); err != nil {
		return res, err
	}

	res, err = s.agg.SubmitAttempt(ctx, domainagg.SubmitAttemptInput{
		LearnerID: learnerID,
		DayNumber: dayNumber,
		Answers:   answers,
	})
	if err != nil {
		return res, err
	}
	s.metrics.IncAttempt(string(res.State))
	s.log.WithContext(ctx).Info("attempt submitted",
		"learner_id", learnerID,
		"day", dayNumber,
		"attempt", res.AttemptCount,
		"score", res.Score,
		"state", res.State,
	)

	evt := realtime.NewPlanEvent(realtime.EventDayAttempted, learnerID, res.PlanVersion, res.SubmittedAt)
	evt.DayNumbers = []int{dayNumber}
	evt.Data = map[string]any{
		"attempt_count":   res.AttemptCount,
		"passed":          res.Passed,
		"retest_eligible": res.RetestEligible,
		"score":           res.Score,
	}
	s.publish(ctx, evt)
	s.publishReplans(ctx, learnerID, res.PlanVersion, res.Replans)
	return res, nil
}

func (s *studyPlanService) CompleteDay(ctx context.Context, learnerID uuid.UUID, dayNumber int) (res domainagg.CompleteDayResult, err error) {
	const op = "StudyPlanService.CompleteDay"
	ctx, span := observability.StartSpan(ctx, op, attribute.Int("plan.day", dayNumber))
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return res, err
	}
	if err := validDay(op, dayNumber); err != nil {
		return res, err
	}
	res, err = s.agg.CompleteDay(ctx, domainagg.CompleteDayInput{LearnerID: learnerID, DayNumber: dayNumber})
	if err != nil {
		return res, err
	}
	evt := realtime.NewPlanEvent(realtime.EventDayCompleted, learnerID, res.PlanVersion, s.clock.Now())
	evt.DayNumbers = []int{dayNumber}
	s.publish(ctx, evt)
	s.publishReplans(ctx, learnerID, res.PlanVersion, res.Replans)
	return res, nil
}

func (s *studyPlanService) Resequence(ctx context.Context, learnerID uuid.UUID) (res domainagg.ResequenceResult, err error) {
	const op = "StudyPlanService.Resequence"
	ctx, span := observability.StartSpan(ctx, op)
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return res, err
	}
	res, err = s.agg.Resequence(ctx, domainagg.ResequenceInput{LearnerID: learnerID})
	if err != nil {
		return res, err
	}
	if res.Applied {
		s.publishReplans(ctx, learnerID, res.PlanVersion, []domainagg.Replan{{
			Kind:       domainagg.ReplanAdaptive,
			DayNumbers: adaptiveDays(),
			Fallback:   res.Fallback,
		}})
	}
	return res, nil
}

func (s *studyPlanService) RegeneratePlan(ctx context.Context, learnerID uuid.UUID) (res domainagg.RegenerateResult, err error) {
	const op = "StudyPlanService.RegeneratePlan"
	ctx, span := observability.StartSpan(ctx, op)
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return res, err
	}
	res, err = s.agg.Regenerate(ctx, domainagg.RegenerateInput{LearnerID: learnerID})
	if err != nil {
		return res, err
	}
	s.metrics.AddRetentionDeleted(res.Retention.DeletedDays)
	s.log.WithContext(ctx).Info("study plan regenerated",
		"learner_id", learnerID,
		"from_version", res.FromVersion,
		"version", res.NewVersion,
		"swept_versions", res.Retention.DeletedVersions,
	)
	evt := realtime.NewPlanEvent(realtime.EventPlanRegenerated, learnerID, res.NewVersion, s.clock.Now())
	evt.Data = map[string]any{"from_version": res.FromVersion, "run_id": res.RunID.String()}
	s.publish(ctx, evt)
	return res, nil
}

func (s *studyPlanService) RecoverRegeneration(ctx context.Context, learnerID uuid.UUID) (res domainagg.RecoverRegenerationResult, err error) {
	const op = "StudyPlanService.RecoverRegeneration"
	ctx, span := observability.StartSpan(ctx, op)
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return res, err
	}
	res, err = s.agg.RecoverRegeneration(ctx, domainagg.RecoverRegenerationInput{LearnerID: learnerID})
	if err != nil {
		return res, err
	}
	if res.StaleRunsClosed > 0 || res.Restored {
		s.log.WithContext(ctx).Warn("recovered interrupted regeneration",
			"learner_id", learnerID, "stale_runs", res.StaleRunsClosed, "restored_version", res.NewVersion)
	}
	if res.Restored {
		s.publish(ctx, realtime.NewPlanEvent(realtime.EventPlanRegenerated, learnerID, res.NewVersion, s.clock.Now()))
	}
	return res, nil
}

func (s *studyPlanService) publishReplans(ctx context.Context, learnerID uuid.UUID, version int, replans []domainagg.Replan) {
	for _, rp := range replans {
		s.metrics.IncReplan(rp.Kind, rp.Fallback)
		name := realtime.EventWeekendPlanned
		if rp.Kind == domainagg.ReplanAdaptive {
			name = realtime.EventAdaptivePlanned
			if rp.Fallback {
				s.metrics.IncPredictorFallback("frequency_rank")
			}
		}
		evt := realtime.NewPlanEvent(name, learnerID, version, s.clock.Now())
		evt.DayNumbers = rp.DayNumbers
		evt.Data = map[string]any{"fallback": rp.Fallback}
		s.publish(ctx, evt)
	}
}

// publish runs after the write committed; delivery failures are logged, never returned.
func (s *studyPlanService) publish(ctx context.Context, evt realtime.PlanEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.log.WithContext(ctx).Warn("plan event publish failed", "event", evt.Event, "learner_id", evt.LearnerID, "error", err)
	}
}

func (s *studyPlanService) catalog(ctx context.Context) (map[uuid.UUID]*types.Skill, error) {
	list, err := s.skills.List(dbctx.Read(ctx))
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]*types.Skill, len(list))
	for _, sk := range list {
		out[sk.ID] = sk
	}
	return out, nil
}

func adaptiveDays() []int {
	out := make([]int, 0, studyplan.AdaptiveDays)
	for d := studyplan.AdaptiveFirstDay; d <= studyplan.PlanLength; d++ {
		out = append(out, d)
	}
	return out
}
