package aggregates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/studyplan-backend/internal/data/repos"
	types "github.com/yungbote/studyplan-backend/internal/domain"
	domainagg "github.com/yungbote/studyplan-backend/internal/domain/aggregates"
	"github.com/yungbote/studyplan-backend/internal/domain/studyplan"
	"github.com/yungbote/studyplan-backend/internal/modules/planning"
	"github.com/yungbote/studyplan-backend/internal/platform/clock"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
)

type StudyPlanAggregateDeps struct {
	Base BaseDeps

	Skills   planning.SkillCatalog
	Days     repos.PlanDayRepo
	Attempts repos.AttemptRecordRepo
	Activity planning.ActivityStore
	Notes    repos.ReviewNoteRepo
	Runs     repos.RegenerationRunRepo

	Predictor planning.MasteryPredictor
	Weekend   planning.WeekendPlanner
	Clock     clock.Clock
	Policy    planning.Policy

	// PredictTimeout bounds a single mastery prediction; the frequency fallback applies on expiry.
	PredictTimeout time.Duration
	// StaleRunAfter is the age after which a running regeneration marker is considered abandoned.
	StaleRunAfter time.Duration
}

type studyPlanAggregate struct {
	deps StudyPlanAggregateDeps
}

func NewStudyPlanAggregate(deps StudyPlanAggregateDeps) domainagg.StudyPlanAggregate {
	deps.Base = deps.Base.withDefaults()
	deps.Base.Contract = domainagg.StudyPlanAggregateContract
	if deps.Activity == nil && deps.Attempts != nil {
		deps.Activity = deps.Attempts
	}
	if deps.Weekend == nil {
		deps.Weekend = planning.NewIncorrectRatePlanner()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New(time.UTC)
	}
	deps.Policy = deps.Policy.WithDefaults()
	if deps.PredictTimeout <= 0 {
		deps.PredictTimeout = 5 * time.Second
	}
	if deps.StaleRunAfter <= 0 {
		deps.StaleRunAfter = 10 * time.Minute
	}
	return &studyPlanAggregate{deps: deps}
}

func (a *studyPlanAggregate) Contract() domainagg.Contract {
	return domainagg.StudyPlanAggregateContract
}

func (a *studyPlanAggregate) configured() bool {
	d := a.deps
	return d.Skills != nil && d.Days != nil && d.Attempts != nil && d.Activity != nil && d.Notes != nil && d.Runs != nil
}

func (a *studyPlanAggregate) Generate(ctx context.Context, in domainagg.GeneratePlanInput) (domainagg.GeneratePlanResult, error) {
	const op = "StudyPlan.Generate"
	var out domainagg.GeneratePlanResult
	if in.LearnerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "study plan aggregate repos not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		active, err := a.deps.Days.LockActive(dbc, in.LearnerID)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return PolicyError(fmt.Sprintf("learner already has an active plan (version %d)", active[0].PlanVersion))
		}
		version, days, err := a.generateNext(dbc, op, in.LearnerID)
		if err != nil {
			return err
		}
		out = domainagg.GeneratePlanResult{Version: version, Days: days}
		return nil
	})
	return out, err
}

// generateNext writes a fresh 30-day plan at max(version)+1.
func (a *studyPlanAggregate) generateNext(dbc dbctx.Context, op string, learnerID uuid.UUID) (int, []*types.PlanDay, error) {
	maxVersion, err := a.deps.Days.MaxVersion(dbc, learnerID)
	if err != nil {
		return 0, nil, err
	}
	catalog, err := a.deps.Skills.List(dbc)
	if err != nil {
		return 0, nil, err
	}
	days, err := planning.BuildPlan(planning.BuildPlanInput{
		LearnerID: learnerID,
		Version:   maxVersion + 1,
		Today:     a.deps.Clock.Today(),
		Ranked:    planning.RankSkills(catalog),
		Now:       a.deps.Clock.Now(),
	}, a.deps.Policy)
	if errors.Is(err, planning.ErrInsufficientSkills) {
		return 0, nil, domainagg.NewError(domainagg.CodePreconditionFailed, op, err.Error(), err)
	}
	if err != nil {
		return 0, nil, err
	}
	if _, err := a.deps.Days.Create(dbc, days); err != nil {
		return 0, nil, err
	}
	return maxVersion + 1, days, nil
}

func (a *studyPlanAggregate) SubmitAttempt(ctx context.Context, in domainagg.SubmitAttemptInput) (domainagg.SubmitAttemptResult, error) {
	const op = "StudyPlan.SubmitAttempt"
	var out domainagg.SubmitAttemptResult
	if in.LearnerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	if in.DayNumber < 1 || in.DayNumber > studyplan.PlanLength {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("day number %d out of range", in.DayNumber), nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "study plan aggregate repos not configured", nil)
	}
	grade, err := planning.GradeAnswers(in.Answers, a.deps.Policy)
	if err != nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, err.Error(), err)
	}

	err = executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		now := a.deps.Clock.Now()
		today := a.deps.Clock.Today()

		day, err := a.openDay(dbc, in.LearnerID, in.DayNumber, today)
		if err != nil {
			return err
		}
		if err := planning.CheckSubmittable(day); err != nil {
			return PolicyError(fmt.Sprintf("%s: %v", day.Label(), err))
		}

		tr := planning.NextTransition(day, grade.Passed)
		score := grade.Score
		if err := a.deps.Base.CASGuard.UpdateDay(dbc, day, map[string]any{
			"attempt_count":   tr.AttemptCount,
			"passed":          tr.Passed,
			"retest_eligible": tr.RetestEligible,
			"completed":       true,
			"completion_date": datatypes.Date(today),
			"last_score":      score,
			"updated_at":      now,
		}); err != nil {
			return err
		}

		records := make([]*types.AttemptRecord, 0, len(in.Answers))
		for i, ans := range in.Answers {
			earned := 0.0
			if ans.Correct {
				earned = grade.Points[i]
			}
			num := ans.QuestionNum
			if num == 0 {
				num = i + 1
			}
			records = append(records, &types.AttemptRecord{
				ID:             uuid.New(),
				LearnerID:      in.LearnerID,
				PlanDayID:      day.ID,
				PlanVersion:    day.PlanVersion,
				DayNumber:      day.DayNumber,
				AttemptNo:      tr.AttemptCount,
				SkillID:        ans.SkillID,
				QuestionID:     ans.QuestionID,
				QuestionNum:    num,
				SelectedOption: ans.SelectedOption,
				Correct:        ans.Correct,
				Points:         grade.Points[i],
				EarnedPoints:   earned,
				TimeSpentSec:   ans.TimeSpentSec,
				AttemptedAt:    now,
				CreatedAt:      now,
			})
		}
		if _, err := a.deps.Attempts.Create(dbc, records); err != nil {
			return err
		}

		var replans []domainagg.Replan
		if tr.Terminal() {
			if _, err := a.deps.Notes.Create(dbc, reviewNotesFor(records, now)); err != nil {
				return err
			}
			replans, err = a.fireTriggers(dbc, op, in.LearnerID, day.DayNumber, now)
			if err != nil {
				return err
			}
		}

		out = domainagg.SubmitAttemptResult{
			PlanVersion:    day.PlanVersion,
			DayNumber:      day.DayNumber,
			Passed:         tr.Passed,
			AttemptCount:   tr.AttemptCount,
			RetestEligible: tr.RetestEligible,
			Score:          grade.Score,
			EarnedPoints:   grade.EarnedPoints,
			PossiblePoints: grade.PossiblePoints,
			State:          tr.State,
			Replans:        replans,
			SubmittedAt:    now,
		}
		return nil
	})
	return out, err
}

// openDay locks an active day and checks it can be worked on today.
func (a *studyPlanAggregate) openDay(dbc dbctx.Context, learnerID uuid.UUID, dayNumber int, today time.Time) (*types.PlanDay, error) {
	day, err := a.deps.Days.LockActiveDay(dbc, learnerID, dayNumber)
	if err != nil {
		return nil, err
	}
	if day == nil {
		return nil, NotFoundError(fmt.Sprintf("no active %s for learner", studyplan.DayLabel(dayNumber)))
	}
	var prev *types.PlanDay
	if dayNumber > 1 {
		prev, err = a.deps.Days.GetActiveDay(dbc, learnerID, dayNumber-1)
		if err != nil {
			return nil, err
		}
		if prev == nil {
			return nil, InvariantError(fmt.Sprintf("active plan is missing %s", studyplan.DayLabel(dayNumber-1)))
		}
	}
	if ok, reason := planning.CheckAccess(prev, day, today); !ok {
		return nil, PolicyError(fmt.Sprintf("%s is not accessible: %s", day.Label(), reason))
	}
	return day, nil
}

func reviewNotesFor(records []*types.AttemptRecord, now time.Time) []*types.ReviewNote {
	out := make([]*types.ReviewNote, 0, len(records))
	for _, r := range records {
		out = append(out, &types.ReviewNote{
			ID:              uuid.New(),
			LearnerID:       r.LearnerID,
			PlanDayID:       r.PlanDayID,
			AttemptRecordID: r.ID,
			SkillID:         r.SkillID,
			QuestionID:      r.QuestionID,
			DayNumber:       r.DayNumber,
			Correct:         r.Correct,
			CreatedAt:       now,
		})
	}
	return out
}

// fireTriggers runs the replanning that a finished day unlocks. Both triggers are
// no-ops when their target days are already planned.
func (a *studyPlanAggregate) fireTriggers(dbc dbctx.Context, op string, learnerID uuid.UUID, dayNumber int, now time.Time) ([]domainagg.Replan, error) {
	var out []domainagg.Replan
	if targets := planning.WeekendTargets(dayNumber); len(targets) > 0 {
		rp, err := a.planWeekend(dbc, learnerID, dayNumber, targets, now)
		if err != nil {
			return nil, err
		}
		if rp != nil {
			out = append(out, *rp)
		}
	}
	if planning.TriggersResequence(dayNumber) {
		res, err := a.resequence(dbc, op, learnerID, now)
		if err != nil {
			return nil, err
		}
		if res.Applied {
			out = append(out, domainagg.Replan{
				Kind:       domainagg.ReplanAdaptive,
				DayNumbers: adaptiveDayNumbers(),
				Fallback:   res.Fallback,
			})
		}
	}
	return out, nil
}

func (a *studyPlanAggregate) planWeekend(dbc dbctx.Context, learnerID uuid.UUID, boundaryDay int, targets []int, now time.Time) (*domainagg.Replan, error) {
	targetRows, err := a.deps.Days.ListActiveDays(dbc, learnerID, targets)
	if err != nil {
		return nil, err
	}
	if len(targetRows) != len(targets) {
		return nil, InvariantError(fmt.Sprintf("active plan is missing review days %v", targets))
	}
	pending := make([]*types.PlanDay, 0, len(targetRows))
	for _, d := range targetRows {
		if !d.IsPlanned() {
			pending = append(pending, d)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	weekStart := studyplan.WeekStart(boundaryDay)
	var studyNumbers []int
	for d := weekStart; d < weekStart+7; d++ {
		if !studyplan.IsReviewDay(d) {
			studyNumbers = append(studyNumbers, d)
		}
	}
	studyDays, err := a.deps.Days.ListActiveDays(dbc, learnerID, studyNumbers)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(studyDays))
	for _, d := range studyDays {
		ids = append(ids, d.ID)
	}
	attempts, err := a.deps.Attempts.ListByPlanDays(dbc, ids)
	if err != nil {
		return nil, err
	}
	catalog, err := a.deps.Skills.List(dbc)
	if err != nil {
		return nil, err
	}
	ranked := planning.RankSkills(catalog)
	byID := make(map[uuid.UUID]*types.Skill, len(catalog))
	for _, s := range catalog {
		byID[s.ID] = s
	}

	rp := &domainagg.Replan{Kind: domainagg.ReplanWeekend}
	for _, day := range pending {
		selected, err := a.deps.Weekend.SelectWeekendSkills(dbc.Ctx, planning.WeekendRequest{
			LearnerID: learnerID,
			TargetDay: day.DayNumber,
			StudyDays: studyDays,
			Attempts:  attempts,
			Ranked:    ranked,
			Limit:     a.deps.Policy.WeekendSkillsPerDay,
		})
		if err != nil {
			a.deps.Base.Log.Warn("weekend planner failed; using the week's study skills",
				"learner_id", learnerID, "day", day.DayNumber, "error", err)
			selected = nil
		}
		if len(selected) == 0 {
			selected = planning.WeekSkills(studyDays, byID)
			rp.Fallback = true
		}
		if len(selected) == 0 {
			return nil, InvariantError(fmt.Sprintf("no skills available for %s", day.Label()))
		}
		if err := a.assignSkills(dbc, day, planning.SkillIDs(selected), true, now); err != nil {
			return nil, err
		}
		rp.DayNumbers = append(rp.DayNumbers, day.DayNumber)
	}
	return rp, nil
}

// assignSkills plans a pending day exactly once; a concurrent planner loses the CAS.
func (a *studyPlanAggregate) assignSkills(dbc dbctx.Context, day *types.PlanDay, skillIDs []uuid.UUID, reviewDay bool, now time.Time) error {
	raw, err := studyplan.EncodeSkillIDs(skillIDs)
	if err != nil {
		return err
	}
	return a.deps.Base.CASGuard.UpdateDay(dbc, day, map[string]any{
		"planned_skill_ids": raw,
		"planned_at":        now,
		"review_day":        reviewDay,
		"updated_at":        now,
	})
}

func adaptiveDayNumbers() []int {
	out := make([]int, 0, studyplan.AdaptiveDays)
	for d := studyplan.AdaptiveFirstDay; d <= studyplan.PlanLength; d++ {
		out = append(out, d)
	}
	return out
}

func (a *studyPlanAggregate) Resequence(ctx context.Context, in domainagg.ResequenceInput) (domainagg.ResequenceResult, error) {
	const op = "StudyPlan.Resequence"
	var out domainagg.ResequenceResult
	if in.LearnerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "study plan aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		trigger, err := a.deps.Days.LockActiveDay(dbc, in.LearnerID, studyplan.ResequenceTriggerDay)
		if err != nil {
			return err
		}
		if trigger == nil {
			return NotFoundError("learner has no active plan")
		}
		adminCompleted := trigger.Completed && trigger.AttemptCount == 0
		if !trigger.Terminal() && !adminCompleted {
			return PolicyError(fmt.Sprintf("%s is not finished yet", trigger.Label()))
		}
		out, err = a.resequence(dbc, op, in.LearnerID, a.deps.Clock.Now())
		return err
	})
	return out, err
}

// resequence fills days 22-30 from mastery predictions, falling back to frequency
// rank when the predictor is absent, fails, or returns nothing useful.
func (a *studyPlanAggregate) resequence(dbc dbctx.Context, op string, learnerID uuid.UUID, now time.Time) (domainagg.ResequenceResult, error) {
	var out domainagg.ResequenceResult
	days, err := a.deps.Days.ListActive(dbc, learnerID)
	if err != nil {
		return out, err
	}
	if len(days) != studyplan.PlanLength {
		return out, InvariantError(fmt.Sprintf("active plan has %d days", len(days)))
	}
	out.PlanVersion = days[0].PlanVersion

	adaptive := days[studyplan.AdaptiveFirstDay-1:]
	for _, d := range adaptive {
		if d.IsPlanned() {
			return out, nil
		}
	}

	loc := a.deps.Clock.Location()
	from := clock.StartOf(days[0].PlanDateTime(), loc)
	to := clock.StartOf(clock.AddDays(days[studyplan.ResequenceTriggerDay-1].PlanDateTime(), 1), loc)
	records, err := a.deps.Activity.FindBetween(dbc, learnerID, from, to)
	if err != nil {
		return out, err
	}
	catalog, err := a.deps.Skills.List(dbc)
	if err != nil {
		return out, err
	}
	catalog = planning.CatalogOrder(catalog)
	if len(catalog) == 0 {
		return out, domainagg.NewError(domainagg.CodePreconditionFailed, op, planning.ErrEmptyCatalog.Error(), planning.ErrEmptyCatalog)
	}

	predictions := a.predict(dbc.Ctx, learnerID, records, catalog)
	selected, fallback := planning.SelectAdaptiveSkills(predictions, catalog, a.deps.Policy.AdaptiveSkillCount)
	slots := planning.AssignCyclic(selected, len(adaptive))
	for i, d := range adaptive {
		if err := a.assignSkills(dbc, d, slots[i], false, now); err != nil {
			return out, err
		}
	}
	out.Applied = true
	out.Fallback = fallback
	out.SkillIDs = planning.SkillIDs(selected)
	return out, nil
}

func (a *studyPlanAggregate) predict(ctx context.Context, learnerID uuid.UUID, records []*types.AttemptRecord, catalog []*types.Skill) []float64 {
	if a.deps.Predictor == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.deps.PredictTimeout)
	defer cancel()
	preds, err := a.deps.Predictor.Predict(ctx, learnerID, records, catalog)
	if err != nil {
		a.deps.Base.Log.Warn("mastery predictor unavailable; using frequency fallback",
			"learner_id", learnerID, "records", len(records), "error", err)
		return nil
	}
	return preds
}

func (a *studyPlanAggregate) CompleteDay(ctx context.Context, in domainagg.CompleteDayInput) (domainagg.CompleteDayResult, error) {
	const op = "StudyPlan.CompleteDay"
	var out domainagg.CompleteDayResult
	if in.LearnerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	if in.DayNumber < 1 || in.DayNumber > studyplan.PlanLength {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("day number %d out of range", in.DayNumber), nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "study plan aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		now := a.deps.Clock.Now()
		day, err := a.deps.Days.LockActiveDay(dbc, in.LearnerID, in.DayNumber)
		if err != nil {
			return err
		}
		if day == nil {
			return NotFoundError(fmt.Sprintf("no active %s for learner", studyplan.DayLabel(in.DayNumber)))
		}
		out = domainagg.CompleteDayResult{PlanVersion: day.PlanVersion, DayNumber: day.DayNumber, Completed: true}
		if day.Completed {
			return nil
		}
		if err := a.deps.Base.CASGuard.UpdateDay(dbc, day, map[string]any{
			"completed":       true,
			"completion_date": datatypes.Date(a.deps.Clock.Today()),
			"updated_at":      now,
		}); err != nil {
			return err
		}
		out.Replans, err = a.fireTriggers(dbc, op, in.LearnerID, day.DayNumber, now)
		return err
	})
	return out, err
}

func (a *studyPlanAggregate) Regenerate(ctx context.Context, in domainagg.RegenerateInput) (domainagg.RegenerateResult, error) {
	const op = "StudyPlan.Regenerate"
	var out domainagg.RegenerateResult
	if in.LearnerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "study plan aggregate repos not configured", nil)
	}

	run, err := a.beginRegeneration(ctx, in.LearnerID)
	if err != nil {
		return out, err
	}
	out.RunID = run.ID
	out.FromVersion = run.FromVersion

	err = executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		now := a.deps.Clock.Now()
		locked, err := a.deps.Runs.LockByID(dbc, run.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return InvariantError("regeneration run disappeared")
		}
		if err := RequireStatusAllowed(locked.Status, studyplan.RegenerationStatusRunning); err != nil {
			return err
		}
		active, err := a.deps.Days.LockActive(dbc, in.LearnerID)
		if err != nil {
			return err
		}
		if err := a.requireRegenerationEligible(active); err != nil {
			return err
		}
		if _, err := a.deps.Days.ArchiveActive(dbc, in.LearnerID, now); err != nil {
			return err
		}
		version, days, err := a.generateNext(dbc, op, in.LearnerID)
		if err != nil {
			return err
		}
		ok, err := a.deps.Base.CASGuard.MoveRun(dbc, run.ID,
			[]string{studyplan.RegenerationStatusRunning}, map[string]any{
				"status":      studyplan.RegenerationStatusSucceeded,
				"to_version":  version,
				"finished_at": now,
				"updated_at":  now,
			})
		if err != nil {
			return err
		}
		if err := RequireCASSuccess(ok, "regeneration run closed concurrently"); err != nil {
			return err
		}
		swept, err := a.sweepRetention(dbc, in.LearnerID)
		if err != nil {
			return err
		}
		out.NewVersion = version
		out.Days = days
		out.Retention = swept
		return nil
	})
	if err != nil {
		a.abortRegeneration(ctx, run.ID, err)
		return domainagg.RegenerateResult{}, err
	}
	return out, nil
}

func (a *studyPlanAggregate) requireRegenerationEligible(active []*types.PlanDay) error {
	if len(active) == 0 {
		return NotFoundError("learner has no active plan")
	}
	completed := 0
	for _, d := range active {
		if d.Completed {
			completed++
		}
	}
	if completed < a.deps.Policy.MinCompletedDays {
		return PolicyError(fmt.Sprintf("regeneration requires %d completed days, have %d", a.deps.Policy.MinCompletedDays, completed))
	}
	return nil
}

// beginRegeneration validates eligibility and records the in-progress marker in its own
// transaction so an interrupted regeneration stays visible.
func (a *studyPlanAggregate) beginRegeneration(ctx context.Context, learnerID uuid.UUID) (*types.PlanRegenerationRun, error) {
	const op = "StudyPlan.Regenerate.Begin"
	var run *types.PlanRegenerationRun
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		now := a.deps.Clock.Now()
		active, err := a.deps.Days.ListActive(dbc, learnerID)
		if err != nil {
			return err
		}
		if err := a.requireRegenerationEligible(active); err != nil {
			return err
		}
		if _, err := a.closeStaleRuns(dbc, learnerID, now.Add(-a.deps.StaleRunAfter), now); err != nil {
			return err
		}
		running, err := a.deps.Runs.ListByLearner(dbc, learnerID, []string{studyplan.RegenerationStatusRunning})
		if err != nil {
			return err
		}
		if len(running) > 0 {
			return PolicyError("a plan regeneration is already in progress")
		}
		run, err = a.deps.Runs.Create(dbc, &types.PlanRegenerationRun{
			ID:          uuid.New(),
			LearnerID:   learnerID,
			Status:      studyplan.RegenerationStatusRunning,
			FromVersion: active[0].PlanVersion,
			StartedAt:   now,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return err
	})
	return run, err
}

func (a *studyPlanAggregate) abortRegeneration(ctx context.Context, runID uuid.UUID, cause error) {
	const op = "StudyPlan.Regenerate.Abort"
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		now := a.deps.Clock.Now()
		_, err := a.deps.Base.CASGuard.MoveRun(dbc, runID,
			[]string{studyplan.RegenerationStatusRunning}, map[string]any{
				"status":      studyplan.RegenerationStatusFailed,
				"error":       truncate(cause.Error(), 512),
				"finished_at": now,
				"updated_at":  now,
			})
		return err
	})
	if err != nil {
		a.deps.Base.Log.Error("failed to mark regeneration run failed", "run_id", runID, "cause", cause, "error", err)
	}
}

// closeStaleRuns fails running markers started before cutoff. A nil learner sweeps everyone.
func (a *studyPlanAggregate) closeStaleRuns(dbc dbctx.Context, learnerID uuid.UUID, cutoff, now time.Time) (int, error) {
	stale, err := a.deps.Runs.ListStartedBefore(dbc, learnerID, studyplan.RegenerationStatusRunning, cutoff)
	if err != nil {
		return 0, err
	}
	closed := 0
	for _, r := range stale {
		ok, err := a.deps.Base.CASGuard.MoveRun(dbc, r.ID,
			[]string{studyplan.RegenerationStatusRunning}, map[string]any{
				"status":      studyplan.RegenerationStatusFailed,
				"error":       "abandoned",
				"finished_at": now,
				"updated_at":  now,
			})
		if err != nil {
			return closed, err
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

func (a *studyPlanAggregate) RecoverRegeneration(ctx context.Context, in domainagg.RecoverRegenerationInput) (domainagg.RecoverRegenerationResult, error) {
	const op = "StudyPlan.RecoverRegeneration"
	var out domainagg.RecoverRegenerationResult
	if in.LearnerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "study plan aggregate repos not configured", nil)
	}
	staleAfter := in.StaleAfter
	if staleAfter <= 0 {
		staleAfter = a.deps.StaleRunAfter
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		out = domainagg.RecoverRegenerationResult{}
		now := a.deps.Clock.Now()
		closed, err := a.closeStaleRuns(dbc, in.LearnerID, now.Add(-staleAfter), now)
		if err != nil {
			return err
		}
		out.StaleRunsClosed = closed

		active, err := a.deps.Days.LockActive(dbc, in.LearnerID)
		if err != nil {
			return err
		}
		maxVersion, err := a.deps.Days.MaxVersion(dbc, in.LearnerID)
		if err != nil {
			return err
		}
		if len(active) > 0 || maxVersion == 0 {
			return nil
		}
		version, _, err := a.generateNext(dbc, op, in.LearnerID)
		if err != nil {
			return err
		}
		out.Restored = true
		out.NewVersion = version
		return nil
	})
	return out, err
}

func (a *studyPlanAggregate) SweepRetention(ctx context.Context, learnerID uuid.UUID) (domainagg.SweepRetentionResult, error) {
	const op = "StudyPlan.SweepRetention"
	var out domainagg.SweepRetentionResult
	if learnerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing learner_id", nil)
	}
	if !a.configured() {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "study plan aggregate repos not configured", nil)
	}
	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		var err error
		out, err = a.sweepRetention(dbc, learnerID)
		return err
	})
	if err != nil {
		return domainagg.SweepRetentionResult{}, err
	}
	return out, nil
}

// sweepRetention deletes every version older than the newest KeepVersions, review notes first.
func (a *studyPlanAggregate) sweepRetention(dbc dbctx.Context, learnerID uuid.UUID) (domainagg.SweepRetentionResult, error) {
	var out domainagg.SweepRetentionResult
	maxVersion, err := a.deps.Days.MaxVersion(dbc, learnerID)
	if err != nil {
		return out, err
	}
	cutoff := maxVersion - a.deps.Policy.KeepVersions
	if cutoff < 1 {
		return out, nil
	}
	versions, err := a.deps.Days.ListVersions(dbc, learnerID)
	if err != nil {
		return out, err
	}
	for _, v := range versions {
		if v.PlanVersion > cutoff {
			continue
		}
		if !v.Archived {
			return out, InvariantError(fmt.Sprintf("version %d is outside the retention window but not archived", v.PlanVersion))
		}
		out.DeletedVersions = append(out.DeletedVersions, v.PlanVersion)
	}
	if len(out.DeletedVersions) == 0 {
		return out, nil
	}
	ids, err := a.deps.Days.IDsUpToVersion(dbc, learnerID, cutoff)
	if err != nil {
		return out, err
	}
	if out.DeletedNotes, err = a.deps.Notes.DeleteByPlanDayIDs(dbc, ids); err != nil {
		return out, err
	}
	out.DeletedDays, err = a.deps.Days.DeleteUpToVersion(dbc, learnerID, cutoff)
	return out, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
