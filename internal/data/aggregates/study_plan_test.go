package aggregates

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/studyplan-backend/internal/data/repos"
	repotest "github.com/yungbote/studyplan-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyplan-backend/internal/domain"
	domainagg "github.com/yungbote/studyplan-backend/internal/domain/aggregates"
	"github.com/yungbote/studyplan-backend/internal/domain/studyplan"
	"github.com/yungbote/studyplan-backend/internal/modules/planning"
	"github.com/yungbote/studyplan-backend/internal/platform/clock"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
)

type planHarness struct {
	t        *testing.T
	ctx      context.Context
	clock    *clock.Fixed
	agg      domainagg.StudyPlanAggregate
	days     repos.PlanDayRepo
	attempts repos.AttemptRecordRepo
	notes    repos.ReviewNoteRepo
	runs     repos.RegenerationRunRepo
	skills   []*types.Skill
	learner  uuid.UUID
}

func newPlanHarness(t *testing.T, conn *gorm.DB, skillCount int, mutate func(*StudyPlanAggregateDeps)) *planHarness {
	t.Helper()
	ctx := context.Background()
	log := repotest.Logger(t)
	h := &planHarness{
		t:        t,
		ctx:      ctx,
		clock:    clock.NewFixed(time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)),
		days:     repos.NewPlanDayRepo(conn, log),
		attempts: repos.NewAttemptRecordRepo(conn, log),
		notes:    repos.NewReviewNoteRepo(conn, log),
		runs:     repos.NewRegenerationRunRepo(conn, log),
		skills:   repotest.SeedSkillCatalog(t, ctx, conn, skillCount),
		learner:  uuid.New(),
	}
	deps := StudyPlanAggregateDeps{
		Base: BaseDeps{
			DB:       conn,
			Log:      log,
			Runner:   NewGormTxRunner(conn),
			CASGuard: NewCASGuard(conn),
		},
		Skills:   repos.NewSkillRepo(conn, log),
		Days:     h.days,
		Attempts: h.attempts,
		Notes:    h.notes,
		Runs:     h.runs,
		Clock:    h.clock,
	}
	if mutate != nil {
		mutate(&deps)
	}
	h.agg = NewStudyPlanAggregate(deps)
	return h
}

func (h *planHarness) dbc() dbctx.Context { return dbctx.Context{Ctx: h.ctx} }

func (h *planHarness) generate() domainagg.GeneratePlanResult {
	h.t.Helper()
	res, err := h.agg.Generate(h.ctx, domainagg.GeneratePlanInput{LearnerID: h.learner})
	if err != nil {
		h.t.Fatalf("Generate: %v", err)
	}
	return res
}

func (h *planHarness) day(n int) *types.PlanDay {
	h.t.Helper()
	d, err := h.days.GetActiveDay(h.dbc(), h.learner, n)
	if err != nil {
		h.t.Fatalf("GetActiveDay(%d): %v", n, err)
	}
	if d == nil {
		h.t.Fatalf("Day%d missing from active plan", n)
	}
	return d
}

// answers builds five answers over the day's planned skills; the first wrong ones are incorrect.
func (h *planHarness) answers(n, wrong int) []domainagg.QuestionAnswer {
	h.t.Helper()
	ids, err := h.day(n).SkillIDs()
	if err != nil || len(ids) == 0 {
		h.t.Fatalf("Day%d has no planned skills (err=%v)", n, err)
	}
	out := make([]domainagg.QuestionAnswer, 0, 5)
	for i := 0; i < 5; i++ {
		out = append(out, domainagg.QuestionAnswer{
			QuestionID:  uuid.New(),
			SkillID:     ids[i%len(ids)],
			QuestionNum: i + 1,
			Correct:     i >= wrong,
		})
	}
	return out
}

func (h *planHarness) submit(n, wrong int) (domainagg.SubmitAttemptResult, error) {
	h.t.Helper()
	return h.agg.SubmitAttempt(h.ctx, domainagg.SubmitAttemptInput{
		LearnerID: h.learner,
		DayNumber: n,
		Answers:   h.answers(n, wrong),
	})
}

func (h *planHarness) completeDays(from, to int) domainagg.CompleteDayResult {
	h.t.Helper()
	var last domainagg.CompleteDayResult
	for n := from; n <= to; n++ {
		res, err := h.agg.CompleteDay(h.ctx, domainagg.CompleteDayInput{LearnerID: h.learner, DayNumber: n})
		if err != nil {
			h.t.Fatalf("CompleteDay(%d): %v", n, err)
		}
		last = res
	}
	return last
}

func (h *planHarness) plannedIDs(n int) []uuid.UUID {
	h.t.Helper()
	ids, err := h.day(n).SkillIDs()
	if err != nil {
		h.t.Fatalf("Day%d skills: %v", n, err)
	}
	return ids
}

func TestStudyPlanGenerateCreatesThirtyDays(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	h := newPlanHarness(t, tx, 40, nil)

	res := h.generate()
	if res.Version != 1 {
		t.Fatalf("version: want=1 got=%d", res.Version)
	}
	active, err := h.days.ListActive(h.dbc(), h.learner)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != studyplan.PlanLength {
		t.Fatalf("active days: want=%d got=%d", studyplan.PlanLength, len(active))
	}
	day1 := h.plannedIDs(1)
	if len(day1) != 2 || day1[0] != h.skills[0].ID || day1[1] != h.skills[1].ID {
		t.Fatalf("Day1 should carry the two most frequent skills, got %v", day1)
	}
	day8 := h.plannedIDs(8)
	if len(day8) != 2 || day8[0] != h.skills[10].ID {
		t.Fatalf("Day8 should start at rank 10, got %v", day8)
	}
	for _, n := range []int{6, 7, 13, 14, 20, 21, 22, 30} {
		if h.day(n).IsPlanned() {
			t.Fatalf("Day%d should not be planned at generation", n)
		}
	}
	if got := h.day(30).PlanDateTime(); !got.Equal(clock.AddDays(h.clock.Today(), 29)) {
		t.Fatalf("Day30 date: got %s", got)
	}

	_, err = h.agg.Generate(h.ctx, domainagg.GeneratePlanInput{LearnerID: h.learner})
	if !domainagg.IsCode(err, domainagg.CodePolicy) {
		t.Fatalf("second Generate: want policy error, got %v", err)
	}
}

func TestStudyPlanGenerateRequiresEnoughSkills(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	h := newPlanHarness(t, tx, 12, nil)

	_, err := h.agg.Generate(h.ctx, domainagg.GeneratePlanInput{LearnerID: h.learner})
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("want precondition failure, got %v", err)
	}
	active, err := h.days.ListActive(h.dbc(), h.learner)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("no rows should be written, got %d", len(active))
	}
}

func TestStudyPlanRetestLifecycle(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	h := newPlanHarness(t, tx, 40, nil)
	h.generate()

	first, err := h.submit(1, 3)
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if first.Passed || !first.RetestEligible || first.AttemptCount != 1 {
		t.Fatalf("first attempt: unexpected result %+v", first)
	}
	if first.State != studyplan.AttemptStateRetestAvailable {
		t.Fatalf("first state: want=%s got=%s", studyplan.AttemptStateRetestAvailable, first.State)
	}
	notes, err := h.notes.ListByLearner(h.dbc(), h.learner, false)
	if err != nil {
		t.Fatalf("ListByLearner: %v", err)
	}
	if len(notes) != 0 {
		t.Fatalf("notes should wait for a terminal outcome, got %d", len(notes))
	}

	second, err := h.submit(1, 2)
	if err != nil {
		t.Fatalf("retest: %v", err)
	}
	if second.Passed || second.RetestEligible || second.AttemptCount != 2 {
		t.Fatalf("retest: unexpected result %+v", second)
	}
	if second.State != studyplan.AttemptStateClosed {
		t.Fatalf("retest state: want=%s got=%s", studyplan.AttemptStateClosed, second.State)
	}

	if _, err := h.submit(1, 0); !domainagg.IsCode(err, domainagg.CodePolicy) {
		t.Fatalf("third attempt: want policy error, got %v", err)
	}

	incorrect, err := h.notes.ListByLearner(h.dbc(), h.learner, true)
	if err != nil {
		t.Fatalf("ListByLearner incorrect: %v", err)
	}
	if len(incorrect) != 2 {
		t.Fatalf("incorrect notes from the closing attempt: want=2 got=%d", len(incorrect))
	}
	retest, err := h.attempts.ListByPlanDay(h.dbc(), h.day(1).ID, 2)
	if err != nil {
		t.Fatalf("ListByPlanDay: %v", err)
	}
	if len(retest) != 5 {
		t.Fatalf("retest records: want=5 got=%d", len(retest))
	}
	d1 := h.day(1)
	if !d1.Completed || d1.LastScore == nil || *d1.LastScore != 0.6 {
		t.Fatalf("Day1 row after retest: %+v", d1)
	}
}

func TestStudyPlanPassOnFirstAttempt(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	h := newPlanHarness(t, tx, 40, nil)
	h.generate()

	res, err := h.submit(1, 1)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Passed || res.RetestEligible || res.Score != 0.8 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.EarnedPoints != 20 || res.PossiblePoints != 25 {
		t.Fatalf("points: want 20/25 got %v/%v", res.EarnedPoints, res.PossiblePoints)
	}
	if _, err := h.submit(1, 0); !domainagg.IsCode(err, domainagg.CodePolicy) {
		t.Fatalf("resubmitting a passed day: want policy error, got %v", err)
	}
	notes, err := h.notes.ListByLearner(h.dbc(), h.learner, false)
	if err != nil {
		t.Fatalf("ListByLearner: %v", err)
	}
	if len(notes) != 5 {
		t.Fatalf("review notes: want=5 got=%d", len(notes))
	}
}

func TestStudyPlanSubmitGating(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	h := newPlanHarness(t, tx, 40, nil)
	h.generate()

	if _, err := h.submit(2, 0); !domainagg.IsCode(err, domainagg.CodePolicy) {
		t.Fatalf("Day2 before Day1: want policy error, got %v", err)
	}
	if _, err := h.submit(1, 0); err != nil {
		t.Fatalf("Day1: %v", err)
	}
	if _, err := h.submit(2, 0); !domainagg.IsCode(err, domainagg.CodePolicy) {
		t.Fatalf("Day2 on the same calendar day: want policy error, got %v", err)
	}
	h.clock.AdvanceDays(1)
	if _, err := h.submit(2, 0); err != nil {
		t.Fatalf("Day2 the next day: %v", err)
	}

	_, err := h.agg.SubmitAttempt(h.ctx, domainagg.SubmitAttemptInput{LearnerID: h.learner, DayNumber: 3})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("no answers: want validation error, got %v", err)
	}
	_, err = h.agg.SubmitAttempt(h.ctx, domainagg.SubmitAttemptInput{LearnerID: h.learner, DayNumber: 31, Answers: h.answers(3, 0)})
	if !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("day out of range: want validation error, got %v", err)
	}
	_, err = h.agg.SubmitAttempt(h.ctx, domainagg.SubmitAttemptInput{LearnerID: uuid.New(), DayNumber: 1, Answers: h.answers(1, 0)})
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("unknown learner: want not found, got %v", err)
	}
}

func TestStudyPlanWeekendTriggerPrefersMissedSkills(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	h := newPlanHarness(t, tx, 40, nil)
	h.generate()

	var last domainagg.SubmitAttemptResult
	for n := 1; n <= 5; n++ {
		wrong := 0
		if n == 3 {
			wrong = 1
		}
		res, err := h.submit(n, wrong)
		if err != nil {
			t.Fatalf("Day%d: %v", n, err)
		}
		if n < 5 && len(res.Replans) != 0 {
			t.Fatalf("Day%d should not replan, got %+v", n, res.Replans)
		}
		last = res
		h.clock.AdvanceDays(1)
	}
	if len(last.Replans) != 1 || last.Replans[0].Kind != domainagg.ReplanWeekend {
		t.Fatalf("Day5 replans: %+v", last.Replans)
	}
	if got := last.Replans[0].DayNumbers; len(got) != 2 || got[0] != 6 || got[1] != 7 {
		t.Fatalf("weekend targets: %v", got)
	}

	day6 := h.plannedIDs(6)
	want6 := []uuid.UUID{h.skills[4].ID, h.skills[0].ID, h.skills[1].ID, h.skills[2].ID, h.skills[3].ID}
	if len(day6) != len(want6) {
		t.Fatalf("Day6 skills: want %d got %d", len(want6), len(day6))
	}
	for i := range want6 {
		if day6[i] != want6[i] {
			t.Fatalf("Day6 skill %d: want %s got %s", i, want6[i], day6[i])
		}
	}
	day7 := h.plannedIDs(7)
	if len(day7) != 5 || day7[0] != h.skills[5].ID || day7[4] != h.skills[9].ID {
		t.Fatalf("Day7 should take the next five skills, got %v", day7)
	}
	if !h.day(6).ReviewDay {
		t.Fatalf("Day6 should be flagged as a review day")
	}

	if _, err := h.submit(6, 0); err != nil {
		t.Fatalf("Day6 after weekend planning: %v", err)
	}
}

func TestStudyPlanWeekendPlannerFailureFallsBack(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	h := newPlanHarness(t, tx, 40, func(d *StudyPlanAggregateDeps) {
		d.Weekend = failingWeekendPlanner{}
	})
	h.generate()

	res := h.completeDays(1, 5)
	if len(res.Replans) != 1 || !res.Replans[0].Fallback {
		t.Fatalf("expected a fallback weekend replan, got %+v", res.Replans)
	}
	if got := h.plannedIDs(6); len(got) != 10 {
		t.Fatalf("fallback should use the week's study skills, got %d", len(got))
	}
}

func TestStudyPlanResequenceFallbackWithoutPredictor(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	h := newPlanHarness(t, tx, 40, nil)
	h.generate()

	_, err := h.agg.Resequence(h.ctx, domainagg.ResequenceInput{LearnerID: h.learner})
	if !domainagg.IsCode(err, domainagg.CodePolicy) {
		t.Fatalf("Resequence before Day21: want policy error, got %v", err)
	}

	res := h.completeDays(1, 21)
	if len(res.Replans) != 1 || res.Replans[0].Kind != domainagg.ReplanAdaptive || !res.Replans[0].Fallback {
		t.Fatalf("Day21 replans: %+v", res.Replans)
	}
	for i, n := 0, studyplan.AdaptiveFirstDay; n <= studyplan.PlanLength; i, n = i+1, n+1 {
		ids := h.plannedIDs(n)
		if len(ids) != 1 || ids[0] != h.skills[i].ID {
			t.Fatalf("Day%d: want rank %d skill, got %v", n, i, ids)
		}
	}

	again, err := h.agg.Resequence(h.ctx, domainagg.ResequenceInput{LearnerID: h.learner})
	if err != nil {
		t.Fatalf("second Resequence: %v", err)
	}
	if again.Applied {
		t.Fatalf("a planned week four must not be resequenced again")
	}
}

func TestStudyPlanResequenceUsesLowestPredictions(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	var seen int
	h := newPlanHarness(t, tx, 40, func(d *StudyPlanAggregateDeps) {
		d.Predictor = planning.PredictorFunc(func(_ context.Context, _ uuid.UUID, _ []*types.AttemptRecord, catalog []*types.Skill) ([]float64, error) {
			seen = len(catalog)
			out := make([]float64, len(catalog))
			for i := range out {
				out[i] = float64(100 - i)
			}
			return out, nil
		})
	})
	h.generate()

	res := h.completeDays(1, 21)
	if len(res.Replans) != 1 || res.Replans[0].Fallback {
		t.Fatalf("Day21 replans: %+v", res.Replans)
	}
	if seen != 40 {
		t.Fatalf("predictor catalog size: want=40 got=%d", seen)
	}
	if ids := h.plannedIDs(22); ids[0] != h.skills[39].ID {
		t.Fatalf("Day22 should hold the lowest-mastery skill, got %v", ids)
	}
	if ids := h.plannedIDs(30); ids[0] != h.skills[31].ID {
		t.Fatalf("Day30 should hold the ninth lowest skill, got %v", ids)
	}
}

func TestStudyPlanResequencePredictorErrorFallsBack(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	h := newPlanHarness(t, tx, 40, func(d *StudyPlanAggregateDeps) {
		d.Predictor = planning.PredictorFunc(func(context.Context, uuid.UUID, []*types.AttemptRecord, []*types.Skill) ([]float64, error) {
			return nil, planning.ErrPredictorUnavailable
		})
	})
	h.generate()

	res := h.completeDays(1, 21)
	if len(res.Replans) != 1 || !res.Replans[0].Fallback {
		t.Fatalf("Day21 replans: %+v", res.Replans)
	}
	if ids := h.plannedIDs(22); ids[0] != h.skills[0].ID {
		t.Fatalf("fallback Day22 should hold the top ranked skill, got %v", ids)
	}
}

func TestStudyPlanResequenceShortPredictionsFallBack(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	h := newPlanHarness(t, tx, 40, func(d *StudyPlanAggregateDeps) {
		d.Predictor = planning.PredictorFunc(func(context.Context, uuid.UUID, []*types.AttemptRecord, []*types.Skill) ([]float64, error) {
			return []float64{0.9, 0.1}, nil
		})
	})
	h.generate()

	res := h.completeDays(1, 21)
	if len(res.Replans) != 1 || res.Replans[0].Kind != domainagg.ReplanAdaptive || !res.Replans[0].Fallback {
		t.Fatalf("Day21 replans: %+v", res.Replans)
	}
	distinct := map[uuid.UUID]bool{}
	for n := studyplan.AdaptiveFirstDay; n <= studyplan.PlanLength; n++ {
		for _, id := range h.plannedIDs(n) {
			distinct[id] = true
		}
	}
	if len(distinct) != 9 {
		t.Fatalf("week four should cover 9 distinct skills, got %d", len(distinct))
	}
	if ids := h.plannedIDs(22); ids[0] != h.skills[0].ID {
		t.Fatalf("fallback Day22 should hold the top ranked skill, got %v", ids)
	}
}

func TestStudyPlanResequenceWindowFollowsPlanTimezone(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	seoul := time.FixedZone("KST", 9*3600)
	// 00:30 on 2026-03-02 in Seoul, still 2026-03-01 in UTC.
	fixed := clock.NewFixedIn(time.Date(2026, time.March, 1, 15, 30, 0, 0, time.UTC), seoul)
	var records int
	h := newPlanHarness(t, tx, 40, func(d *StudyPlanAggregateDeps) {
		d.Clock = fixed
		d.Predictor = planning.PredictorFunc(func(_ context.Context, _ uuid.UUID, rs []*types.AttemptRecord, catalog []*types.Skill) ([]float64, error) {
			records = len(rs)
			return nil, planning.ErrPredictorUnavailable
		})
	})
	h.clock = fixed
	h.generate()
	if got := h.day(1).PlanDateTime(); got.Day() != 2 {
		t.Fatalf("Day1 plan date should be the Seoul calendar date, got %s", got)
	}

	if _, err := h.submit(1, 0); err != nil {
		t.Fatalf("Day1: %v", err)
	}
	h.completeDays(2, 21)
	if records != 5 {
		t.Fatalf("records passed to predictor: want=5 got=%d", records)
	}
}

func TestStudyPlanRegenerateRequiresCompletedDays(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	h := newPlanHarness(t, tx, 40, nil)
	h.generate()

	h.completeDays(1, 4)
	_, err := h.agg.Regenerate(h.ctx, domainagg.RegenerateInput{LearnerID: h.learner})
	if !domainagg.IsCode(err, domainagg.CodePolicy) {
		t.Fatalf("four completed days: want policy error, got %v", err)
	}

	h.completeDays(5, 5)
	res, err := h.agg.Regenerate(h.ctx, domainagg.RegenerateInput{LearnerID: h.learner})
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if res.FromVersion != 1 || res.NewVersion != 2 || len(res.Days) != studyplan.PlanLength {
		t.Fatalf("unexpected result %+v", res)
	}
	old, err := h.days.ListByVersion(h.dbc(), h.learner, 1)
	if err != nil {
		t.Fatalf("ListByVersion: %v", err)
	}
	for _, d := range old {
		if !d.Archived || d.ArchivedAt == nil {
			t.Fatalf("%s of version 1 should be archived", d.Label())
		}
	}
	if n, err := h.days.CountCompletedActive(h.dbc(), h.learner); err != nil || n != 0 {
		t.Fatalf("fresh version completed days: n=%d err=%v", n, err)
	}
	runs, err := h.runs.ListByLearner(h.dbc(), h.learner, []string{studyplan.RegenerationStatusSucceeded})
	if err != nil {
		t.Fatalf("ListByLearner runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ToVersion != 2 || runs[0].FinishedAt == nil {
		t.Fatalf("succeeded runs: %+v", runs)
	}
}

func TestStudyPlanRetentionKeepsThreeVersions(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	hooks := &spyHooks{}
	h := newPlanHarness(t, tx, 40, func(d *StudyPlanAggregateDeps) {
		d.Base.Hooks = hooks
	})
	h.generate()

	if _, err := h.submit(1, 0); err != nil {
		t.Fatalf("Day1: %v", err)
	}
	var last domainagg.RegenerateResult
	for i := 0; i < 5; i++ {
		h.completeDays(1, 5)
		h.clock.AdvanceDays(1)
		res, err := h.agg.Regenerate(h.ctx, domainagg.RegenerateInput{LearnerID: h.learner})
		if err != nil {
			t.Fatalf("Regenerate #%d: %v", i+1, err)
		}
		last = res
	}
	if got := last.Retention.DeletedVersions; len(got) != 1 || got[0] != 3 {
		t.Fatalf("last regeneration should sweep version 3, got %+v", last.Retention)
	}
	for _, r := range hooks.Operations {
		if r.Op == "StudyPlan.SweepRetention" {
			t.Fatalf("retention must commit with the regeneration, saw a separate write %+v", r)
		}
	}

	versions, err := h.days.ListVersions(h.dbc(), h.learner)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("versions kept: want=3 got=%d (%+v)", len(versions), versions)
	}
	seen := map[int]bool{}
	for _, v := range versions {
		seen[v.PlanVersion] = true
	}
	for _, v := range []int{4, 5, 6} {
		if !seen[v] {
			t.Fatalf("version %d should survive retention, got %+v", v, versions)
		}
	}

	notes, err := h.notes.ListByLearner(h.dbc(), h.learner, false)
	if err != nil {
		t.Fatalf("ListByLearner: %v", err)
	}
	if len(notes) != 0 {
		t.Fatalf("notes of swept versions should be removed, got %d", len(notes))
	}
	records, err := h.attempts.FindBetween(h.dbc(), h.learner, time.Time{}, h.clock.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("FindBetween: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("attempt history is kept across retention: want=5 got=%d", len(records))
	}
}

func TestStudyPlanRegenerateFailureRollsBack(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	catalog := &flakyCatalog{}
	h := newPlanHarness(t, tx, 40, func(d *StudyPlanAggregateDeps) {
		catalog.inner = d.Skills
		d.Skills = catalog
	})
	h.generate()
	h.completeDays(1, 5)

	catalog.fail = true
	if _, err := h.agg.Regenerate(h.ctx, domainagg.RegenerateInput{LearnerID: h.learner}); err == nil {
		t.Fatalf("expected Regenerate to fail")
	}

	active, err := h.days.ListActive(h.dbc(), h.learner)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != studyplan.PlanLength || active[0].PlanVersion != 1 {
		t.Fatalf("version 1 should stay active, got %d rows", len(active))
	}
	if n, _ := h.days.CountCompletedActive(h.dbc(), h.learner); n != 5 {
		t.Fatalf("completed days should survive the rollback, got %d", n)
	}
	failed, err := h.runs.ListByLearner(h.dbc(), h.learner, []string{studyplan.RegenerationStatusFailed})
	if err != nil {
		t.Fatalf("ListByLearner runs: %v", err)
	}
	if len(failed) != 1 || failed[0].Error == "" {
		t.Fatalf("failed runs: %+v", failed)
	}

	catalog.fail = false
	res, err := h.agg.Regenerate(h.ctx, domainagg.RegenerateInput{LearnerID: h.learner})
	if err != nil {
		t.Fatalf("Regenerate after recovery: %v", err)
	}
	if res.NewVersion != 2 {
		t.Fatalf("new version: want=2 got=%d", res.NewVersion)
	}
}

func TestStudyPlanRecoverRegeneration(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	h := newPlanHarness(t, tx, 40, nil)
	h.generate()

	started := h.clock.Now().Add(-time.Hour)
	if _, err := h.runs.Create(h.dbc(), &types.PlanRegenerationRun{
		ID:          uuid.New(),
		LearnerID:   h.learner,
		Status:      studyplan.RegenerationStatusRunning,
		FromVersion: 1,
		StartedAt:   started,
		CreatedAt:   started,
		UpdatedAt:   started,
	}); err != nil {
		t.Fatalf("seed run: %v", err)
	}
	if _, err := h.days.ArchiveActive(h.dbc(), h.learner, h.clock.Now()); err != nil {
		t.Fatalf("ArchiveActive: %v", err)
	}

	res, err := h.agg.RecoverRegeneration(h.ctx, domainagg.RecoverRegenerationInput{LearnerID: h.learner, StaleAfter: 10 * time.Minute})
	if err != nil {
		t.Fatalf("RecoverRegeneration: %v", err)
	}
	if res.StaleRunsClosed != 1 || !res.Restored || res.NewVersion != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	again, err := h.agg.RecoverRegeneration(h.ctx, domainagg.RecoverRegenerationInput{LearnerID: h.learner})
	if err != nil {
		t.Fatalf("second RecoverRegeneration: %v", err)
	}
	if again.Restored || again.StaleRunsClosed != 0 {
		t.Fatalf("recovery should be a no-op once a plan is active, got %+v", again)
	}
}

func TestStudyPlanSweepRetentionValidatesLearner(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	h := newPlanHarness(t, tx, 40, nil)
	if _, err := h.agg.SweepRetention(h.ctx, uuid.Nil); !domainagg.IsCode(err, domainagg.CodeValidation) {
		t.Fatalf("want validation error, got %v", err)
	}
	res, err := h.agg.SweepRetention(h.ctx, h.learner)
	if err != nil {
		t.Fatalf("SweepRetention without plans: %v", err)
	}
	if len(res.DeletedVersions) != 0 {
		t.Fatalf("nothing to delete, got %+v", res)
	}
}

func TestStudyPlanThirtyDayWalkthrough(t *testing.T) {
	tx := repotest.Tx(t, repotest.DB(t))
	var records int
	h := newPlanHarness(t, tx, 40, func(d *StudyPlanAggregateDeps) {
		d.Predictor = planning.PredictorFunc(func(_ context.Context, _ uuid.UUID, rs []*types.AttemptRecord, catalog []*types.Skill) ([]float64, error) {
			records = len(rs)
			out := make([]float64, len(catalog))
			for i := range out {
				out[i] = 0.5
			}
			out[35] = 0.1
			return out, nil
		})
	})
	h.generate()

	for n := 1; n <= studyplan.ResequenceTriggerDay; n++ {
		if !h.day(n).IsPlanned() {
			t.Fatalf("Day%d should be planned by the time it is reached", n)
		}
		if _, err := h.submit(n, 0); err != nil {
			t.Fatalf("Day%d: %v", n, err)
		}
		h.clock.AdvanceDays(1)
	}
	if records != studyplan.ResequenceTriggerDay*5 {
		t.Fatalf("predictor records: want=%d got=%d", studyplan.ResequenceTriggerDay*5, records)
	}
	if ids := h.plannedIDs(22); ids[0] != h.skills[35].ID {
		t.Fatalf("Day22 should focus the weakest skill, got %v", ids)
	}
	for n := studyplan.AdaptiveFirstDay; n <= studyplan.PlanLength; n++ {
		if _, err := h.submit(n, 0); err != nil {
			t.Fatalf("Day%d: %v", n, err)
		}
		h.clock.AdvanceDays(1)
	}
	if n, err := h.days.CountCompletedActive(h.dbc(), h.learner); err != nil || n != studyplan.PlanLength {
		t.Fatalf("completed days: n=%d err=%v", n, err)
	}
}

func TestStudyPlanConcurrentSubmissionsAreSerialized(t *testing.T) {
	if os.Getenv("TEST_POSTGRES_DSN") != "" {
		t.Skip("shares catalog rows with other tests on Postgres")
	}
	db := repotest.DB(t)
	h := newPlanHarness(t, db, 40, nil)
	h.generate()
	answers := h.answers(1, 0)

	start := make(chan struct{})
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := h.agg.SubmitAttempt(h.ctx, domainagg.SubmitAttemptInput{
				LearnerID: h.learner,
				DayNumber: 1,
				Answers:   answers,
			})
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case domainagg.IsCode(err, domainagg.CodePolicy), domainagg.IsCode(err, domainagg.CodeConflict):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 1 {
		t.Fatalf("want one success and one rejection, got ok=%d rejected=%d", ok, rejected)
	}
	if d := h.day(1); d.AttemptCount != 1 || !d.Passed {
		t.Fatalf("Day1 after concurrent submissions: attempts=%d passed=%v", d.AttemptCount, d.Passed)
	}
}

type failingWeekendPlanner struct{}

func (failingWeekendPlanner) SelectWeekendSkills(context.Context, planning.WeekendRequest) ([]*types.Skill, error) {
	return nil, errors.New("weekend planner offline")
}

type flakyCatalog struct {
	inner planning.SkillCatalog
	fail  bool
}

func (c *flakyCatalog) List(dbc dbctx.Context) ([]*types.Skill, error) {
	if c.fail {
		return nil, errors.New("catalog unavailable")
	}
	return c.inner.List(dbc)
}
