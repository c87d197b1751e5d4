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
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
)

const dateLayout = "2006-01-02"

type PlanView struct {
	LearnerID     uuid.UUID  `json:"learner_id"`
	PlanVersion   int        `json:"plan_version"`
	CompletedDays int        `json:"completed_days"`
	Archived      bool       `json:"archived"`
	Days          []*DayView `json:"days"`
}

type DayView struct {
	DayNumber              int                    `json:"day_number"`
	Label                  string                 `json:"label"`
	PlanDate               string                 `json:"plan_date"`
	Kind                   string                 `json:"kind"`
	Skills                 []*types.Skill         `json:"skills"`
	ReviewDay              bool                   `json:"review_day"`
	ComprehensiveReviewDay bool                   `json:"comprehensive_review_day"`
	Completed              bool                   `json:"completed"`
	CompletionDate         string                 `json:"completion_date,omitempty"`
	Passed                 bool                   `json:"passed"`
	AttemptCount           int                    `json:"attempt_count"`
	RetestEligible         bool                   `json:"retest_eligible"`
	LastScore              *float64               `json:"last_score,omitempty"`
	State                  studyplan.AttemptState `json:"state"`
	Available              bool                   `json:"available"`
	AccessReason           string                 `json:"access_reason"`
}

type AccessView struct {
	DayNumber int    `json:"day_number"`
	Available bool   `json:"available"`
	Reason    string `json:"reason"`
}

type SkillResult struct {
	SkillID        uuid.UUID `json:"skill_id"`
	KeyConcept     string    `json:"key_concept"`
	Title          string    `json:"title"`
	Correct        int       `json:"correct"`
	Total          int       `json:"total"`
	EarnedPoints   float64   `json:"earned_points"`
	PossiblePoints float64   `json:"possible_points"`
}

type DayResultsView struct {
	DayNumber      int           `json:"day_number"`
	AttemptNo      int           `json:"attempt_no"`
	Passed         bool          `json:"passed"`
	Score          float64       `json:"score"`
	EarnedPoints   float64       `json:"earned_points"`
	PossiblePoints float64       `json:"possible_points"`
	Skills         []SkillResult `json:"skills"`
}

type WeeklyResultsView struct {
	Week    int               `json:"week"`
	FromDay int               `json:"from_day"`
	ToDay   int               `json:"to_day"`
	Days    []*DayResultsView `json:"days"`
}

type EligibilityView struct {
	CompletedDays int  `json:"completed_days"`
	Required      int  `json:"required"`
	Eligible      bool `json:"eligible"`
	InProgress    bool `json:"in_progress"`
}

func (s *studyPlanService) GetPlan(ctx context.Context, learnerID uuid.UUID) (view *PlanView, err error) {
	const op = "StudyPlanService.GetPlan"
	ctx, span := observability.StartSpan(ctx, op)
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return nil, err
	}
	days, err := s.days.ListActive(dbctx.Read(ctx), learnerID)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "learner has no active plan", nil)
	}
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	return buildPlanView(learnerID, days, catalog, s.clock.Today()), nil
}

func buildPlanView(learnerID uuid.UUID, days []*types.PlanDay, catalog map[uuid.UUID]*types.Skill, today time.Time) *PlanView {
	view := &PlanView{LearnerID: learnerID, Days: make([]*DayView, 0, len(days))}
	var prev *types.PlanDay
	for _, d := range days {
		view.PlanVersion = d.PlanVersion
		view.Archived = d.Archived
		if d.Completed {
			view.CompletedDays++
		}
		view.Days = append(view.Days, buildDayView(prev, d, catalog, today))
		prev = d
	}
	return view
}

func buildDayView(prev, d *types.PlanDay, catalog map[uuid.UUID]*types.Skill, today time.Time) *DayView {
	v := &DayView{
		DayNumber:              d.DayNumber,
		Label:                  d.Label(),
		PlanDate:               d.PlanDateTime().Format(dateLayout),
		Kind:                   string(d.Kind),
		Skills:                 []*types.Skill{},
		ReviewDay:              d.ReviewDay,
		ComprehensiveReviewDay: d.ComprehensiveReviewDay,
		Completed:              d.Completed,
		Passed:                 d.Passed,
		AttemptCount:           d.AttemptCount,
		RetestEligible:         d.RetestEligible,
		LastScore:              d.LastScore,
		State:                  d.AttemptState(),
	}
	if kind, err := studyplan.KindOf(d); err == nil {
		v.Kind = kind.Name()
		for _, id := range studyplan.PlannedSkills(kind) {
			if sk, ok := catalog[id]; ok {
				v.Skills = append(v.Skills, sk)
			}
		}
	}
	if d.CompletionDate != nil {
		v.CompletionDate = d.CompletionDateTime().Format(dateLayout)
	}
	v.Available, v.AccessReason = planning.CheckAccess(prev, d, today)
	return v
}

// activeDayWithPrev loads day n and its predecessor from the active version.
func (s *studyPlanService) activeDayWithPrev(ctx context.Context, op string, learnerID uuid.UUID, dayNumber int) (prev, day *types.PlanDay, err error) {
	numbers := []int{dayNumber}
	if dayNumber > 1 {
		numbers = []int{dayNumber - 1, dayNumber}
	}
	rows, err := s.days.ListActiveDays(dbctx.Read(ctx), learnerID, numbers)
	if err != nil {
		return nil, nil, err
	}
	for _, r := range rows {
		switch r.DayNumber {
		case dayNumber:
			day = r
		case dayNumber - 1:
			prev = r
		}
	}
	if day == nil {
		return nil, nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("no active %s for learner", studyplan.DayLabel(dayNumber)), nil)
	}
	return prev, day, nil
}

func (s *studyPlanService) CanAccess(ctx context.Context, learnerID uuid.UUID, dayNumber int) (view *AccessView, err error) {
	const op = "StudyPlanService.CanAccess"
	ctx, span := observability.StartSpan(ctx, op, attribute.Int("plan.day", dayNumber))
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return nil, err
	}
	if err := validDay(op, dayNumber); err != nil {
		return nil, err
	}
	prev, day, err := s.activeDayWithPrev(ctx, op, learnerID, dayNumber)
	if err != nil {
		return nil, err
	}
	ok, reason := planning.CheckAccess(prev, day, s.clock.Today())
	return &AccessView{DayNumber: dayNumber, Available: ok, Reason: reason}, nil
}

func (s *studyPlanService) GetDayStatus(ctx context.Context, learnerID uuid.UUID, dayNumber int) (view *DayView, err error) {
	const op = "StudyPlanService.GetDayStatus"
	ctx, span := observability.StartSpan(ctx, op, attribute.Int("plan.day", dayNumber))
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return nil, err
	}
	if err := validDay(op, dayNumber); err != nil {
		return nil, err
	}
	prev, day, err := s.activeDayWithPrev(ctx, op, learnerID, dayNumber)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	return buildDayView(prev, day, catalog, s.clock.Today()), nil
}

func (s *studyPlanService) GetDayConcepts(ctx context.Context, learnerID uuid.UUID, dayNumber int) (out []*types.Skill, err error) {
	const op = "StudyPlanService.GetDayConcepts"
	ctx, span := observability.StartSpan(ctx, op, attribute.Int("plan.day", dayNumber))
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return nil, err
	}
	if err := validDay(op, dayNumber); err != nil {
		return nil, err
	}
	_, day, err := s.activeDayWithPrev(ctx, op, learnerID, dayNumber)
	if err != nil {
		return nil, err
	}
	ids, err := day.SkillIDs()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, domainagg.NewError(domainagg.CodePolicy, op, fmt.Sprintf("%s is not planned yet", day.Label()), nil)
	}
	found, err := s.skills.GetByIDs(dbctx.Read(ctx), ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.Skill, len(found))
	for _, sk := range found {
		byID[sk.ID] = sk
	}
	out = make([]*types.Skill, 0, len(ids))
	for _, id := range ids {
		if sk, ok := byID[id]; ok {
			out = append(out, sk)
		}
	}
	return out, nil
}

func (s *studyPlanService) GetDaySkillResults(ctx context.Context, learnerID uuid.UUID, dayNumber int) (view *DayResultsView, err error) {
	const op = "StudyPlanService.GetDaySkillResults"
	ctx, span := observability.StartSpan(ctx, op, attribute.Int("plan.day", dayNumber))
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return nil, err
	}
	if err := validDay(op, dayNumber); err != nil {
		return nil, err
	}
	_, day, err := s.activeDayWithPrev(ctx, op, learnerID, dayNumber)
	if err != nil {
		return nil, err
	}
	if day.AttemptCount == 0 {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("%s has no attempts", day.Label()), nil)
	}
	records, err := s.attempts.ListByPlanDay(dbctx.Read(ctx), day.ID, day.AttemptCount)
	if err != nil {
		return nil, err
	}
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	return summarizeAttempt(day, records, catalog), nil
}

func (s *studyPlanService) GetWeeklyResults(ctx context.Context, learnerID uuid.UUID, dayNumber int) (view *WeeklyResultsView, err error) {
	const op = "StudyPlanService.GetWeeklyResults"
	ctx, span := observability.StartSpan(ctx, op, attribute.Int("plan.day", dayNumber))
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return nil, err
	}
	if err := validDay(op, dayNumber); err != nil {
		return nil, err
	}
	from := studyplan.WeekStart(dayNumber)
	to := min(from+6, studyplan.PlanLength)
	numbers := make([]int, 0, to-from+1)
	for d := from; d <= to; d++ {
		numbers = append(numbers, d)
	}
	dbc := dbctx.Read(ctx)
	days, err := s.days.ListActiveDays(dbc, learnerID, numbers)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, "learner has no active plan", nil)
	}
	ids := make([]uuid.UUID, 0, len(days))
	for _, d := range days {
		ids = append(ids, d.ID)
	}
	records, err := s.attempts.ListByPlanDays(dbc, ids)
	if err != nil {
		return nil, err
	}
	byDay := map[uuid.UUID][]*types.AttemptRecord{}
	for _, r := range records {
		byDay[r.PlanDayID] = append(byDay[r.PlanDayID], r)
	}
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}

	view = &WeeklyResultsView{Week: (from-1)/7 + 1, FromDay: from, ToDay: to, Days: make([]*DayResultsView, 0, len(days))}
	for _, d := range days {
		latest := make([]*types.AttemptRecord, 0, len(byDay[d.ID]))
		for _, r := range byDay[d.ID] {
			if r.AttemptNo == d.AttemptCount {
				latest = append(latest, r)
			}
		}
		view.Days = append(view.Days, summarizeAttempt(d, latest, catalog))
	}
	return view, nil
}

// summarizeAttempt groups one attempt's records per skill, planned skills first.
func summarizeAttempt(day *types.PlanDay, records []*types.AttemptRecord, catalog map[uuid.UUID]*types.Skill) *DayResultsView {
	view := &DayResultsView{
		DayNumber: day.DayNumber,
		AttemptNo: day.AttemptCount,
		Passed:    day.Passed,
		Skills:    []SkillResult{},
	}
	index := map[uuid.UUID]int{}
	add := func(id uuid.UUID) int {
		if i, ok := index[id]; ok {
			return i
		}
		res := SkillResult{SkillID: id}
		if sk, ok := catalog[id]; ok {
			res.KeyConcept = sk.KeyConcept
			res.Title = sk.Title
		}
		view.Skills = append(view.Skills, res)
		index[id] = len(view.Skills) - 1
		return index[id]
	}
	planned, _ := day.SkillIDs()
	for _, id := range planned {
		add(id)
	}
	for _, r := range records {
		i := add(r.SkillID)
		view.Skills[i].Total++
		view.Skills[i].PossiblePoints += r.Points
		view.Skills[i].EarnedPoints += r.EarnedPoints
		if r.Correct {
			view.Skills[i].Correct++
		}
		view.PossiblePoints += r.Points
		view.EarnedPoints += r.EarnedPoints
	}
	if view.PossiblePoints > 0 {
		view.Score = view.EarnedPoints / view.PossiblePoints
	}
	return view
}

func (s *studyPlanService) GetRegenerationEligibility(ctx context.Context, learnerID uuid.UUID) (view *EligibilityView, err error) {
	const op = "StudyPlanService.GetRegenerationEligibility"
	ctx, span := observability.StartSpan(ctx, op)
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return nil, err
	}
	dbc := dbctx.Read(ctx)
	completed, err := s.days.CountCompletedActive(dbc, learnerID)
	if err != nil {
		return nil, err
	}
	running, err := s.runs.ListByLearner(dbc, learnerID, []string{studyplan.RegenerationStatusRunning})
	if err != nil {
		return nil, err
	}
	return &EligibilityView{
		CompletedDays: int(completed),
		Required:      s.policy.MinCompletedDays,
		Eligible:      int(completed) >= s.policy.MinCompletedDays && len(running) == 0,
		InProgress:    len(running) > 0,
	}, nil
}

func (s *studyPlanService) ListPlanVersions(ctx context.Context, learnerID uuid.UUID) (out []repos.VersionSummary, err error) {
	const op = "StudyPlanService.ListPlanVersions"
	ctx, span := observability.StartSpan(ctx, op)
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return nil, err
	}
	return s.days.ListVersions(dbctx.Read(ctx), learnerID)
}

// GetPlanVersion reads one retained version, active or archived.
func (s *studyPlanService) GetPlanVersion(ctx context.Context, learnerID uuid.UUID, version int) (view *PlanView, err error) {
	const op = "StudyPlanService.GetPlanVersion"
	ctx, span := observability.StartSpan(ctx, op, attribute.Int("plan.version", version))
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return nil, err
	}
	if version < 1 {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("plan version %d out of range", version), nil)
	}
	days, err := s.days.ListByVersion(dbctx.Read(ctx), learnerID, version)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("plan version %d is not retained", version), nil)
	}
	catalog, err := s.catalog(ctx)
	if err != nil {
		return nil, err
	}
	return buildPlanView(learnerID, days, catalog, s.clock.Today()), nil
}

func (s *studyPlanService) ListReviewNotes(ctx context.Context, learnerID uuid.UUID, onlyIncorrect bool) (out []*types.ReviewNote, err error) {
	const op = "StudyPlanService.ListReviewNotes"
	ctx, span := observability.StartSpan(ctx, op, attribute.Bool("notes.only_incorrect", onlyIncorrect))
	defer func() { observability.EndSpan(span, err) }()
	if err := s.ready(op); err != nil {
		return nil, err
	}
	return s.notes.ListByLearner(dbctx.Read(ctx), learnerID, onlyIncorrect)
}
