package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	domainagg "github.com/yungbote/studyplan-backend/internal/domain/aggregates"
	"github.com/yungbote/studyplan-backend/internal/domain/studyplan"
	"github.com/yungbote/studyplan-backend/internal/http/response"
	"github.com/yungbote/studyplan-backend/internal/services"
)

type StudyPlanHandler struct {
	plans services.StudyPlanService
}

func NewStudyPlanHandler(plans services.StudyPlanService) *StudyPlanHandler {
	return &StudyPlanHandler{plans: plans}
}

type answerRequest struct {
	QuestionID     uuid.UUID `json:"question_id" binding:"required"`
	SkillID        uuid.UUID `json:"skill_id" binding:"required"`
	QuestionNum    int       `json:"question_num"`
	SelectedOption string    `json:"selected_option"`
	Correct        bool      `json:"correct"`
	Points         float64   `json:"points"`
	TimeSpentSec   int       `json:"time_spent_sec"`
}

type submitAttemptRequest struct {
	Answers []answerRequest `json:"answers" binding:"required,min=1,dive"`
}

func learnerParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("learnerId"))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_learner_id", err)
		return uuid.Nil, false
	}
	return id, true
}

func learnerDayParams(c *gin.Context) (uuid.UUID, int, bool) {
	learnerID, ok := learnerParam(c)
	if !ok {
		return uuid.Nil, 0, false
	}
	day, err := studyplan.ParseDayNumber(c.Param("day"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_day", err)
		return uuid.Nil, 0, false
	}
	return learnerID, day, true
}

// POST /api/v1/learners/:learnerId/plan
func (h *StudyPlanHandler) Generate(c *gin.Context) {
	learnerID, ok := learnerParam(c)
	if !ok {
		return
	}
	plan, err := h.plans.Generate(c.Request.Context(), learnerID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"plan": plan})
}

// GET /api/v1/learners/:learnerId/plan
func (h *StudyPlanHandler) GetPlan(c *gin.Context) {
	learnerID, ok := learnerParam(c)
	if !ok {
		return
	}
	plan, err := h.plans.GetPlan(c.Request.Context(), learnerID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"plan": plan})
}

// GET /api/v1/learners/:learnerId/plan/days/:day
func (h *StudyPlanHandler) GetDayStatus(c *gin.Context) {
	learnerID, day, ok := learnerDayParams(c)
	if !ok {
		return
	}
	status, err := h.plans.GetDayStatus(c.Request.Context(), learnerID, day)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"day": status})
}

// GET /api/v1/learners/:learnerId/plan/days/:day/access
func (h *StudyPlanHandler) CanAccess(c *gin.Context) {
	learnerID, day, ok := learnerDayParams(c)
	if !ok {
		return
	}
	access, err := h.plans.CanAccess(c.Request.Context(), learnerID, day)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"access": access})
}

// GET /api/v1/learners/:learnerId/plan/days/:day/concepts
func (h *StudyPlanHandler) GetDayConcepts(c *gin.Context) {
	learnerID, day, ok := learnerDayParams(c)
	if !ok {
		return
	}
	skills, err := h.plans.GetDayConcepts(c.Request.Context(), learnerID, day)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"day_number": day, "skills": skills})
}

// GET /api/v1/learners/:learnerId/plan/days/:day/results
func (h *StudyPlanHandler) GetDaySkillResults(c *gin.Context) {
	learnerID, day, ok := learnerDayParams(c)
	if !ok {
		return
	}
	results, err := h.plans.GetDaySkillResults(c.Request.Context(), learnerID, day)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"results": results})
}

// GET /api/v1/learners/:learnerId/plan/days/:day/weekly-results
func (h *StudyPlanHandler) GetWeeklyResults(c *gin.Context) {
	learnerID, day, ok := learnerDayParams(c)
	if !ok {
		return
	}
	results, err := h.plans.GetWeeklyResults(c.Request.Context(), learnerID, day)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"results": results})
}

// POST /api/v1/learners/:learnerId/plan/days/:day/attempts
func (h *StudyPlanHandler) SubmitAttempt(c *gin.Context) {
	learnerID, day, ok := learnerDayParams(c)
	if !ok {
		return
	}
	var req submitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	answers := make([]domainagg.QuestionAnswer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, domainagg.QuestionAnswer{
			QuestionID:     a.QuestionID,
			SkillID:        a.SkillID,
			QuestionNum:    a.QuestionNum,
			SelectedOption: a.SelectedOption,
			Correct:        a.Correct,
			Points:         a.Points,
			TimeSpentSec:   a.TimeSpentSec,
		})
	}
	res, err := h.plans.SubmitAttempt(c.Request.Context(), learnerID, day, answers)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"day_number":      res.DayNumber,
		"plan_version":    res.PlanVersion,
		"passed":          res.Passed,
		"attempt_count":   res.AttemptCount,
		"retest_eligible": res.RetestEligible,
		"score":           res.Score,
		"earned_points":   res.EarnedPoints,
		"possible_points": res.PossiblePoints,
		"state":           res.State,
		"replans":         replansJSON(res.Replans),
	})
}

// POST /api/v1/learners/:learnerId/plan/days/:day/complete
func (h *StudyPlanHandler) CompleteDay(c *gin.Context) {
	learnerID, day, ok := learnerDayParams(c)
	if !ok {
		return
	}
	res, err := h.plans.CompleteDay(c.Request.Context(), learnerID, day)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"day_number":   res.DayNumber,
		"plan_version": res.PlanVersion,
		"completed":    res.Completed,
		"replans":      replansJSON(res.Replans),
	})
}

// POST /api/v1/learners/:learnerId/plan/resequence
func (h *StudyPlanHandler) Resequence(c *gin.Context) {
	learnerID, ok := learnerParam(c)
	if !ok {
		return
	}
	res, err := h.plans.Resequence(c.Request.Context(), learnerID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"plan_version": res.PlanVersion,
		"applied":      res.Applied,
		"fallback":     res.Fallback,
		"skill_ids":    res.SkillIDs,
	})
}

// POST /api/v1/learners/:learnerId/plan/regeneration/recover
func (h *StudyPlanHandler) RecoverRegeneration(c *gin.Context) {
	learnerID, ok := learnerParam(c)
	if !ok {
		return
	}
	res, err := h.plans.RecoverRegeneration(c.Request.Context(), learnerID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"stale_runs_closed": res.StaleRunsClosed,
		"restored":          res.Restored,
		"plan_version":      res.NewVersion,
	})
}

// POST /api/v1/learners/:learnerId/plan/regenerate
func (h *StudyPlanHandler) RegeneratePlan(c *gin.Context) {
	learnerID, ok := learnerParam(c)
	if !ok {
		return
	}
	res, err := h.plans.RegeneratePlan(c.Request.Context(), learnerID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"run_id":       res.RunID,
		"from_version": res.FromVersion,
		"plan_version": res.NewVersion,
		"retention": gin.H{
			"deleted_versions": res.Retention.DeletedVersions,
			"deleted_days":     res.Retention.DeletedDays,
		},
	})
}

// GET /api/v1/learners/:learnerId/plan/regeneration
func (h *StudyPlanHandler) GetRegenerationEligibility(c *gin.Context) {
	learnerID, ok := learnerParam(c)
	if !ok {
		return
	}
	elig, err := h.plans.GetRegenerationEligibility(c.Request.Context(), learnerID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"eligibility": elig})
}

// GET /api/v1/learners/:learnerId/plan/versions
func (h *StudyPlanHandler) ListPlanVersions(c *gin.Context) {
	learnerID, ok := learnerParam(c)
	if !ok {
		return
	}
	versions, err := h.plans.ListPlanVersions(c.Request.Context(), learnerID)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"versions": versions})
}

// GET /api/v1/learners/:learnerId/plan/versions/:version
func (h *StudyPlanHandler) GetPlanVersion(c *gin.Context) {
	learnerID, ok := learnerParam(c)
	if !ok {
		return
	}
	version, err := strconv.Atoi(c.Param("version"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_version", err)
		return
	}
	view, err := h.plans.GetPlanVersion(c.Request.Context(), learnerID, version)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"plan": view})
}

// GET /api/v1/learners/:learnerId/plan/review-notes?only_incorrect=true
func (h *StudyPlanHandler) ListReviewNotes(c *gin.Context) {
	learnerID, ok := learnerParam(c)
	if !ok {
		return
	}
	onlyIncorrect := false
	if raw := c.Query("only_incorrect"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_query", err)
			return
		}
		onlyIncorrect = v
	}
	notes, err := h.plans.ListReviewNotes(c.Request.Context(), learnerID, onlyIncorrect)
	if err != nil {
		response.RespondServiceError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"review_notes": notes})
}

func replansJSON(replans []domainagg.Replan) []gin.H {
	out := make([]gin.H, 0, len(replans))
	for _, rp := range replans {
		out = append(out, gin.H{"kind": rp.Kind, "day_numbers": rp.DayNumbers, "fallback": rp.Fallback})
	}
	return out
}
