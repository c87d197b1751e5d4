package planning

import (
	"context"
	"sort"

	"github.com/google/uuid"

	types "github.com/yungbote/studyplan-backend/internal/domain"
)

// WeekendRequest carries everything a weekend strategy may look at. The strategy must
// not touch storage; the caller loads the week inside its transaction.
type WeekendRequest struct {
	LearnerID uuid.UUID
	TargetDay int
	// StudyDays are the planned weekday study days of the target's week, in day order.
	StudyDays []*types.PlanDay
	// Attempts are the learner's attempt records for those study days.
	Attempts []*types.AttemptRecord
	Ranked   []*types.Skill
	Limit    int
}

// WeekendPlanner selects the skills of one review day.
type WeekendPlanner interface {
	SelectWeekendSkills(ctx context.Context, req WeekendRequest) ([]*types.Skill, error)
}

// WeekSkills returns the distinct skills planned on the given study days, in day order.
func WeekSkills(studyDays []*types.PlanDay, catalog map[uuid.UUID]*types.Skill) []*types.Skill {
	seen := map[uuid.UUID]bool{}
	var out []*types.Skill
	for _, d := range studyDays {
		ids, err := d.SkillIDs()
		if err != nil {
			continue
		}
		for _, id := range ids {
			s := catalog[id]
			if s == nil || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, s)
		}
	}
	return out
}

// IncorrectRatePlanner ranks the week's skills by incorrect-answer rate, ties broken by
// frequency rank. The first review day of a week takes the weakest slice and the second
// day takes the next one.
type IncorrectRatePlanner struct{}

func NewIncorrectRatePlanner() *IncorrectRatePlanner { return &IncorrectRatePlanner{} }

func (p *IncorrectRatePlanner) SelectWeekendSkills(ctx context.Context, req WeekendRequest) ([]*types.Skill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultPolicy().WeekendSkillsPerDay
	}
	byID := make(map[uuid.UUID]*types.Skill, len(req.Ranked))
	for _, s := range req.Ranked {
		if s != nil {
			byID[s.ID] = s
		}
	}
	candidates := WeekSkills(req.StudyDays, byID)
	if len(candidates) == 0 {
		return nil, nil
	}

	type tally struct{ wrong, total int }
	stats := map[uuid.UUID]*tally{}
	for _, a := range req.Attempts {
		if a == nil {
			continue
		}
		t := stats[a.SkillID]
		if t == nil {
			t = &tally{}
			stats[a.SkillID] = t
		}
		t.total++
		if !a.Correct {
			t.wrong++
		}
	}
	rate := func(id uuid.UUID) float64 {
		t := stats[id]
		if t == nil || t.total == 0 {
			return 0
		}
		return float64(t.wrong) / float64(t.total)
	}
	rank := rankIndex(req.Ranked)
	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := rate(candidates[i].ID), rate(candidates[j].ID)
		if ri != rj {
			return ri > rj
		}
		return rank[candidates[i].ID] < rank[candidates[j].ID]
	})

	offset := 0
	if req.TargetDay%7 == 0 {
		offset = limit
	}
	if offset >= len(candidates) {
		offset = 0
	}
	return candidates[offset:min(offset+limit, len(candidates))], nil
}
