package planning

import (
	"context"
	"testing"

	"github.com/google/uuid"

	types "github.com/yungbote/studyplan-backend/internal/domain"
	"github.com/yungbote/studyplan-backend/internal/domain/studyplan"
)

func TestIncorrectRatePlanner(t *testing.T) {
	cat := catalogOf(30)
	ranked := RankSkills(cat)
	var week []*types.PlanDay
	for d := 1; d <= 5; d++ {
		raw, _ := studyplan.EncodeSkillIDs([]uuid.UUID{ranked[2*(d-1)].ID, ranked[2*(d-1)+1].ID})
		week = append(week, &types.PlanDay{DayNumber: d, Kind: studyplan.DayTypeStudy, PlannedSkillIDs: raw})
	}
	attempts := []*types.AttemptRecord{
		{SkillID: ranked[9].ID, Correct: false},
		{SkillID: ranked[9].ID, Correct: false},
		{SkillID: ranked[4].ID, Correct: false},
		{SkillID: ranked[4].ID, Correct: true},
		{SkillID: ranked[0].ID, Correct: true},
	}
	p := NewIncorrectRatePlanner()
	req := WeekendRequest{LearnerID: uuid.New(), TargetDay: 6, StudyDays: week, Attempts: attempts, Ranked: ranked, Limit: 5}

	first, err := p.SelectWeekendSkills(context.Background(), req)
	if err != nil {
		t.Fatalf("Day6: %v", err)
	}
	if len(first) != 5 || first[0] != ranked[9] || first[1] != ranked[4] || first[2] != ranked[0] {
		t.Fatalf("Day6 order unexpected: %v", positions(first))
	}

	req.TargetDay = 7
	second, err := p.SelectWeekendSkills(context.Background(), req)
	if err != nil {
		t.Fatalf("Day7: %v", err)
	}
	if len(second) != 5 {
		t.Fatalf("Day7 len: %d", len(second))
	}
	for _, a := range first {
		for _, b := range second {
			if a == b {
				t.Fatalf("review days overlap on position %d", a.Position)
			}
		}
	}
}

func TestIncorrectRatePlanner_NoStudyDays(t *testing.T) {
	got, err := NewIncorrectRatePlanner().SelectWeekendSkills(context.Background(), WeekendRequest{TargetDay: 6})
	if err != nil || got != nil {
		t.Fatalf("want nil, nil; got %v, %v", got, err)
	}
}

func positions(skills []*types.Skill) []int {
	out := make([]int, 0, len(skills))
	for _, s := range skills {
		out = append(out, s.Position)
	}
	return out
}
