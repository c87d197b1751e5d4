package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/studyplan-backend/internal/domain"
	"github.com/yungbote/studyplan-backend/internal/domain/studyplan"
)

// SeedSkillCatalog inserts n skills at positions 0..n-1 with frequencies n..1.
func SeedSkillCatalog(tb testing.TB, ctx context.Context, tx *gorm.DB, n int) []*types.Skill {
	tb.Helper()
	out := make([]*types.Skill, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &types.Skill{
			ID:         uuid.New(),
			Position:   i,
			Title:      fmt.Sprintf("subject-%d", i%2+1),
			KeyConcept: fmt.Sprintf("concept-%02d", i),
			Category:   fmt.Sprintf("category-%d", i%4),
			Frequency:  n - i,
		})
	}
	if n == 0 {
		return out
	}
	if err := tx.WithContext(ctx).Create(&out).Error; err != nil {
		tb.Fatalf("seed skills: %v", err)
	}
	return out
}

// SeedPlanDay inserts a single day row; mutate fills any non-default fields.
func SeedPlanDay(tb testing.TB, ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, version, day int, planDate time.Time, mutate func(*types.PlanDay)) *types.PlanDay {
	tb.Helper()
	row := &types.PlanDay{
		ID:          uuid.New(),
		LearnerID:   learnerID,
		PlanVersion: version,
		DayNumber:   day,
		PlanDate:    datatypes.Date(planDate),
		Kind:        studyplan.DayTypeStudy,
	}
	switch {
	case studyplan.IsReviewDay(day):
		row.Kind = studyplan.DayTypeReview
		row.ReviewDay = true
	case studyplan.IsAdaptiveDay(day):
		row.Kind = studyplan.DayTypeAdaptive
		row.ComprehensiveReviewDay = true
	default:
		raw, err := studyplan.EncodeSkillIDs([]uuid.UUID{uuid.New(), uuid.New()})
		if err != nil {
			tb.Fatalf("encode skills: %v", err)
		}
		row.PlannedSkillIDs = raw
	}
	if mutate != nil {
		mutate(row)
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed plan day: %v", err)
	}
	return row
}

// SeedPlanVersion inserts all 30 days of a version starting at start.
func SeedPlanVersion(tb testing.TB, ctx context.Context, tx *gorm.DB, learnerID uuid.UUID, version int, start time.Time, mutate func(*types.PlanDay)) []*types.PlanDay {
	tb.Helper()
	out := make([]*types.PlanDay, 0, studyplan.PlanLength)
	for d := 1; d <= studyplan.PlanLength; d++ {
		out = append(out, SeedPlanDay(tb, ctx, tx, learnerID, version, d, start.AddDate(0, 0, d-1), mutate))
	}
	return out
}
