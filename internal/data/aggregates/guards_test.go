package aggregates

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	repotest "github.com/yungbote/studyplan-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyplan-backend/internal/domain"
	domainagg "github.com/yungbote/studyplan-backend/internal/domain/aggregates"
	"github.com/yungbote/studyplan-backend/internal/domain/studyplan"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
)

func TestUpdateDayBumpsVersionAndRejectsStaleCopies(t *testing.T) {
	ctx := context.Background()
	conn := repotest.DB(t)
	g := NewCASGuard(conn)
	start := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	day := repotest.SeedPlanDay(t, ctx, conn, uuid.New(), 1, 3, start, nil)
	stale := *day

	if err := g.UpdateDay(dbctx.Read(ctx), day, map[string]any{"last_score": 0.8}); err != nil {
		t.Fatalf("UpdateDay: %v", err)
	}
	if day.Version != stale.Version+1 {
		t.Fatalf("in-memory version: want=%d got=%d", stale.Version+1, day.Version)
	}
	var stored types.PlanDay
	if err := conn.First(&stored, "id = ?", day.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Version != day.Version {
		t.Fatalf("stored version: want=%d got=%d", day.Version, stored.Version)
	}

	err := MapError("test", g.UpdateDay(dbctx.Read(ctx), &stale, map[string]any{"last_score": 0.1}))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("stale copy: want conflict, got %v", err)
	}
}

func TestUpdateDayRequiresARow(t *testing.T) {
	g := NewCASGuard(nil)
	if err := g.UpdateDay(dbctx.Read(context.Background()), nil, nil); err == nil {
		t.Fatalf("expected validation error for a nil day")
	}
	day := &types.PlanDay{ID: uuid.New()}
	if err := g.UpdateDay(dbctx.Read(context.Background()), day, nil); err == nil {
		t.Fatalf("expected validation error without a db")
	}
}

func TestMoveRunOnlyLeavesAllowedStatuses(t *testing.T) {
	ctx := context.Background()
	conn := repotest.DB(t)
	g := NewCASGuard(conn)
	now := time.Date(2026, time.March, 9, 12, 0, 0, 0, time.UTC)
	run := &studyplan.PlanRegenerationRun{
		ID:          uuid.New(),
		LearnerID:   uuid.New(),
		Status:      studyplan.RegenerationStatusRunning,
		FromVersion: 1,
		StartedAt:   now,
	}
	if err := conn.Create(run).Error; err != nil {
		t.Fatalf("seed run: %v", err)
	}

	running := []string{studyplan.RegenerationStatusRunning}
	ok, err := g.MoveRun(dbctx.Read(ctx), run.ID, running, map[string]any{"status": studyplan.RegenerationStatusSucceeded})
	if err != nil || !ok {
		t.Fatalf("first move: ok=%v err=%v", ok, err)
	}
	ok, err = g.MoveRun(dbctx.Read(ctx), run.ID, running, map[string]any{"status": studyplan.RegenerationStatusFailed})
	if err != nil {
		t.Fatalf("second move: %v", err)
	}
	if ok {
		t.Fatalf("a closed run must not move again")
	}
	if _, err := g.MoveRun(dbctx.Read(ctx), run.ID, nil, nil); err == nil {
		t.Fatalf("expected validation error without source statuses")
	}
}

func TestRequireStatusAllowed(t *testing.T) {
	if err := RequireStatusAllowed("running", studyplan.RegenerationStatusRunning); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	err := MapError("test", RequireStatusAllowed("failed", studyplan.RegenerationStatusRunning))
	if !domainagg.IsCode(err, domainagg.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRequireCASSuccess(t *testing.T) {
	if err := RequireCASSuccess(true, "ok"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := RequireCASSuccess(false, "stale"); err == nil {
		t.Fatalf("expected conflict error")
	}
}
