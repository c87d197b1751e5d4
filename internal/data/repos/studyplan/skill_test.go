package studyplan

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/studyplan-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyplan-backend/internal/domain"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
)

func TestSkillRepoListAndUpsert(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSkillRepo(db, testutil.Logger(t))

	seeded := testutil.SeedSkillCatalog(t, ctx, tx, 5)

	list, err := repo.List(dbc)
	if err != nil || len(list) != 5 {
		t.Fatalf("List: len=%d err=%v", len(list), err)
	}
	for i, s := range list {
		if s.Position != i {
			t.Fatalf("List order: index %d has position %d", i, s.Position)
		}
	}

	seeded[0].Frequency = 99
	extra := &types.Skill{Position: 5, Title: "subject-1", KeyConcept: "late", Category: "c", Frequency: 1}
	if err := repo.Upsert(dbc, []*types.Skill{seeded[0], extra}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n, err := repo.Count(dbc); err != nil || n != 6 {
		t.Fatalf("Count: want=6 got=%d err=%v", n, err)
	}
	got, err := repo.GetByIDs(dbc, []uuid.UUID{seeded[0].ID})
	if err != nil || len(got) != 1 || got[0].Frequency != 99 {
		t.Fatalf("GetByIDs after upsert: %+v err=%v", got, err)
	}
}
