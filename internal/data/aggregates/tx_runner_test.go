package aggregates

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	repotest "github.com/yungbote/studyplan-backend/internal/data/repos/testutil"
	types "github.com/yungbote/studyplan-backend/internal/domain"
	domainagg "github.com/yungbote/studyplan-backend/internal/domain/aggregates"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
)

func TestGormTxRunnerRollsBackOnError(t *testing.T) {
	conn := repotest.DB(t)
	runner := NewGormTxRunner(conn)
	skill := &types.Skill{ID: uuid.New(), Position: 0, KeyConcept: "rollback", Frequency: 1}
	boom := errors.New("boom")

	err := runner.InTx(context.Background(), func(dbc dbctx.Context) error {
		if !dbc.InTx() {
			t.Fatalf("body should run inside a transaction")
		}
		if err := dbc.Tx.Create(skill).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want body error, got %v", err)
	}
	var n int64
	if err := conn.Model(&types.Skill{}).Where("id = ?", skill.ID).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("row survived a rolled back transaction")
	}
}

func TestGormTxRunnerSkipsCancelledContexts(t *testing.T) {
	runner := NewGormTxRunner(repotest.DB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := runner.InTx(ctx, func(dbctx.Context) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("cancelled context: err=%v called=%v", err, called)
	}
}

func TestGormTxRunnerWithoutDB(t *testing.T) {
	err := NewGormTxRunner(nil).InTx(context.Background(), func(dbctx.Context) error { return nil })
	if !domainagg.IsCode(err, domainagg.CodeInternal) {
		t.Fatalf("want internal error, got %v", err)
	}
}
