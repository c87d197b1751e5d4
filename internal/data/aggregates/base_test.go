package aggregates

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	domainagg "github.com/yungbote/studyplan-backend/internal/domain/aggregates"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
	"github.com/yungbote/studyplan-backend/internal/platform/logger"
)

func TestExecuteWriteObservesSuccessStatus(t *testing.T) {
	hooks := &spyHooks{}
	runner := spyTxRunner{}

	err := executeWrite(context.Background(), BaseDeps{
		Runner: runner,
		Hooks:  hooks,
	}, "aggregate.test.success", func(_ dbctx.Context) error { return nil })
	if err != nil {
		t.Fatalf("executeWrite success: %v", err)
	}
	if len(hooks.Operations) != 1 {
		t.Fatalf("operations count: want=1 got=%d", len(hooks.Operations))
	}
	if hooks.Operations[0].Status != "success" {
		t.Fatalf("operation status: want=success got=%s", hooks.Operations[0].Status)
	}
}

func TestExecuteWriteObservesInvariantViolationStatus(t *testing.T) {
	hooks := &spyHooks{}
	runner := spyTxRunner{}

	err := executeWrite(context.Background(), BaseDeps{
		Runner: runner,
		Hooks:  hooks,
	}, "aggregate.test.invariant", func(_ dbctx.Context) error {
		return InvariantError("invariant broken")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("expected invariant violation code, got=%v", err)
	}
	if len(hooks.Operations) != 1 {
		t.Fatalf("operations count: want=1 got=%d", len(hooks.Operations))
	}
	if hooks.Operations[0].Status != string(domainagg.CodeInvariantViolation) {
		t.Fatalf("operation status: want=%s got=%s", domainagg.CodeInvariantViolation, hooks.Operations[0].Status)
	}
}

func TestExecuteWriteTracksConflictAndRetryCounters(t *testing.T) {
	t.Run("conflict", func(t *testing.T) {
		hooks := &spyHooks{}
		runner := spyTxRunner{}
		err := executeWrite(context.Background(), BaseDeps{
			Runner: runner,
			Hooks:  hooks,
		}, "aggregate.test.conflict", func(_ dbctx.Context) error {
			return ConflictError("stale version")
		})
		if err == nil {
			t.Fatalf("expected error")
		}
		if !domainagg.IsCode(err, domainagg.CodeConflict) {
			t.Fatalf("expected conflict code, got=%v", err)
		}
		if len(hooks.Conflicts) != 1 || hooks.Conflicts[0] != "aggregate.test.conflict" {
			t.Fatalf("conflict hooks: %+v", hooks.Conflicts)
		}
		if len(hooks.Retries) != 0 {
			t.Fatalf("retry hooks should be empty, got=%+v", hooks.Retries)
		}
		if len(hooks.Operations) != 1 || hooks.Operations[0].Status != string(domainagg.CodeConflict) {
			t.Fatalf("unexpected op status: %+v", hooks.Operations)
		}
	})

	t.Run("retryable", func(t *testing.T) {
		hooks := &spyHooks{}
		runner := spyTxRunner{}
		err := executeWrite(context.Background(), BaseDeps{
			Runner: runner,
			Hooks:  hooks,
		}, "aggregate.test.retry", func(_ dbctx.Context) error {
			return RetryableError("temporary lock timeout")
		})
		if err == nil {
			t.Fatalf("expected error")
		}
		if !domainagg.IsCode(err, domainagg.CodeRetryable) {
			t.Fatalf("expected retryable code, got=%v", err)
		}
		if len(hooks.Retries) != 1 || hooks.Retries[0] != "aggregate.test.retry" {
			t.Fatalf("retry hooks: %+v", hooks.Retries)
		}
		if len(hooks.Conflicts) != 0 {
			t.Fatalf("conflict hooks should be empty, got=%+v", hooks.Conflicts)
		}
		if len(hooks.Operations) != 1 || hooks.Operations[0].Status != string(domainagg.CodeRetryable) {
			t.Fatalf("unexpected op status: %+v", hooks.Operations)
		}
	})
}

func TestExecuteWriteReplaysConflicts(t *testing.T) {
	hooks := &spyHooks{}
	calls := 0
	err := executeWrite(context.Background(), BaseDeps{
		Runner:        spyTxRunner{},
		Hooks:         hooks,
		WriteAttempts: 3,
		RetryDelay:    time.Millisecond,
	}, "aggregate.test.replay", func(_ dbctx.Context) error {
		calls++
		if calls < 3 {
			return ConflictError("stale version")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("executeWrite replay: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls: want=3 got=%d", calls)
	}
	if len(hooks.Conflicts) != 2 {
		t.Fatalf("conflicts: want=2 got=%d", len(hooks.Conflicts))
	}
	if len(hooks.Operations) != 1 || hooks.Operations[0].Status != "success" {
		t.Fatalf("unexpected op status: %+v", hooks.Operations)
	}
	if hooks.Operations[0].Attempts != 3 {
		t.Fatalf("attempts: want=3 got=%d", hooks.Operations[0].Attempts)
	}
}

func TestExecuteWriteDoesNotReplayPolicyErrors(t *testing.T) {
	calls := 0
	err := executeWrite(context.Background(), BaseDeps{
		Runner:        spyTxRunner{},
		WriteAttempts: 3,
		RetryDelay:    time.Millisecond,
	}, "aggregate.test.policy", func(_ dbctx.Context) error {
		calls++
		return PolicyError("day already passed")
	})
	if !domainagg.IsPolicy(err) {
		t.Fatalf("expected policy code, got=%v", err)
	}
	if calls != 1 {
		t.Fatalf("policy errors must not be replayed, calls=%d", calls)
	}
}

func TestExecuteWriteWarnsOnCodesOutsideContract(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	deps := BaseDeps{
		Runner:   spyTxRunner{},
		Log:      &logger.Logger{SugaredLogger: zap.New(core).Sugar()},
		Contract: domainagg.StudyPlanAggregateContract,
	}

	_ = executeWrite(context.Background(), deps, "StudyPlan.SubmitAttempt", func(_ dbctx.Context) error {
		return PolicyError("day already passed")
	})
	if logs.Len() != 0 {
		t.Fatalf("policy is part of the submit contract, got %d warnings", logs.Len())
	}
	_ = executeWrite(context.Background(), deps, "StudyPlan.SweepRetention", func(_ dbctx.Context) error {
		return PolicyError("unexpected")
	})
	if logs.FilterMessage("write failed outside its contract").Len() != 1 {
		t.Fatalf("expected one contract warning, got %v", logs.All())
	}
}

func TestAggregateErrorStatus(t *testing.T) {
	if got := aggregateErrorStatus(nil); got != "success" {
		t.Fatalf("nil status: want=success got=%s", got)
	}
	if got := aggregateErrorStatus(InvariantError("x")); got != string(domainagg.CodeInvariantViolation) {
		t.Fatalf("invariant status: got=%s", got)
	}
	if got := aggregateErrorStatus(ConflictError("x")); got != string(domainagg.CodeConflict) {
		t.Fatalf("conflict status: got=%s", got)
	}
	if got := aggregateErrorStatus(RetryableError("x")); got != string(domainagg.CodeRetryable) {
		t.Fatalf("retry status: got=%s", got)
	}
	if got := aggregateErrorStatus(context.DeadlineExceeded); got != string(domainagg.CodeRetryable) {
		t.Fatalf("deadline status: got=%s", got)
	}
}

type spyTxRunner struct{}

func (spyTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(dbctx.Context{Ctx: ctx})
}

type spyHooks struct {
	Operations []WriteReport
	Conflicts  []string
	Retries    []string
}

func (h *spyHooks) WriteFinished(r WriteReport) {
	h.Operations = append(h.Operations, r)
	for i := 0; i < r.Conflicts; i++ {
		h.Conflicts = append(h.Conflicts, r.Op)
	}
	for i := 0; i < r.Retryable; i++ {
		h.Retries = append(h.Retries, r.Op)
	}
}
