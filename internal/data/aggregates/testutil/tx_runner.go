package testutil

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/yungbote/studyplan-backend/internal/data/aggregates"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
)

// InjectedTxRunner is a transaction runner with failure injection. With DB set the
// body runs inside a real transaction and injected commit failures roll it back;
// without DB the body runs with a context-only dbctx.
type InjectedTxRunner struct {
	mu sync.Mutex

	DB *gorm.DB

	FailBegin      error
	FailBeforeBody error
	FailCommit     error
	// FailOnCall restricts the injected failures to the n-th InTx call (1-based); 0 means every call.
	FailOnCall int

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	armed := r.FailOnCall == 0 || r.FailOnCall == r.BeginCalls
	var failBegin, failBeforeBody, failCommit error
	if armed {
		failBegin, failBeforeBody, failCommit = r.FailBegin, r.FailBeforeBody, r.FailCommit
	}
	db := r.DB
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if failBeforeBody != nil {
		r.count(&r.RollbackCalls)
		return failBeforeBody
	}
	if fn == nil {
		r.count(&r.CommitCalls)
		return nil
	}

	body := func(dbc dbctx.Context) error {
		if err := fn(dbc); err != nil {
			return err
		}
		return failCommit
	}
	var err error
	if db != nil {
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return body(dbctx.Context{Ctx: ctx, Tx: tx})
		})
	} else {
		err = body(dbctx.Context{Ctx: ctx})
	}
	if err != nil {
		r.count(&r.RollbackCalls)
		return err
	}
	r.count(&r.CommitCalls)
	return nil
}

func (r *InjectedTxRunner) count(n *int) {
	r.mu.Lock()
	*n++
	r.mu.Unlock()
}
