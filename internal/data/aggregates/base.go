package aggregates

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"gorm.io/gorm"

	domainagg "github.com/yungbote/studyplan-backend/internal/domain/aggregates"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
	"github.com/yungbote/studyplan-backend/internal/platform/logger"
)

type BaseDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Hooks    Hooks
	CASGuard CASGuard
	// Contract, when named, is checked against every failed write.
	Contract domainagg.Contract

	// WriteAttempts bounds how often a write is replayed after a conflict or a retryable
	// storage failure. Values below 2 disable replay.
	WriteAttempts int
	RetryDelay    time.Duration
}

func (d BaseDeps) withDefaults() BaseDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Hooks == nil {
		d.Hooks = noopHooks
	}
	if d.CASGuard.db == nil {
		d.CASGuard = NewCASGuard(d.DB)
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.RetryDelay <= 0 {
		d.RetryDelay = 10 * time.Millisecond
	}
	return d
}

func executeWrite(ctx context.Context, deps BaseDeps, op string, fn func(dbc dbctx.Context) error) error {
	deps = deps.withDefaults()
	op = strings.TrimSpace(op)
	if op == "" {
		op = "aggregate.write"
	}
	report := WriteReport{Op: op}
	start := time.Now()

	attempt := func(ctx context.Context) (struct{}, error) {
		report.Attempts++
		err := MapError(op, deps.Runner.InTx(ctx, fn))
		switch domainagg.CodeOf(err) {
		case domainagg.CodeConflict:
			report.Conflicts++
		case domainagg.CodeRetryable:
			report.Retryable++
		}
		return struct{}{}, err
	}

	var err error
	if deps.WriteAttempts > 1 {
		r := retry.New[struct{}](retry.Config{
			MaxAttempts:   deps.WriteAttempts,
			InitialDelay:  deps.RetryDelay,
			MaxDelay:      20 * deps.RetryDelay,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   replayable,
		})
		_, err = r.Do(ctx, attempt)
		err = MapError(op, err)
	} else {
		_, err = attempt(ctx)
	}

	if err != nil && deps.Contract.Name != "" && !deps.Contract.Allows(op, domainagg.CodeOf(err)) {
		deps.Log.Warn("write failed outside its contract", "op", op, "code", domainagg.CodeOf(err), "error", err)
	}
	report.Status = aggregateErrorStatus(err)
	report.Duration = time.Since(start)
	if report.Attempts > 1 {
		deps.Log.Debug("plan write replayed", "op", op, "attempts", report.Attempts, "status", report.Status)
	}
	deps.Hooks.WriteFinished(report)
	return err
}

// replayable reports whether a failed write may be replayed from scratch. Context errors
// map to retryable but are never replayed.
func replayable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return domainagg.IsCode(err, domainagg.CodeConflict) || domainagg.IsCode(err, domainagg.CodeRetryable)
}

func aggregateErrorStatus(err error) string {
	if err == nil {
		return "success"
	}
	code := strings.TrimSpace(string(domainagg.CodeOf(err)))
	if code == "" {
		code = strings.TrimSpace(string(domainagg.CodeOf(MapError("aggregate.status", err))))
	}
	if code == "" {
		return "failure"
	}
	return code
}
