package aggregates

import (
	"time"

	"github.com/yungbote/studyplan-backend/internal/observability"
)

// WriteReport describes one plan write after its final attempt.
type WriteReport struct {
	Op       string
	Status   string
	Attempts int
	// Conflicts and Retryable count the failed attempts by cause, including the last one.
	Conflicts int
	Retryable int
	Duration  time.Duration
}

// Hooks receives a report for every plan write.
type Hooks interface {
	WriteFinished(r WriteReport)
}

// HooksFunc adapts a plain function to Hooks.
type HooksFunc func(r WriteReport)

func (f HooksFunc) WriteFinished(r WriteReport) {
	if f != nil {
		f(r)
	}
}

var noopHooks = HooksFunc(nil)

// NewObservabilityHooks forwards write reports to the process metrics. A nil Metrics
// yields hooks that drop every report.
func NewObservabilityHooks(m *observability.Metrics) Hooks {
	if m == nil {
		return noopHooks
	}
	return HooksFunc(func(r WriteReport) {
		m.ObserveAggregateWrite(r.Op, r.Status, r.Conflicts, r.Retryable, r.Duration)
	})
}
