package testutil

import (
	"sync"

	"github.com/yungbote/studyplan-backend/internal/data/aggregates"
)

// HooksRecorder keeps every write report it receives.
type HooksRecorder struct {
	mu         sync.Mutex
	Operations []aggregates.WriteReport
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) WriteFinished(r aggregates.WriteReport) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Operations = append(h.Operations, r)
}

// Find returns the reports recorded for op, oldest first.
func (h *HooksRecorder) Find(op string) []aggregates.WriteReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []aggregates.WriteReport
	for _, r := range h.Operations {
		if r.Op == op {
			out = append(out, r)
		}
	}
	return out
}

// Conflicts sums the conflicting attempts across all recorded writes.
func (h *HooksRecorder) Conflicts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.Operations {
		n += r.Conflicts
	}
	return n
}
