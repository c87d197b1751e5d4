package testutil

import (
	"testing"
	"time"

	"github.com/yungbote/studyplan-backend/internal/data/aggregates"
)

func TestHooksRecorderFindsByOperation(t *testing.T) {
	h := &HooksRecorder{}
	h.WriteFinished(aggregates.WriteReport{Op: "StudyPlan.SubmitAttempt", Status: "success", Attempts: 2, Conflicts: 1, Duration: time.Millisecond})
	h.WriteFinished(aggregates.WriteReport{Op: "StudyPlan.Generate", Status: "conflict", Attempts: 1, Conflicts: 1})
	h.WriteFinished(aggregates.WriteReport{Op: "StudyPlan.SubmitAttempt", Status: "policy", Attempts: 1})

	got := h.Find("StudyPlan.SubmitAttempt")
	if len(got) != 2 || got[0].Status != "success" || got[1].Status != "policy" {
		t.Fatalf("unexpected submit reports: %+v", got)
	}
	if h.Conflicts() != 2 {
		t.Fatalf("conflicts: want=2 got=%d", h.Conflicts())
	}
	if len(h.Find("StudyPlan.Regenerate")) != 0 {
		t.Fatalf("unknown op should have no reports")
	}
}
