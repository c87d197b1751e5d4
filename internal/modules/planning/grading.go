package planning

import (
	"fmt"

	domainagg "github.com/yungbote/studyplan-backend/internal/domain/aggregates"
)

// Grade is the outcome of scoring one submission.
type Grade struct {
	EarnedPoints   float64
	PossiblePoints float64
	Score          float64
	Passed         bool
	// Points holds the resolved weight of each answer, index-aligned with the input.
	Points []float64
}

// GradeAnswers sums the points of correct answers over all possible points.
func GradeAnswers(answers []domainagg.QuestionAnswer, policy Policy) (Grade, error) {
	policy = policy.WithDefaults()
	if len(answers) == 0 {
		return Grade{}, ErrNoAnswers
	}
	g := Grade{Points: make([]float64, len(answers))}
	for i, a := range answers {
		pts := a.Points
		if pts < 0 {
			return Grade{}, fmt.Errorf("%w: question %d has %v", ErrInvalidPoints, i+1, pts)
		}
		if pts == 0 {
			pts = policy.DefaultPoints
		}
		g.Points[i] = pts
		g.PossiblePoints += pts
		if a.Correct {
			g.EarnedPoints += pts
		}
	}
	g.Score = g.EarnedPoints / g.PossiblePoints
	g.Passed = g.Score >= policy.PassThreshold
	return g, nil
}
