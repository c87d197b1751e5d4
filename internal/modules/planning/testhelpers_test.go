package planning

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/studyplan-backend/internal/domain"
)

func catalogOf(n int) []*types.Skill {
	out := make([]*types.Skill, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &types.Skill{
			ID:         uuid.New(),
			Position:   i,
			KeyConcept: fmt.Sprintf("concept-%02d", i),
			Frequency:  n - i,
		})
	}
	return out
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func completedOn(day time.Time) *datatypes.Date {
	d := datatypes.Date(day)
	return &d
}
