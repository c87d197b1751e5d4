package planning

import (
	"sort"

	"github.com/google/uuid"

	types "github.com/yungbote/studyplan-backend/internal/domain"
)

// RankSkills orders skills by descending frequency. Equal frequencies keep catalog
// position order, so generation and the adaptive fallback always agree.
func RankSkills(catalog []*types.Skill) []*types.Skill {
	out := make([]*types.Skill, 0, len(catalog))
	for _, s := range catalog {
		if s != nil {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Position < out[j].Position
	})
	return out
}

// CatalogOrder sorts skills by catalog position; predictions are aligned to this order.
func CatalogOrder(catalog []*types.Skill) []*types.Skill {
	out := make([]*types.Skill, 0, len(catalog))
	for _, s := range catalog {
		if s != nil {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func SkillIDs(skills []*types.Skill) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(skills))
	for _, s := range skills {
		if s != nil {
			out = append(out, s.ID)
		}
	}
	return out
}

// rankIndex maps skill id to its rank; unknown ids are absent.
func rankIndex(ranked []*types.Skill) map[uuid.UUID]int {
	idx := make(map[uuid.UUID]int, len(ranked))
	for i, s := range ranked {
		if s != nil {
			idx[s.ID] = i
		}
	}
	return idx
}
