package planning

import (
	"sort"

	"github.com/google/uuid"

	types "github.com/yungbote/studyplan-backend/internal/domain"
)

// Degenerate reports whether a prediction vector cannot rank a catalog of catalogSize
// skills: it is misaligned with the catalog or carries no signal.
func Degenerate(predictions []float64, catalogSize int) bool {
	if len(predictions) != catalogSize {
		return true
	}
	for _, p := range predictions {
		if p != 0 {
			return false
		}
	}
	return true
}

// SelectAdaptiveSkills picks the lowest-mastery skills. predictions are aligned to
// CatalogOrder(catalog). A degenerate vector falls back to the top ranked skills.
func SelectAdaptiveSkills(predictions []float64, catalog []*types.Skill, count int) (selected []*types.Skill, fallback bool) {
	if count <= 0 {
		count = DefaultPolicy().AdaptiveSkillCount
	}
	if Degenerate(predictions, len(catalog)) {
		ranked := RankSkills(catalog)
		return ranked[:min(count, len(ranked))], true
	}
	ordered := CatalogOrder(catalog)
	n := len(ordered)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return predictions[idx[a]] < predictions[idx[b]] })
	take := min(count, n)
	out := make([]*types.Skill, 0, take)
	for _, i := range idx[:take] {
		out = append(out, ordered[i])
	}
	return out, false
}

// AssignCyclic spreads skills over days slots, one per day, wrapping around.
func AssignCyclic(skills []*types.Skill, days int) [][]uuid.UUID {
	if len(skills) == 0 || days <= 0 {
		return nil
	}
	out := make([][]uuid.UUID, days)
	for i := 0; i < days; i++ {
		out[i] = []uuid.UUID{skills[i%len(skills)].ID}
	}
	return out
}
