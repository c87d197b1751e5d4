package planning

import (
	"context"
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/studyplan-backend/internal/domain"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
)

// SkillCatalog lists the skill catalog in stable position order.
type SkillCatalog interface {
	List(dbc dbctx.Context) ([]*types.Skill, error)
}

// ActivityStore reads the learner's attempt history in [from, to).
type ActivityStore interface {
	FindBetween(dbc dbctx.Context, learnerID uuid.UUID, from, to time.Time) ([]*types.AttemptRecord, error)
}

// MasteryPredictor returns one mastery probability in [0,1] per catalog skill, aligned to
// the catalog order passed in. An empty result is allowed.
type MasteryPredictor interface {
	Predict(ctx context.Context, learnerID uuid.UUID, records []*types.AttemptRecord, catalog []*types.Skill) ([]float64, error)
}

// PredictorFunc adapts a function to MasteryPredictor.
type PredictorFunc func(ctx context.Context, learnerID uuid.UUID, records []*types.AttemptRecord, catalog []*types.Skill) ([]float64, error)

func (f PredictorFunc) Predict(ctx context.Context, learnerID uuid.UUID, records []*types.AttemptRecord, catalog []*types.Skill) ([]float64, error) {
	return f(ctx, learnerID, records, catalog)
}
