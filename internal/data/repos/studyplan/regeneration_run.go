package studyplan

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/studyplan-backend/internal/domain"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
	"github.com/yungbote/studyplan-backend/internal/platform/logger"
)

type RegenerationRunRepo interface {
	Create(dbc dbctx.Context, row *types.PlanRegenerationRun) (*types.PlanRegenerationRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PlanRegenerationRun, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.PlanRegenerationRun, error)
	ListByLearner(dbc dbctx.Context, learnerID uuid.UUID, statuses []string) ([]*types.PlanRegenerationRun, error)
	ListStartedBefore(dbc dbctx.Context, learnerID uuid.UUID, status string, before time.Time) ([]*types.PlanRegenerationRun, error)
}

type regenerationRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRegenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) RegenerationRunRepo {
	return &regenerationRunRepo{db: db, log: baseLog.With("repo", "RegenerationRunRepo")}
}

func (r *regenerationRunRepo) Create(dbc dbctx.Context, row *types.PlanRegenerationRun) (*types.PlanRegenerationRun, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if row == nil {
		return nil, nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := t.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *regenerationRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.PlanRegenerationRun, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.PlanRegenerationRun
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *regenerationRunRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.PlanRegenerationRun, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.PlanRegenerationRun
	err := t.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *regenerationRunRepo) ListByLearner(dbc dbctx.Context, learnerID uuid.UUID, statuses []string) ([]*types.PlanRegenerationRun, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.PlanRegenerationRun
	q := t.WithContext(dbc.Ctx).Where("learner_id = ?", learnerID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Order("started_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListStartedBefore lists runs in status started before the cutoff; uuid.Nil matches every learner.
func (r *regenerationRunRepo) ListStartedBefore(dbc dbctx.Context, learnerID uuid.UUID, status string, before time.Time) ([]*types.PlanRegenerationRun, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.PlanRegenerationRun
	q := t.WithContext(dbc.Ctx).Where("status = ? AND started_at < ?", status, before.UTC())
	if learnerID != uuid.Nil {
		q = q.Where("learner_id = ?", learnerID)
	}
	err := q.Order("started_at ASC").Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

