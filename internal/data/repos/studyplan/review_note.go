package studyplan

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/studyplan-backend/internal/domain"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
	"github.com/yungbote/studyplan-backend/internal/platform/logger"
)

type ReviewNoteRepo interface {
	// Create inserts notes, skipping any whose attempt record already has one.
	Create(dbc dbctx.Context, rows []*types.ReviewNote) (int64, error)
	ListByLearner(dbc dbctx.Context, learnerID uuid.UUID, onlyIncorrect bool) ([]*types.ReviewNote, error)
	DeleteByPlanDayIDs(dbc dbctx.Context, planDayIDs []uuid.UUID) (int64, error)
}

type reviewNoteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReviewNoteRepo(db *gorm.DB, baseLog *logger.Logger) ReviewNoteRepo {
	return &reviewNoteRepo{db: db, log: baseLog.With("repo", "ReviewNoteRepo")}
}

func (r *reviewNoteRepo) Create(dbc dbctx.Context, rows []*types.ReviewNote) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	res := t.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "attempt_record_id"}}, DoNothing: true}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *reviewNoteRepo) ListByLearner(dbc dbctx.Context, learnerID uuid.UUID, onlyIncorrect bool) ([]*types.ReviewNote, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.ReviewNote
	if learnerID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(dbc.Ctx).Where("learner_id = ?", learnerID)
	if onlyIncorrect {
		q = q.Where("correct = ?", false)
	}
	if err := q.Order("day_number ASC").Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reviewNoteRepo) DeleteByPlanDayIDs(dbc dbctx.Context, planDayIDs []uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(planDayIDs) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).Where("plan_day_id IN ?", planDayIDs).Delete(&types.ReviewNote{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
