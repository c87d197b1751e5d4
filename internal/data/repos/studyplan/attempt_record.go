package studyplan

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyplan-backend/internal/domain"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
	"github.com/yungbote/studyplan-backend/internal/platform/logger"
)

// AttemptRecordRepo is the activity store. Rows are appended, never updated.
type AttemptRecordRepo interface {
	Create(dbc dbctx.Context, rows []*types.AttemptRecord) ([]*types.AttemptRecord, error)

	// FindBetween returns the learner's records with from <= attempted_at < to, oldest first.
	FindBetween(dbc dbctx.Context, learnerID uuid.UUID, from, to time.Time) ([]*types.AttemptRecord, error)
	ListByPlanDay(dbc dbctx.Context, planDayID uuid.UUID, attemptNo int) ([]*types.AttemptRecord, error)
	ListByPlanDays(dbc dbctx.Context, planDayIDs []uuid.UUID) ([]*types.AttemptRecord, error)
}

type attemptRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAttemptRecordRepo(db *gorm.DB, baseLog *logger.Logger) AttemptRecordRepo {
	return &attemptRecordRepo{db: db, log: baseLog.With("repo", "AttemptRecordRepo")}
}

func (r *attemptRecordRepo) Create(dbc dbctx.Context, rows []*types.AttemptRecord) ([]*types.AttemptRecord, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.AttemptRecord{}, nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		row.AttemptedAt = row.AttemptedAt.UTC()
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *attemptRecordRepo) FindBetween(dbc dbctx.Context, learnerID uuid.UUID, from, to time.Time) ([]*types.AttemptRecord, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.AttemptRecord
	if learnerID == uuid.Nil || !to.After(from) {
		return out, nil
	}
	err := t.WithContext(dbc.Ctx).
		Where("learner_id = ? AND attempted_at >= ? AND attempted_at < ?", learnerID, from.UTC(), to.UTC()).
		Order("attempted_at ASC").
		Order("question_num ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByPlanDay returns one attempt's records, or every attempt's when attemptNo is 0.
func (r *attemptRecordRepo) ListByPlanDay(dbc dbctx.Context, planDayID uuid.UUID, attemptNo int) ([]*types.AttemptRecord, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.AttemptRecord
	if planDayID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(dbc.Ctx).Where("plan_day_id = ?", planDayID)
	if attemptNo > 0 {
		q = q.Where("attempt_no = ?", attemptNo)
	}
	if err := q.Order("attempt_no ASC").Order("question_num ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *attemptRecordRepo) ListByPlanDays(dbc dbctx.Context, planDayIDs []uuid.UUID) ([]*types.AttemptRecord, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.AttemptRecord
	if len(planDayIDs) == 0 {
		return out, nil
	}
	err := t.WithContext(dbc.Ctx).
		Where("plan_day_id IN ?", planDayIDs).
		Order("day_number ASC").
		Order("attempt_no ASC").
		Order("question_num ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
