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

// VersionSummary is one plan version of a learner as seen by history reads.
type VersionSummary struct {
	PlanVersion   int
	Archived      bool
	ArchivedAt    *time.Time
	Days          int64
	CompletedDays int64
}

type PlanDayRepo interface {
	Create(dbc dbctx.Context, rows []*types.PlanDay) ([]*types.PlanDay, error)

	// ListActive returns the non-archived rows of the learner's max version, ordered by day.
	ListActive(dbc dbctx.Context, learnerID uuid.UUID) ([]*types.PlanDay, error)
	GetActiveDay(dbc dbctx.Context, learnerID uuid.UUID, dayNumber int) (*types.PlanDay, error)
	ListActiveDays(dbc dbctx.Context, learnerID uuid.UUID, dayNumbers []int) ([]*types.PlanDay, error)
	ListByVersion(dbc dbctx.Context, learnerID uuid.UUID, planVersion int) ([]*types.PlanDay, error)

	LockActive(dbc dbctx.Context, learnerID uuid.UUID) ([]*types.PlanDay, error)
	LockActiveDay(dbc dbctx.Context, learnerID uuid.UUID, dayNumber int) (*types.PlanDay, error)

	MaxVersion(dbc dbctx.Context, learnerID uuid.UUID) (int, error)
	CountCompletedActive(dbc dbctx.Context, learnerID uuid.UUID) (int64, error)
	ListVersions(dbc dbctx.Context, learnerID uuid.UUID) ([]VersionSummary, error)

	ArchiveActive(dbc dbctx.Context, learnerID uuid.UUID, at time.Time) (int64, error)

	IDsUpToVersion(dbc dbctx.Context, learnerID uuid.UUID, maxVersion int) ([]uuid.UUID, error)
	DeleteUpToVersion(dbc dbctx.Context, learnerID uuid.UUID, maxVersion int) (int64, error)
}

type planDayRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPlanDayRepo(db *gorm.DB, baseLog *logger.Logger) PlanDayRepo {
	return &planDayRepo{db: db, log: baseLog.With("repo", "PlanDayRepo")}
}

func (r *planDayRepo) Create(dbc dbctx.Context, rows []*types.PlanDay) ([]*types.PlanDay, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.PlanDay{}, nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *planDayRepo) activeScope(t *gorm.DB, learnerID uuid.UUID) *gorm.DB {
	maxVersion := t.Session(&gorm.Session{NewDB: true}).
		Model(&types.PlanDay{}).
		Select("MAX(plan_version)").
		Where("learner_id = ?", learnerID)
	return t.Where("learner_id = ? AND archived = ? AND plan_version = (?)", learnerID, false, maxVersion)
}

func (r *planDayRepo) ListActive(dbc dbctx.Context, learnerID uuid.UUID) ([]*types.PlanDay, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.PlanDay
	if learnerID == uuid.Nil {
		return out, nil
	}
	if err := r.activeScope(t.WithContext(dbc.Ctx), learnerID).Order("day_number ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *planDayRepo) GetActiveDay(dbc dbctx.Context, learnerID uuid.UUID, dayNumber int) (*types.PlanDay, error) {
	rows, err := r.ListActiveDays(dbc, learnerID, []int{dayNumber})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *planDayRepo) ListActiveDays(dbc dbctx.Context, learnerID uuid.UUID, dayNumbers []int) ([]*types.PlanDay, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.PlanDay
	if learnerID == uuid.Nil || len(dayNumbers) == 0 {
		return out, nil
	}
	err := r.activeScope(t.WithContext(dbc.Ctx), learnerID).
		Where("day_number IN ?", dayNumbers).
		Order("day_number ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *planDayRepo) ListByVersion(dbc dbctx.Context, learnerID uuid.UUID, planVersion int) ([]*types.PlanDay, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.PlanDay
	err := t.WithContext(dbc.Ctx).
		Where("learner_id = ? AND plan_version = ?", learnerID, planVersion).
		Order("day_number ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LockActive row-locks every active day of the learner. It is the per-learner
// serialization point for plan-wide writes.
func (r *planDayRepo) LockActive(dbc dbctx.Context, learnerID uuid.UUID) ([]*types.PlanDay, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.PlanDay
	if learnerID == uuid.Nil {
		return out, nil
	}
	err := r.activeScope(t.WithContext(dbc.Ctx), learnerID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("day_number ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *planDayRepo) LockActiveDay(dbc dbctx.Context, learnerID uuid.UUID, dayNumber int) (*types.PlanDay, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if learnerID == uuid.Nil {
		return nil, nil
	}
	var row types.PlanDay
	err := r.activeScope(t.WithContext(dbc.Ctx), learnerID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("day_number = ?", dayNumber).
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

// MaxVersion returns the highest plan version ever created for the learner, 0 when none.
func (r *planDayRepo) MaxVersion(dbc dbctx.Context, learnerID uuid.UUID) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var v int
	err := t.WithContext(dbc.Ctx).
		Model(&types.PlanDay{}).
		Select("COALESCE(MAX(plan_version), 0)").
		Where("learner_id = ?", learnerID).
		Row().
		Scan(&v)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func (r *planDayRepo) CountCompletedActive(dbc dbctx.Context, learnerID uuid.UUID) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var n int64
	err := r.activeScope(t.WithContext(dbc.Ctx).Model(&types.PlanDay{}), learnerID).
		Where("completed = ?", true).
		Count(&n).Error
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *planDayRepo) ListVersions(dbc dbctx.Context, learnerID uuid.UUID) ([]VersionSummary, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var rows []*types.PlanDay
	err := t.WithContext(dbc.Ctx).
		Select("plan_version", "archived", "archived_at", "completed").
		Where("learner_id = ?", learnerID).
		Order("plan_version ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	var out []VersionSummary
	for _, row := range rows {
		if len(out) == 0 || out[len(out)-1].PlanVersion != row.PlanVersion {
			out = append(out, VersionSummary{PlanVersion: row.PlanVersion})
		}
		cur := &out[len(out)-1]
		cur.Days++
		if row.Completed {
			cur.CompletedDays++
		}
		if row.Archived {
			cur.Archived = true
			if row.ArchivedAt != nil && (cur.ArchivedAt == nil || row.ArchivedAt.After(*cur.ArchivedAt)) {
				at := *row.ArchivedAt
				cur.ArchivedAt = &at
			}
		}
	}
	return out, nil
}

func (r *planDayRepo) ArchiveActive(dbc dbctx.Context, learnerID uuid.UUID, at time.Time) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).
		Model(&types.PlanDay{}).
		Where("learner_id = ? AND archived = ?", learnerID, false).
		Updates(map[string]interface{}{
			"archived":    true,
			"archived_at": at,
			"version":     gorm.Expr("version + 1"),
			"updated_at":  at,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}


func (r *planDayRepo) IDsUpToVersion(dbc dbctx.Context, learnerID uuid.UUID, maxVersion int) ([]uuid.UUID, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var ids []uuid.UUID
	err := t.WithContext(dbc.Ctx).
		Model(&types.PlanDay{}).
		Where("learner_id = ? AND plan_version <= ?", learnerID, maxVersion).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *planDayRepo) DeleteUpToVersion(dbc dbctx.Context, learnerID uuid.UUID, maxVersion int) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	res := t.WithContext(dbc.Ctx).
		Where("learner_id = ? AND plan_version <= ? AND archived = ?", learnerID, maxVersion, true).
		Delete(&types.PlanDay{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
