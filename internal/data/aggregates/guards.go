package aggregates

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/studyplan-backend/internal/domain"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
)

const planDayTable = "plan_day"
const regenerationRunTable = "plan_regeneration_run"

// CASGuard performs compare-and-set writes on plan days and regeneration runs.
type CASGuard struct {
	db *gorm.DB
}

func NewCASGuard(db *gorm.DB) CASGuard {
	return CASGuard{db: db}
}

func (g CASGuard) conn(dbc dbctx.Context) (*gorm.DB, error) {
	if !dbc.InTx() && g.db == nil {
		return nil, ValidationError("missing db transaction context")
	}
	return dbc.Conn(g.db), nil
}

// UpdateDay applies updates only while the stored row still carries day.Version, then
// bumps the version on the row and on day. A lost race is a conflict naming the day.
func (g CASGuard) UpdateDay(dbc dbctx.Context, day *types.PlanDay, updates map[string]any) error {
	if day == nil || day.ID == uuid.Nil {
		return ValidationError("plan day with id required")
	}
	db, err := g.conn(dbc)
	if err != nil {
		return err
	}
	next := day.Version + 1
	fields := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		fields[k] = v
	}
	fields["version"] = next

	res := db.Table(planDayTable).
		Where("id = ? AND version = ?", day.ID, day.Version).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ConflictError(fmt.Sprintf("%s changed concurrently", day.Label()))
	}
	day.Version = next
	return nil
}

// MoveRun updates a regeneration run only while its status is one of from. The bool
// reports whether the row moved.
func (g CASGuard) MoveRun(dbc dbctx.Context, runID uuid.UUID, from []string, updates map[string]any) (bool, error) {
	if runID == uuid.Nil {
		return false, ValidationError("regeneration run id required")
	}
	if len(from) == 0 {
		return false, ValidationError("source statuses required")
	}
	db, err := g.conn(dbc)
	if err != nil {
		return false, err
	}
	res := db.Table(regenerationRunTable).
		Where("id = ? AND status IN ?", runID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// RequireCASSuccess turns a compare-and-set miss into a conflict.
func RequireCASSuccess(ok bool, message string) error {
	if ok {
		return nil
	}
	return ConflictError(strings.TrimSpace(message))
}

// RequireStatusAllowed is a conflict unless current is one of allowed.
func RequireStatusAllowed(current string, allowed ...string) error {
	current = strings.TrimSpace(current)
	if len(allowed) == 0 {
		return ValidationError("allowed statuses cannot be empty")
	}
	for _, s := range allowed {
		if strings.EqualFold(current, strings.TrimSpace(s)) {
			return nil
		}
	}
	return ConflictError(fmt.Sprintf("regeneration run is %s", current))
}
