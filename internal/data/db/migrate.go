package db

import (
	"fmt"

	types "github.com/yungbote/studyplan-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}

	// Day access and submission only ever read the active rows of a learner.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_plan_day_active
		ON plan_day (learner_id, day_number)
		WHERE archived = false;
	`).Error; err != nil {
		return fmt.Errorf("create idx_plan_day_active: %w", err)
	}

	// At most one regeneration in flight per learner.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_regen_run_single_running
		ON plan_regeneration_run (learner_id)
		WHERE status = 'running';
	`).Error; err != nil {
		return fmt.Errorf("create idx_regen_run_single_running: %w", err)
	}
	return nil
}
