package studyplan

import (
	"time"

	"github.com/google/uuid"
)

// Skill is a catalog entry. Position is the catalog order that predictor outputs align to.
type Skill struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Position    int       `gorm:"column:position;not null;uniqueIndex:idx_skill_position" json:"position"`
	Title       string    `gorm:"column:title;not null" json:"title"`
	KeyConcept  string    `gorm:"column:key_concept;not null" json:"key_concept"`
	Category    string    `gorm:"column:category;not null;index" json:"category"`
	Frequency   int       `gorm:"column:frequency;not null" json:"frequency"`
	Description string    `gorm:"column:description" json:"description,omitempty"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Skill) TableName() string { return "skill" }
