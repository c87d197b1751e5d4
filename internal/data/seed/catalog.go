package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/studyplan-backend/internal/data/repos"
	types "github.com/yungbote/studyplan-backend/internal/domain"
	"github.com/yungbote/studyplan-backend/internal/platform/dbctx"
	"github.com/yungbote/studyplan-backend/internal/platform/logger"
)

// skillNamespace derives stable ids for catalog entries that do not carry one, so
// reseeding the same file updates rows in place.
var skillNamespace = uuid.MustParse("6f1c2a52-8d0e-4b1f-9a7e-2c3d4e5f6a7b")

type catalogFile struct {
	Skills []skillEntry `yaml:"skills"`
}

type skillEntry struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	KeyConcept  string `yaml:"key_concept"`
	Category    string `yaml:"category"`
	Frequency   int    `yaml:"frequency"`
	Description string `yaml:"description"`
}

// LoadCatalogFile reads a YAML skill catalog. File order becomes catalog position.
func LoadCatalogFile(path string) ([]*types.Skill, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open skill catalog: %w", err)
	}
	defer f.Close()
	return DecodeCatalog(f)
}

func DecodeCatalog(r io.Reader) ([]*types.Skill, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode skill catalog: %w", err)
	}

	out := make([]*types.Skill, 0, len(file.Skills))
	seen := make(map[uuid.UUID]string, len(file.Skills))
	for i, e := range file.Skills {
		concept := strings.TrimSpace(e.KeyConcept)
		if concept == "" {
			return nil, fmt.Errorf("skill %d: key_concept required", i)
		}
		if e.Frequency < 0 {
			return nil, fmt.Errorf("skill %q: frequency must be >= 0", concept)
		}
		id := uuid.NewSHA1(skillNamespace, []byte(concept))
		if raw := strings.TrimSpace(e.ID); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				return nil, fmt.Errorf("skill %q: invalid id: %w", concept, err)
			}
			id = parsed
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("skill %q duplicates %q", concept, prev)
		}
		seen[id] = concept

		title := strings.TrimSpace(e.Title)
		if title == "" {
			title = concept
		}
		out = append(out, &types.Skill{
			ID:          id,
			Position:    i,
			Title:       title,
			KeyConcept:  concept,
			Category:    strings.TrimSpace(e.Category),
			Frequency:   e.Frequency,
			Description: strings.TrimSpace(e.Description),
		})
	}
	return out, nil
}

// Apply upserts the catalog. An empty catalog is a no-op.
func Apply(ctx context.Context, log *logger.Logger, skills repos.SkillRepo, catalog []*types.Skill) error {
	if len(catalog) == 0 {
		return nil
	}
	if err := skills.Upsert(dbctx.Read(ctx), catalog); err != nil {
		return fmt.Errorf("seed skill catalog: %w", err)
	}
	if log != nil {
		log.Info("skill catalog seeded", "skills", len(catalog))
	}
	return nil
}
