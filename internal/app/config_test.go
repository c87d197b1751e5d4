package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/studyplan-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STUDYPLAN_CONFIG_FILE", "")
	cfg, err := LoadConfig(logger.Nop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "8080" || cfg.Location != time.UTC || cfg.AdminRoutes {
		t.Fatalf("defaults: %+v", cfg)
	}
	if cfg.Policy.PassThreshold != 0.70 || cfg.Policy.KeepVersions != 3 || cfg.Policy.MinCompletedDays != 5 {
		t.Fatalf("policy defaults: %+v", cfg.Policy)
	}
	if cfg.PredictTimeout != 5*time.Second || cfg.StaleRunAfter != 10*time.Minute {
		t.Fatalf("timeouts: predict=%s stale=%s", cfg.PredictTimeout, cfg.StaleRunAfter)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studyplan.yaml")
	doc := `
port: "9090"
timezone: America/New_York
admin_routes: true
cors_origins: ["https://app.example.com"]
policy:
  pass_threshold: 0.8
  keep_versions: 5
predictor:
  timeout_ms: 1500
regeneration:
  stale_after_minutes: 3
skill_catalog_file: configs/skills.example.yaml
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("STUDYPLAN_CONFIG_FILE", path)
	t.Setenv("PLAN_KEEP_VERSIONS", "4")
	t.Setenv("ADMIN_ROUTES_ENABLED", "false")

	cfg, err := LoadConfig(logger.Nop())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Port != "9090" || cfg.Location.String() != "America/New_York" {
		t.Fatalf("file values: port=%s tz=%s", cfg.Port, cfg.Location)
	}
	if cfg.AdminRoutes {
		t.Fatalf("env must override admin_routes")
	}
	if cfg.Policy.PassThreshold != 0.8 || cfg.Policy.KeepVersions != 4 {
		t.Fatalf("policy: %+v", cfg.Policy)
	}
	if cfg.PredictTimeout != 1500*time.Millisecond || cfg.StaleRunAfter != 3*time.Minute {
		t.Fatalf("timeouts: predict=%s stale=%s", cfg.PredictTimeout, cfg.StaleRunAfter)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.SkillCatalogFile != "configs/skills.example.yaml" {
		t.Fatalf("lists: %+v", cfg)
	}
}

func TestLoadConfigRejectsBadTimezone(t *testing.T) {
	t.Setenv("STUDYPLAN_CONFIG_FILE", "")
	t.Setenv("PLAN_TIMEZONE", "Mars/Olympus")
	if _, err := LoadConfig(logger.Nop()); err == nil {
		t.Fatalf("expected an error for an unknown timezone")
	}
}
