package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/studyplan-backend/internal/modules/planning"
	"github.com/yungbote/studyplan-backend/internal/platform/envutil"
	"github.com/yungbote/studyplan-backend/internal/platform/logger"
)

type Config struct {
	Port        string
	ServiceName string
	Environment string

	AdminRoutes bool
	CORSOrigins []string

	// Location decides the learner's calendar day for plan dates and access checks.
	Location *time.Location
	Policy   planning.Policy

	PredictTimeout time.Duration
	StaleRunAfter  time.Duration
	WriteAttempts  int

	SkillCatalogFile string
}

// fileConfig is the optional YAML document named by STUDYPLAN_CONFIG_FILE.
type fileConfig struct {
	Port        string   `yaml:"port"`
	Environment string   `yaml:"environment"`
	Timezone    string   `yaml:"timezone"`
	AdminRoutes *bool    `yaml:"admin_routes"`
	CORSOrigins []string `yaml:"cors_origins"`

	Policy struct {
		PassThreshold       float64 `yaml:"pass_threshold"`
		PointsPerQuestion   float64 `yaml:"points_per_question"`
		StudySkillsPerDay   int     `yaml:"study_skills_per_day"`
		WeekendSkillsPerDay int     `yaml:"weekend_skills_per_day"`
		AdaptiveSkillCount  int     `yaml:"adaptive_skill_count"`
		MinCompletedDays    int     `yaml:"min_completed_days"`
		KeepVersions        int     `yaml:"keep_versions"`
	} `yaml:"policy"`

	Predictor struct {
		TimeoutMS int `yaml:"timeout_ms"`
	} `yaml:"predictor"`

	Regeneration struct {
		StaleAfterMinutes int `yaml:"stale_after_minutes"`
	} `yaml:"regeneration"`

	SkillCatalogFile string `yaml:"skill_catalog_file"`
}

func readConfigFile(path string) (fileConfig, error) {
	var fc fileConfig
	if strings.TrimSpace(path) == "" {
		return fc, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

// LoadConfig reads STUDYPLAN_CONFIG_FILE (if set) and then lets the environment override it.
func LoadConfig(log *logger.Logger) (Config, error) {
	fc, err := readConfigFile(envutil.String("STUDYPLAN_CONFIG_FILE", "", log))
	if err != nil {
		return Config{}, err
	}

	tzName := envutil.String("PLAN_TIMEZONE", orString(fc.Timezone, "UTC"), log)
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return Config{}, fmt.Errorf("PLAN_TIMEZONE %q: %w", tzName, err)
	}

	adminDefault := false
	if fc.AdminRoutes != nil {
		adminDefault = *fc.AdminRoutes
	}
	origins := fc.CORSOrigins
	if raw := envutil.String("CORS_ORIGINS", "", log); raw != "" {
		origins = splitList(raw)
	}

	policy := planning.Policy{
		PassThreshold:       envutil.Float("PLAN_PASS_THRESHOLD", fc.Policy.PassThreshold, log),
		DefaultPoints:       envutil.Float("PLAN_POINTS_PER_QUESTION", fc.Policy.PointsPerQuestion, log),
		StudySkillsPerDay:   fc.Policy.StudySkillsPerDay,
		WeekendSkillsPerDay: envutil.Int("PLAN_WEEKEND_SKILLS_PER_DAY", fc.Policy.WeekendSkillsPerDay, log),
		AdaptiveSkillCount:  envutil.Int("PLAN_ADAPTIVE_SKILL_COUNT", fc.Policy.AdaptiveSkillCount, log),
		MinCompletedDays:    envutil.Int("PLAN_MIN_COMPLETED_DAYS", fc.Policy.MinCompletedDays, log),
		KeepVersions:        envutil.Int("PLAN_KEEP_VERSIONS", fc.Policy.KeepVersions, log),
	}.WithDefaults()

	predictTimeout := 5 * time.Second
	if fc.Predictor.TimeoutMS > 0 {
		predictTimeout = time.Duration(fc.Predictor.TimeoutMS) * time.Millisecond
	}
	staleAfter := 10 * time.Minute
	if fc.Regeneration.StaleAfterMinutes > 0 {
		staleAfter = time.Duration(fc.Regeneration.StaleAfterMinutes) * time.Minute
	}

	return Config{
		Port:             envutil.String("PORT", orString(fc.Port, "8080"), log),
		ServiceName:      envutil.String("OTEL_SERVICE_NAME", "studyplan-backend", log),
		Environment:      envutil.String("APP_ENV", orString(fc.Environment, "development"), log),
		AdminRoutes:      envutil.Bool("ADMIN_ROUTES_ENABLED", adminDefault, log),
		CORSOrigins:      origins,
		Location:         loc,
		Policy:           policy,
		PredictTimeout:   envutil.Millis("PLAN_PREDICT_TIMEOUT_MS", predictTimeout, log),
		StaleRunAfter:    staleAfter,
		WriteAttempts:    envutil.Int("PLAN_WRITE_ATTEMPTS", 3, log),
		SkillCatalogFile: envutil.String("SKILL_CATALOG_FILE", fc.SkillCatalogFile, log),
	}, nil
}

func orString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
