package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/studyplan-backend/internal/http/handlers"
	httpMW "github.com/yungbote/studyplan-backend/internal/http/middleware"
	"github.com/yungbote/studyplan-backend/internal/observability"
	"github.com/yungbote/studyplan-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	CORSOrigins []string
	// AdminRoutes exposes completeDay and resequence.
	AdminRoutes bool
	// Tracing adds the otelgin middleware.
	Tracing     bool
	ServiceName string

	StudyPlanHandler *httpH.StudyPlanHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		name := cfg.ServiceName
		if name == "" {
			name = "studyplan-backend"
		}
		r.Use(otelgin.Middleware(name))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	if h := cfg.StudyPlanHandler; h != nil {
		plan := r.Group("/api/v1/learners/:learnerId/plan")
		plan.POST("", h.Generate)
		plan.GET("", h.GetPlan)

		plan.GET("/days/:day", h.GetDayStatus)
		plan.GET("/days/:day/access", h.CanAccess)
		plan.GET("/days/:day/concepts", h.GetDayConcepts)
		plan.GET("/days/:day/results", h.GetDaySkillResults)
		plan.GET("/days/:day/weekly-results", h.GetWeeklyResults)
		plan.POST("/days/:day/attempts", h.SubmitAttempt)

		plan.POST("/regenerate", h.RegeneratePlan)
		plan.GET("/regeneration", h.GetRegenerationEligibility)
		plan.GET("/versions", h.ListPlanVersions)
		plan.GET("/versions/:version", h.GetPlanVersion)
		plan.GET("/review-notes", h.ListReviewNotes)

		if cfg.AdminRoutes {
			plan.POST("/days/:day/complete", h.CompleteDay)
			plan.POST("/resequence", h.Resequence)
			plan.POST("/regeneration/recover", h.RecoverRegeneration)
		}
	}

	return r
}
