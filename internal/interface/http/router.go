package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/mealplanner/internal/domain/session"
	"github.com/yanqian/mealplanner/internal/infra/config"
	"github.com/yanqian/mealplanner/pkg/util"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler, sessions *session.Manager) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	handler.WithMaxUploadBytes(cfg.HTTP.MaxUploadBytes)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		corsMiddleware(cfg.HTTP.AllowedOrigins),
		errorHandlingMiddleware(handler.logger),
	)
	limit := rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger)

	router.GET("/healthz", handler.Health)

	api := router.Group("/api/v1")
	api.POST("/sessions", limit, handler.OpenSession)

	authed := api.Group("")
	authed.Use(resolveSession(sessions), limit, requireSession())
	{
		authed.DELETE("/sessions", handler.withSession(handler.CloseSession))

		authed.GET("/plan", handler.withSession(handler.GetPlan))
		authed.GET("/plan/events", handler.withSession(handler.StreamPlanEvents))
		authed.POST("/plan/generate", handler.withSession(handler.GeneratePlan))
		authed.POST("/plan/meals", handler.withSession(handler.AddMeal))
		authed.GET("/plan/meals/:id", handler.withSession(handler.SelectMeal))
		authed.DELETE("/plan/meals/:id", handler.withSession(handler.RemoveMeal))
		authed.DELETE("/plan/selection", handler.withSession(handler.ClearSelection))
		authed.GET("/plan/export", handler.withSession(handler.ExportPlan))
		authed.GET("/exports", handler.withSession(handler.ListExports))

		authed.GET("/allergies", handler.withSession(handler.GetAllergies))
		authed.DELETE("/allergies", handler.withSession(handler.ClearAllergies))
		authed.POST("/allergies/selection", handler.withSession(handler.BeginAllergyEdit))
		authed.DELETE("/allergies/selection", handler.withSession(handler.CancelAllergyEdit))
		authed.POST("/allergies/selection/toggle", handler.withSession(handler.ToggleAllergy))
		authed.POST("/allergies/selection/custom", handler.withSession(handler.AddCustomAllergy))
		authed.DELETE("/allergies/selection/custom/:name", handler.withSession(handler.RemoveAllergy))
		authed.POST("/allergies/selection/commit", handler.withSession(handler.CommitAllergies))
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        router,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", util.Since(start))
	}
}
