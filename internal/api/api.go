package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/nba-datalake/internal/api/handlers"
	"github.com/andresuchdata/nba-datalake/internal/api/middleware"
	"github.com/andresuchdata/nba-datalake/internal/service"
)

type Services struct {
	RunService   *service.RunService
	QueryService *service.QueryService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil {
		if services.RunService != nil {
			runHandler := handlers.NewRunHandler(services.RunService)
			runGroup := apiGroup.Group("/runs")
			{
				runGroup.POST("", runHandler.TriggerRun)
				runGroup.GET("", runHandler.ListRuns)
				runGroup.GET("/:id", runHandler.GetRun)
			}
		}

		if services.QueryService != nil {
			queryHandler := handlers.NewQueryHandler(services.QueryService)
			queryGroup := apiGroup.Group("/queries")
			{
				queryGroup.POST("", queryHandler.SubmitQuery)
				queryGroup.GET("", queryHandler.ListExecutions)
				queryGroup.DELETE("", queryHandler.ClearExecutions)
				queryGroup.GET("/latest", queryHandler.GetStatus)
				queryGroup.GET("/:id", queryHandler.GetStatus)
			}
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
