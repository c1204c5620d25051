package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/handlers"
	"github.com/pinkypartner/pinkypartner/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, db *gorm.DB, manager *monitoring.HealthManager) {
	health := handlers.Health(db)
	r.GET("/health", health)
	r.GET("/api/health", health)

	probes := handlers.NewHealthProbeHandler(manager)
	r.GET("/health/live", probes.Liveness)
	r.GET("/health/ready", probes.Readiness)
}
