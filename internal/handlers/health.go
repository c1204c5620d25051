package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/monitoring"
	"github.com/pinkypartner/pinkypartner/pkg/response"
)

// Health returns a status payload useful for readiness checks. It pings the database when
// one is supplied.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(requestContext(c), 2*time.Second)
			defer cancel()
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "status": "unavailable"})
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}

// HealthProbeHandler serves liveness and readiness reports.
type HealthProbeHandler struct {
	manager *monitoring.HealthManager
}

// NewHealthProbeHandler constructs a HealthProbeHandler.
func NewHealthProbeHandler(manager *monitoring.HealthManager) *HealthProbeHandler {
	if manager == nil {
		manager = monitoring.NewHealthManager()
	}
	return &HealthProbeHandler{manager: manager}
}

// Liveness runs the liveness probes.
func (h *HealthProbeHandler) Liveness(c *gin.Context) {
	writeReport(c, h.manager.EvaluateLiveness(requestContext(c)))
}

// Readiness runs the readiness probes.
func (h *HealthProbeHandler) Readiness(c *gin.Context) {
	writeReport(c, h.manager.EvaluateReadiness(requestContext(c)))
}

func writeReport(c *gin.Context, report monitoring.HealthReport) {
	status := http.StatusOK
	if report.Status == monitoring.StatusDown {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
