package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pinkypartner/pinkypartner/internal/app"
)

func registerMonitoringRoutes(r *gin.Engine, cfg app.MonitoringConfig) {
	if !cfg.Prometheus.Enabled {
		return
	}
	endpoint := strings.TrimSpace(cfg.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	r.GET(endpoint, gin.WrapH(promhttp.Handler()))
}
