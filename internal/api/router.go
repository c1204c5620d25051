package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/app"
	iauth "github.com/pinkypartner/pinkypartner/internal/auth"
	"github.com/pinkypartner/pinkypartner/internal/cache"
	"github.com/pinkypartner/pinkypartner/internal/handlers"
	"github.com/pinkypartner/pinkypartner/internal/middleware"
	"github.com/pinkypartner/pinkypartner/internal/monitoring"
	"github.com/pinkypartner/pinkypartner/internal/monitoring/checks"
	"github.com/pinkypartner/pinkypartner/internal/realtime"
)

// RouterDeps carries the long-lived collaborators of the HTTP layer.
type RouterDeps struct {
	DB       *gorm.DB
	Config   *app.Config
	JWT      *iauth.JWTService
	Services *Services
	Hub      *realtime.Hub
	// RateCounter backs the request limiter; nil disables limiting.
	RateCounter cache.Counter
	// Jobs adds the maintenance probe to readiness when set.
	Jobs *monitoring.JobTracker
}

// NewRouter builds the Gin engine, wires middleware and registers the API routes.
func NewRouter(deps RouterDeps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, errors.New("api: database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, errors.New("api: jwt service must be provided")
	}
	if deps.Config == nil {
		return nil, errors.New("api: config must be provided")
	}
	if deps.Services == nil {
		return nil, errors.New("api: services must be provided")
	}
	if deps.Hub == nil {
		deps.Hub = realtime.NewHub(realtime.WithAllowedOrigins(deps.Config.Server.CORS.AllowedOrigins))
	}

	cfg := deps.Config
	cookies := cfg.Referral.CookieConfig()

	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.RateLimit(deps.RateCounter, cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.EffectiveWindow()))
	r.Use(middleware.ReferralCapture(cookies))

	registerHealthRoutes(r, deps.DB, healthManager(deps))
	registerMonitoringRoutes(r, cfg.Monitoring)

	requireAuth := middleware.Auth(deps.JWT)
	svc := deps.Services

	authHandler := handlers.NewAuthHandler(svc.Users, svc.Referrals, deps.JWT, cookies)
	registerAuthRoutes(r, requireAuth, authHandler)

	registerBillingRoutes(r, handlers.NewBillingHandler(svc.Billing))
	registerRealtimeRoutes(r, requireAuth, handlers.NewRealtimeHandler(deps.Hub))

	api := r.Group("/api")
	api.Use(requireAuth)

	registerContractRoutes(api,
		handlers.NewContractHandler(svc.Contracts, svc.Membership),
		handlers.NewInstanceHandler(svc.Instances),
	)
	registerNotificationRoutes(api, handlers.NewNotificationHandler(svc.Notifications))
	registerUserRoutes(api, handlers.NewUserHandler(svc.Users))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func healthManager(deps RouterDeps) *monitoring.HealthManager {
	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(checks.Realtime(deps.Hub))
	manager.RegisterReadiness(checks.Database(deps.DB, 0))
	if deps.Jobs != nil {
		manager.RegisterReadiness(checks.Maintenance(deps.Jobs, 0))
	}
	return manager
}
