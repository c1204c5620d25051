package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/api"
	"github.com/pinkypartner/pinkypartner/internal/app"
	"github.com/pinkypartner/pinkypartner/internal/app/maintenance"
	iauth "github.com/pinkypartner/pinkypartner/internal/auth"
	"github.com/pinkypartner/pinkypartner/internal/cache"
	"github.com/pinkypartner/pinkypartner/internal/database"
	"github.com/pinkypartner/pinkypartner/internal/monitoring"
	"github.com/pinkypartner/pinkypartner/internal/notifications"
	"github.com/pinkypartner/pinkypartner/internal/realtime"
	"github.com/pinkypartner/pinkypartner/pkg/logger"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Hub       *realtime.Hub
	Publisher *notifications.TopicPublisher
	Services  *api.Services
	Scheduler *maintenance.Scheduler
	Jobs      *monitoring.JobTracker
	Router    *gin.Engine
	Handler   http.Handler
}

// bootstrapRuntime initialises the database, notification transports, services and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := ensureSecretsPresent(cfg); err != nil {
		return nil, err
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	counter, err := cache.NewDatabaseStore(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise cache store: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	origins := cfg.Server.CORS.AllowedOrigins
	stack.Hub = realtime.NewHub(realtime.WithAllowedOrigins(origins))

	dispatcher, err := stack.buildDispatcher(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	stack.Services, err = api.NewServices(stack.DB, cfg, dispatcher)
	if err != nil {
		return nil, fmt.Errorf("initialise services: %w", err)
	}

	if cfg.Maintenance.Enabled {
		loc, err := cfg.Schedule.Location()
		if err != nil {
			return nil, err
		}
		m := cfg.Maintenance
		stack.Jobs = monitoring.NewJobTracker()
		stack.Scheduler = maintenance.NewScheduler(stack.DB, stack.Services.Sweeps, counter,
			maintenance.WithLocation(loc),
			maintenance.WithTracker(stack.Jobs),
			maintenance.WithNotificationRetentionDays(m.NotificationRetentionDays),
			maintenance.WithSchedules(m.ReminderSpec, m.EndingSpec, m.RolloverSpec, m.PurgeSpec),
		)
		if err := stack.Scheduler.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(api.RouterDeps{
		DB:          stack.DB,
		Config:      cfg,
		JWT:         jwtSvc,
		Services:    stack.Services,
		Hub:         stack.Hub,
		RateCounter: counter,
		Jobs:        stack.Jobs,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}
	stack.Handler = withCORS(stack.Router, origins)

	success = true
	return stack, nil
}

// buildDispatcher fans notifications out to open websockets, the push topic when enabled,
// and the log.
func (s *runtimeStack) buildDispatcher(ctx context.Context, cfg *app.Config, log *zap.Logger) (notifications.Dispatcher, error) {
	dispatchers := notifications.Multi{
		notifications.NewRealtimeDispatcher(s.Hub),
		notifications.LogDispatcher{Logger: logger.WithModule("notifications")},
	}

	ps := cfg.Notifications.PubSub
	if cfg.Notifications.Enabled && ps.Enabled {
		publisher, err := notifications.NewTopicPublisher(ctx, strings.TrimSpace(ps.ProjectID), strings.TrimSpace(ps.Topic))
		if err != nil {
			return nil, fmt.Errorf("initialise pubsub publisher: %w", err)
		}
		s.Publisher = publisher

		push, err := notifications.NewPubSubDispatcher(publisher)
		if err != nil {
			return nil, err
		}
		dispatchers = append(dispatchers, push)
		log.Info("push hand-off enabled", zap.String("project", ps.ProjectID), zap.String("topic", ps.Topic))
	}

	return dispatchers, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		<-s.Scheduler.Stop().Done()
		if err := s.Scheduler.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
		s.Scheduler = nil
	}

	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			log.Warn("pubsub shutdown", zap.Error(err))
		}
		s.Publisher = nil
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
		s.DB = nil
	}
}

func withCORS(handler http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		return handler
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Webhook-Secret"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
	})
	return c.Handler(handler)
}

func ensureSecretsPresent(cfg *app.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Auth.JWT.Secret = strings.TrimSpace(cfg.Auth.JWT.Secret)
	if cfg.Auth.JWT.Secret == "" {
		return errors.New("auth.jwt.secret must be configured")
	}

	ps := cfg.Notifications.PubSub
	if ps.Enabled && (strings.TrimSpace(ps.ProjectID) == "" || strings.TrimSpace(ps.Topic) == "") {
		return errors.New("notifications.pubsub requires project_id and topic")
	}

	return nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.Connection()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
