package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/pinkypartner/pinkypartner/internal/api"
	"github.com/pinkypartner/pinkypartner/internal/app"
	"github.com/pinkypartner/pinkypartner/internal/app/maintenance"
	"github.com/pinkypartner/pinkypartner/internal/cache"
	"github.com/pinkypartner/pinkypartner/internal/database"
	"github.com/pinkypartner/pinkypartner/internal/notifications"
	"github.com/pinkypartner/pinkypartner/internal/security"
	"github.com/pinkypartner/pinkypartner/internal/services"
	"github.com/pinkypartner/pinkypartner/pkg/logger"
)

// Context is passed to every command.
type Context struct {
	Ctx        context.Context
	ConfigPath string
	Out        io.Writer

	// Config skips loading from disk when set.
	Config *app.Config
	// Now overrides the clock for sweeps.
	Now func() time.Time
}

func (c *Context) context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

func (c *Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Context) config() (*app.Config, error) {
	if c.Config != nil {
		return c.Config, nil
	}
	var (
		cfg *app.Config
		err error
	)
	if strings.TrimSpace(c.ConfigPath) == "" {
		cfg, err = app.LoadConfig()
	} else {
		cfg, err = app.LoadConfig(c.ConfigPath)
	}
	if err != nil {
		return nil, err
	}
	c.Config = cfg
	return cfg, nil
}

func (c *Context) printJSON(v any) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// runtime is the slice of the server stack needed by batch commands.
type runtime struct {
	db        *gorm.DB
	services  *api.Services
	publisher *notifications.TopicPublisher
}

func (r *runtime) Close() error {
	var err error
	if r.publisher != nil {
		err = multierr.Append(err, r.publisher.Close())
	}
	if r.db != nil {
		if sqlDB, dbErr := r.db.DB(); dbErr == nil {
			err = multierr.Append(err, sqlDB.Close())
		}
	}
	return err
}

func openRuntime(ctx context.Context, cfg *app.Config) (*runtime, error) {
	db, err := database.Open(cfg.Database.Connection())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	rt := &runtime{db: db}

	if err := database.Migrate(db); err != nil {
		_ = rt.Close()
		return nil, err
	}

	// Websocket clients live in the server process, so batch runs deliver to the
	// push topic and the log only.
	dispatchers := notifications.Multi{
		notifications.LogDispatcher{Logger: logger.WithModule("notifications")},
	}
	ps := cfg.Notifications.PubSub
	if cfg.Notifications.Enabled && ps.Enabled {
		rt.publisher, err = notifications.NewTopicPublisher(ctx, ps.ProjectID, ps.Topic)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("initialise pubsub publisher: %w", err)
		}
		push, err := notifications.NewPubSubDispatcher(rt.publisher)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		dispatchers = append(dispatchers, push)
	}

	rt.services, err = api.NewServices(db, cfg, dispatchers)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

// MigrateCmd applies the schema and exits.
type MigrateCmd struct{}

func (cmd *MigrateCmd) Run(ctx *Context) error {
	cfg, err := ctx.config()
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.Database.Connection())
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	if err := database.Migrate(db); err != nil {
		return err
	}
	_, err = fmt.Fprintf(ctx.Out, "schema up to date (%s)\n", cfg.Database.Driver)
	return err
}

// SweepCmd runs one batch job.
type SweepCmd struct {
	Job string `arg:"" enum:"daily_reminders,contracts_ending,weekly_rollover" help:"Sweep to run."`
	At  string `help:"Run as if the current time were this RFC3339 timestamp."`
}

func (cmd *SweepCmd) Run(ctx *Context) error {
	now := ctx.now()
	if strings.TrimSpace(cmd.At) != "" {
		parsed, err := time.Parse(time.RFC3339, cmd.At)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		now = parsed
	}

	cfg, err := ctx.config()
	if err != nil {
		return err
	}
	rt, err := openRuntime(ctx.context(), cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.services.Sweeps.Run(ctx.context(), cmd.Job, now)
	if err != nil {
		return err
	}

	return ctx.printJSON(struct {
		Job string `json:"job"`
		services.SweepResult
	}{Job: cmd.Job, SweepResult: result})
}

// CleanupCmd runs the housekeeping jobs once.
type CleanupCmd struct {
	RetentionDays int `help:"Prune read notifications older than this many days." name:"retention-days" default:"0"`
}

func (cmd *CleanupCmd) Run(ctx *Context) error {
	cfg, err := ctx.config()
	if err != nil {
		return err
	}
	rt, err := openRuntime(ctx.context(), cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	store, err := cache.NewDatabaseStore(rt.db)
	if err != nil {
		return err
	}

	retention := cfg.Maintenance.NotificationRetentionDays
	if cmd.RetentionDays > 0 {
		retention = cmd.RetentionDays
	}

	scheduler := maintenance.NewScheduler(rt.db, rt.services.Sweeps, store,
		maintenance.WithNow(ctx.now),
		maintenance.WithNotificationRetentionDays(retention),
	)
	if err := scheduler.RunOnce(ctx.context()); err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.Out, "cleanup complete")
	return err
}

// ScheduleCmd prints the obligation window containing now.
type ScheduleCmd struct{}

func (cmd *ScheduleCmd) Run(ctx *Context) error {
	cfg, err := ctx.config()
	if err != nil {
		return err
	}
	loc, err := cfg.Schedule.Location()
	if err != nil {
		return err
	}
	start := services.WeekStart(ctx.now(), loc)
	end := start.AddDate(0, 0, services.WindowDays)
	return ctx.printJSON(map[string]string{
		"timezone": loc.String(),
		"start":    start.Format(time.RFC3339),
		"end":      end.Format(time.RFC3339),
	})
}

// AuditCmd prints the security audit and fails when a check fails.
type AuditCmd struct{}

func (cmd *AuditCmd) Run(ctx *Context) error {
	cfg, err := ctx.config()
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.Database.Connection())
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	svc := security.NewAuditService(db, cfg)
	svc.WithClock(ctx.now)
	result := svc.Run(ctx.context())
	if err := ctx.printJSON(result); err != nil {
		return err
	}
	if result.Failed() {
		return errors.New("security audit failed")
	}
	return nil
}
