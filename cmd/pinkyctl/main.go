package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/pinkypartner/pinkypartner/pkg/logger"
)

var CLI struct {
	EnvFile  string `help:"Load environment variables from this file before reading config." default:".env" name:"env-file"`
	Config   string `help:"Configuration directory." type:"path"`
	LogLevel string `help:"Log level override." name:"log-level" default:"warn"`

	Migrate  MigrateCmd  `cmd:"" help:"Apply the database schema."`
	Sweep    SweepCmd    `cmd:"" help:"Run a batch sweep (daily_reminders, contracts_ending, weekly_rollover)."`
	Cleanup  CleanupCmd  `cmd:"" help:"Purge expired rate-limit entries and old read notifications."`
	Schedule ScheduleCmd `cmd:"" help:"Print the current obligation window."`
	Audit    AuditCmd    `cmd:"" help:"Check deployment settings and data hygiene."`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("pinkyctl"),
		kong.Description("Operational commands for the PinkyPartner backend"),
		kong.UsageOnError(),
	)

	if CLI.EnvFile != "" {
		if err := godotenv.Load(CLI.EnvFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", CLI.EnvFile, err)
		}
	}

	if err := logger.Init(CLI.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // best effort

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCtx := &Context{
		Ctx:        ctx,
		ConfigPath: CLI.Config,
		Out:        os.Stdout,
	}

	if err := kctx.Run(appCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
