package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/cake-orders/cmd/cli/commands"
	"github.com/jakechorley/cake-orders/internal/config"
	"github.com/jakechorley/cake-orders/pkg/clients/filloutclient"
	"github.com/jakechorley/cake-orders/pkg/clients/gmailclient"
	"github.com/jakechorley/cake-orders/pkg/core/services"
	"github.com/jakechorley/cake-orders/pkg/db"
	"github.com/jakechorley/cake-orders/pkg/events"
	"github.com/jakechorley/cake-orders/pkg/postgres"
	"github.com/jakechorley/cake-orders/pkg/utils/logging"
)

const eventBufferSize = 100

var env string

func main() {
	app := &commands.AppContext{}

	rootCmd := &cobra.Command{
		Use:   "cake-orders",
		Short: "Cake orders CLI - Sync and manage form orders",
		Long:  `A CLI tool for syncing cake order form submissions into the order store and working through them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp(app)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeApp(app)
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: local, test, prod, etc.)")
	_ = rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.SyncCmd(app))
	rootCmd.AddCommand(commands.ListCmd(app))
	rootCmd.AddCommand(commands.ConfirmCmd(app))
	rootCmd.AddCommand(commands.ViewCmd(app))
	rootCmd.AddCommand(commands.MessageCmd(app))
	rootCmd.AddCommand(commands.CompleteCmd(app))
	rootCmd.AddCommand(commands.DeleteCmd(app))
	rootCmd.AddCommand(commands.UndeleteCmd(app))
	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		closeApp(app)
		os.Exit(1)
	}
}

// initApp loads config, then sets up the logger, store, clients and board
func initApp(app *commands.AppContext) error {
	var err error
	app.Ctx = context.Background()

	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app.Logger, err = logging.InitLogger(env, app.Cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger.Info("Starting application", zap.String("environment", env))

	switch app.Cfg.Database.Driver {
	case "postgres":
		app.Logger.Info("Connecting to database")
		app.Postgres, err = postgres.NewDB(app.Ctx, app.Cfg.Database.URL, app.Cfg.Database.MaxConns, app.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := app.Postgres.RunMigrations(app.Ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		app.Store = app.Postgres
	default:
		app.Logger.Warn("Using in-memory store, nothing is kept between runs")
		app.Store = db.NewMemoryDB()
	}
	app.Logger.Debug("Store initialized", zap.String("driver", app.Cfg.Database.Driver))

	app.FilloutClient = filloutclient.NewClient(app.Ctx, app.Cfg.Fillout, app.Logger)

	if app.Cfg.Notifications.Enabled {
		app.Logger.Info("Initializing gmail client")
		gmail, err := gmailclient.NewClient(app.Ctx, app.Cfg.Notifications)
		if err != nil {
			return fmt.Errorf("failed to create gmail client: %w", err)
		}
		app.Notifier = gmail
	}

	app.Bus = events.NewBus(eventBufferSize)
	app.Board = services.NewBoard(app.Store, app.Bus, app.Logger)

	return nil
}

func closeApp(app *commands.AppContext) {
	if app.Bus != nil {
		app.Bus.Close()
		app.Bus = nil
	}
	if app.Postgres != nil {
		app.Postgres.Close()
		app.Postgres = nil
	}
	if app.Logger != nil {
		_ = app.Logger.Sync()
	}
}
