package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jakechorley/cake-orders/pkg/core/services"
	"github.com/jakechorley/cake-orders/pkg/events"
	"github.com/jakechorley/cake-orders/pkg/postgres"
	"github.com/jakechorley/cake-orders/pkg/scheduler"
	"github.com/jakechorley/cake-orders/pkg/webhook"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and the scheduled sync until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			noPoll, _ := cmd.Flags().GetBool("no-poll")

			ctx, stop := signal.NotifyContext(app.Ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			unsubscribe := logEvents(app)
			defer unsubscribe()

			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				return runHTTPServer(ctx, app)
			})

			if !noPoll {
				poller, err := scheduler.NewPoller(app.Cfg.Sync.Schedule, func(ctx context.Context) error {
					_, err := services.SyncSubmissions(ctx, app.FilloutClient, app.Store, app.Bus, app.Notifier, app.Cfg, app.Logger)
					return err
				}, app.Logger)
				if err != nil {
					return err
				}
				g.Go(func() error {
					return poller.Run(ctx)
				})
			}

			if app.Postgres != nil {
				g.Go(func() error {
					return app.Postgres.ListenForChanges(ctx, func(n postgres.ChangeNotification) {
						app.Bus.Publish(events.Event{
							Type:         events.EventSubmissionChanged,
							SubmissionID: n.SubmissionID,
							CollectionID: n.CollectionID,
							Source:       "store",
							Detail:       map[string]any{"type": n.Type, "state": n.State},
						})
					})
				})
			}

			fmt.Printf("\n🚀 Serving on %s (Ctrl+C to stop)\n\n", app.Cfg.Server.Addr)
			return g.Wait()
		},
	}

	cmd.Flags().Bool("no-poll", false, "Only accept webhooks, do not poll on the sync schedule")

	return cmd
}

func runHTTPServer(ctx context.Context, app *AppContext) error {
	if app.Cfg.Server.WebhookSecret == "" {
		app.Logger.Warn("WEBHOOK_SECRET is not set, webhook requests are not authenticated")
	}

	handler := webhook.NewHandler(app.Store, app.Bus, app.Cfg.Server.WebhookSecret, app.Logger)
	srv := &http.Server{
		Addr:              app.Cfg.Server.Addr,
		Handler:           webhook.NewRouter(handler, app.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.Logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	app.Logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// logEvents subscribes to the bus and logs what happens while serving
func logEvents(app *AppContext) func() {
	unsubChanged := app.Bus.Subscribe(events.EventSubmissionChanged, func(e events.Event) {
		app.Logger.Debug("Submission changed",
			zap.String("submission_id", e.SubmissionID),
			zap.String("collection_id", e.CollectionID),
			zap.String("source", e.Source))
	})
	unsubSynced := app.Bus.Subscribe(events.EventSyncCompleted, func(e events.Event) {
		app.Logger.Info("Scheduled sync finished", zap.Any("detail", e.Detail))
	})

	return func() {
		unsubChanged()
		unsubSynced()
	}
}
