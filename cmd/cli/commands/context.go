package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/jakechorley/cake-orders/internal/config"
	"github.com/jakechorley/cake-orders/pkg/clients/filloutclient"
	"github.com/jakechorley/cake-orders/pkg/core/services"
	"github.com/jakechorley/cake-orders/pkg/db"
	"github.com/jakechorley/cake-orders/pkg/events"
	"github.com/jakechorley/cake-orders/pkg/postgres"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg           *config.Config
	FilloutClient *filloutclient.Client
	Notifier      services.NewSubmissionNotifier // nil when notifications are disabled
	Store         db.SubmissionStore
	Postgres      *postgres.DB // nil for the in-memory store
	Bus           *events.Bus
	Board         *services.Board
	Logger        *zap.Logger
	Ctx           context.Context
}
