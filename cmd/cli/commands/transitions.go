package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/cake-orders/pkg/core/model"
	"github.com/jakechorley/cake-orders/pkg/core/services"
)

// transitionFunc is a Board method expression, bound to the board only once the app is initialised
type transitionFunc func(b *services.Board, ctx context.Context, submissionID string) (*services.Outcome, error)

// ConfirmCmd creates the confirm command
func ConfirmCmd(app *AppContext) *cobra.Command {
	return transitionCmd(app, "confirm", "Mark orders as confirmed", (*services.Board).Confirm)
}

// ViewCmd creates the view command
func ViewCmd(app *AppContext) *cobra.Command {
	return transitionCmd(app, "view", "Mark orders as viewed (messaged orders are left alone)", (*services.Board).MarkViewed)
}

// MessageCmd creates the message command
func MessageCmd(app *AppContext) *cobra.Command {
	return transitionCmd(app, "message", "Mark new orders as messaged", (*services.Board).MarkMessaged)
}

// CompleteCmd creates the complete command
func CompleteCmd(app *AppContext) *cobra.Command {
	return transitionCmd(app, "complete", "Mark orders as completed", (*services.Board).MarkCompleted)
}

// DeleteCmd creates the delete command
func DeleteCmd(app *AppContext) *cobra.Command {
	return transitionCmd(app, "delete", "Mark orders as deleted (they stay in the store)", (*services.Board).MarkDeleted)
}

// UndeleteCmd creates the undelete command
func UndeleteCmd(app *AppContext) *cobra.Command {
	return transitionCmd(app, "undelete", "Return deleted orders to new", (*services.Board).Undelete)
}

// transitionCmd applies fn to every submission ID given. A failure on one ID does not stop the rest.
func transitionCmd(app *AppContext, use, short string, fn transitionFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <submission_id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug(use+" command", zap.Strings("submission_ids", args))

			missing, err := app.Board.Load(app.Ctx, args...)
			if err != nil {
				return err
			}
			for _, id := range missing {
				app.Logger.Debug("Submission not in store", zap.String("submission_id", id))
			}

			failed := 0
			for _, id := range args {
				outcome, err := fn(app.Board, app.Ctx, id)
				if err != nil {
					failed++
					var notFound *model.NotFoundError
					if errors.As(err, &notFound) {
						fmt.Printf("  ✗ %s: not found\n", id)
					} else {
						fmt.Printf("  ✗ %s: %v\n", id, err)
					}
					continue
				}
				fmt.Println(describeOutcome(id, outcome))
			}

			if failed > 0 {
				return fmt.Errorf("%s failed for %d of %d submissions", use, failed, len(args))
			}
			return nil
		},
	}
}

func describeOutcome(id string, outcome *services.Outcome) string {
	sub := outcome.Submission
	status := fmt.Sprintf("%s/%s", sub.Type, sub.State)

	var line string
	if outcome.Changed {
		line = fmt.Sprintf("  ✓ %s %s → %s", displayName(sub.CustomerName()), id, status)
	} else {
		line = fmt.Sprintf("  - %s %s unchanged (%s)", displayName(sub.CustomerName()), id, status)
	}
	switch {
	case outcome.Removed:
		line += " [removed from view]"
	case outcome.Added:
		line += " [added to view]"
	}
	return line
}
