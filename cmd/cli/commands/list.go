package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/cake-orders/pkg/core/model"
	"github.com/jakechorley/cake-orders/pkg/core/services"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

// ListCmd creates the list command
func ListCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders grouped by pickup date (default: --type new)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			typeFlag, _ := cmd.Flags().GetString("type")
			stateFlag, _ := cmd.Flags().GetString("state")
			name, _ := cmd.Flags().GetString("name")

			filter, err := parseFilter(typeFlag, stateFlag)
			if err != nil {
				return err
			}
			filter = filter.WithName(name)

			app.Logger.Debug("list command", zap.String("filter", filter.String()), zap.String("name", name))

			groups, err := app.Board.Show(app.Ctx, filter)
			if err != nil {
				return err
			}

			renderGroups(os.Stdout, filter, groups)
			return nil
		},
	}

	cmd.Flags().String("type", "", "Lifecycle type: new, confirmed, completed or deleted")
	cmd.Flags().String("state", "", "Attention state: unviewed, viewed or messaged")
	cmd.Flags().String("name", "", "Only orders whose customer name contains this text")

	return cmd
}

func parseFilter(typeFlag, stateFlag string) (services.Filter, error) {
	switch {
	case typeFlag != "" && stateFlag != "":
		return services.Filter{}, fmt.Errorf("use either --type or --state, not both")
	case stateFlag != "":
		s, err := model.ParseSubmissionState(stateFlag)
		if err != nil {
			return services.Filter{}, err
		}
		return services.ByState(s), nil
	case typeFlag != "":
		t, err := model.ParseSubmissionType(typeFlag)
		if err != nil {
			return services.Filter{}, err
		}
		return services.ByType(t), nil
	default:
		return services.ByType(model.TypeNew), nil
	}
}

func renderGroups(w io.Writer, filter services.Filter, groups []services.DateGroup) {
	total := 0
	for _, g := range groups {
		total += len(g.Submissions)
	}

	fmt.Fprintf(w, "\n%s%d orders (%s)%s\n", colorBold, total, filter.String(), colorReset)
	if total == 0 {
		fmt.Fprintln(w, "\nNothing to show.")
		return
	}

	for _, g := range groups {
		fmt.Fprintf(w, "\n%s%s%s\n", colorBold, g.Date.Format("Mon 02 Jan 2006"), colorReset)
		fmt.Fprintln(w, strings.Repeat("-", 48))
		for _, s := range g.Submissions {
			fmt.Fprintf(w, "  %-24s %s %s%s%s\n",
				displayName(s.CustomerName()),
				typeLabel(s.Type),
				colorDim, s.SubmissionID, colorReset)
			fmt.Fprintf(w, "  %-24s %s\n", "", stateLabel(s.State))
		}
	}
	fmt.Fprintln(w)
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "(no name)"
	}
	return name
}

func typeLabel(t model.SubmissionType) string {
	switch t {
	case model.TypeConfirmed:
		return colorGreen + "confirmed" + colorReset
	case model.TypeCompleted:
		return colorDim + "completed" + colorReset
	case model.TypeDeleted:
		return colorRed + "deleted" + colorReset
	default:
		return colorYellow + "new" + colorReset
	}
}

func stateLabel(s model.SubmissionState) string {
	switch s {
	case model.StateMessaged:
		return colorGreen + "✉ messaged" + colorReset
	case model.StateViewed:
		return "👁 viewed"
	default:
		return colorYellow + "● unviewed" + colorReset
	}
}
