package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jakechorley/cake-orders/pkg/core/services"
)

// InteractiveCmd creates the interactive command. The board is kept for the whole session,
// so orders listed once can be confirmed, messaged and so on without listing them again.
func InteractiveCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Start an interactive session (connect once, run many commands)",
		Long: `Start an interactive session that keeps the store connection and the current order view
between commands. Type 'help' to see available commands, 'exit' or 'quit' to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			commands := siblingCommands(cmd)

			fmt.Println("\n🎂 Cake orders interactive session")
			fmt.Println("Type 'help' for available commands, 'exit' or 'quit' to leave")

			return runSession(app, os.Stdin, commands)
		},
	}
}

func runSession(app *AppContext, in io.Reader, commands map[string]*cobra.Command) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		parts, err := parseCommandLine(strings.TrimSpace(scanner.Text()))
		if err != nil {
			fmt.Printf("❌ Error parsing command: %v\n\n", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}

		name, cmdArgs := parts[0], parts[1:]
		switch name {
		case "exit", "quit":
			fmt.Println("👋 Goodbye!")
			return nil
		case "help":
			printInteractiveHelp(commands)
			continue
		case "show":
			showCurrentView(app)
			continue
		}

		target, ok := commands[name]
		if !ok {
			fmt.Printf("❌ Unknown command: %s (type 'help' for available commands)\n\n", name)
			continue
		}

		if err := runInSession(target, cmdArgs); err != nil {
			fmt.Printf("❌ Error: %v\n\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}

// runInSession calls the command's RunE directly. Going through Execute would run
// PersistentPreRunE again and rebuild the app.
func runInSession(target *cobra.Command, args []string) error {
	target.Flags().VisitAll(func(flag *pflag.Flag) {
		flag.Changed = false
		_ = flag.Value.Set(flag.DefValue)
	})

	if err := target.ParseFlags(args); err != nil {
		return fmt.Errorf("parsing flags: %w", err)
	}
	args = target.Flags().Args()

	if target.Args != nil {
		if err := target.Args(target, args); err != nil {
			return err
		}
	}

	switch {
	case target.RunE != nil:
		return target.RunE(target, args)
	case target.Run != nil:
		target.Run(target, args)
	}
	return nil
}

func siblingCommands(cmd *cobra.Command) map[string]*cobra.Command {
	commands := make(map[string]*cobra.Command)
	for _, sub := range cmd.Parent().Commands() {
		switch sub.Name() {
		case "interactive", "completion", "help", "serve":
			continue
		}
		commands[sub.Name()] = sub
	}
	return commands
}

func showCurrentView(app *AppContext) {
	filter := app.Board.Filter()
	if filter == (services.Filter{}) {
		fmt.Println("Nothing listed yet, run 'list' first")
		return
	}
	renderGroups(os.Stdout, filter, app.Board.View())
}

func printInteractiveHelp(commands map[string]*cobra.Command) {
	fmt.Println("\nAvailable commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Printf("  %-36s %s\n", commands[name].Use, commands[name].Short)
	}

	fmt.Printf("\n  %-36s %s\n", "show", "Show the current view again")
	fmt.Printf("  %-36s %s\n", "help", "Show this help message")
	fmt.Printf("  %-36s %s\n\n", "exit, quit", "Exit the interactive session")
}

// parseCommandLine splits a line into arguments. Single and double quotes group words.
func parseCommandLine(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quote   rune
		inArg   bool
	)

	for _, r := range line {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
			current.WriteRune(r)
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case unicode.IsSpace(r):
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}

	if quote != 0 {
		return nil, fmt.Errorf("unclosed quote: %c", quote)
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}
