package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thebtf/aura/pkg/client"
	"github.com/thebtf/aura/pkg/models"
)

var (
	execContext string
	execYes     bool
)

var execCmd = &cobra.Command{
	Use:   "exec <command...>",
	Short: "Route and run a free-text command",
	Long: `Routes the command through exact and fuzzy matching, then the
clarifier. A clarifier interpretation is shown and must be confirmed
before anything executes; pass -y to approve it unprompted.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.Join(args, " ")

		// exec works from a cold start.
		if _, err := client.EnsureRunning(Version); err != nil {
			return err
		}

		ctx, cancel := callCtx()
		defer cancel()

		result, err := api.Execute(ctx, command, execContext)
		if err != nil {
			return err
		}

		if result.Outcome != nil && result.Outcome.Status == models.RoutingNeedsConfirmation {
			return confirmFlow(command, result)
		}

		if jsonOut {
			return printJSON(result)
		}
		printResult(result)
		return nil
	},
}

// confirmFlow shows a clarifier interpretation and sends the user's decision
// back. Declines are reported too so the clarifier gets the feedback.
func confirmFlow(command string, result *models.CommandResult) error {
	c := result.Outcome.Clarification
	if c == nil {
		return fmt.Errorf("daemon asked for confirmation without a clarification")
	}

	if jsonOut && !execYes {
		// Machine callers get the raw outcome and confirm on their own.
		return printJSON(result)
	}

	fmt.Printf("Interpreted as: %s\n", c.ClarifiedIntent)
	for i, step := range c.ActionSteps {
		fmt.Printf("  %d. %s\n", i+1, step)
	}
	fmt.Printf("Confidence %.0f%%, valid until %s\n", c.Confidence*100, c.ExpiresAt.Local().Format("15:04:05"))

	approved := execYes
	if !approved {
		fmt.Print("Run these steps? [y/N] ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		approved = answer == "y" || answer == "yes"
	}

	ctx, cancel := callCtx()
	defer cancel()

	confirmResult, err := api.Confirm(ctx, &models.ConfirmRequest{
		Confirmation:    approved,
		Clarification:   c,
		OriginalCommand: command,
	})
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(confirmResult)
	}
	for _, line := range confirmResult.Results {
		fmt.Println(line)
	}
	return nil
}

func printResult(result *models.CommandResult) {
	if result.Success {
		fmt.Println(result.Result)
		return
	}
	if result.Error != "" {
		fmt.Fprintf(os.Stderr, "failed: %s\n", result.Error)
	}
	if result.Fallback != nil && result.Fallback.Message != "" {
		fmt.Println(result.Fallback.Message)
	}
	steps := result.NextSteps
	if result.Fallback != nil && len(result.Fallback.NextSteps) > 0 {
		steps = result.Fallback.NextSteps
	}
	for _, step := range steps {
		fmt.Printf("  next: %s\n", step)
	}
}

var suggestLimit int

var suggestCmd = &cobra.Command{
	Use:   "suggest [prefix]",
	Short: "Suggest commands from history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}

		ctx, cancel := callCtx()
		defer cancel()

		suggestions, err := api.Suggestions(ctx, prefix, suggestLimit)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(suggestions)
		}
		for _, s := range suggestions {
			fmt.Println(s)
		}
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently executed commands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()

		entries, err := api.History(ctx, historyLimit)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(entries)
		}
		for _, e := range entries {
			mark := "ok  "
			if !e.Success {
				mark = "fail"
			}
			fmt.Printf("%s  %s  %s\n", e.Timestamp.Local().Format("Jan 02 15:04"), mark, e.Command)
		}
		return nil
	},
}

func init() {
	execCmd.Flags().StringVar(&execContext, "context", "", "Context text for the clarifier (default: daemon's current context)")
	execCmd.Flags().BoolVarP(&execYes, "yes", "y", false, "Approve clarifier interpretations without prompting")
	suggestCmd.Flags().IntVar(&suggestLimit, "limit", 5, "Maximum suggestions")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum entries")

	rootCmd.AddCommand(execCmd, suggestCmd, historyCmd)
}
