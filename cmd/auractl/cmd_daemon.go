package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/thebtf/aura/pkg/client"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon component status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()

		status, err := api.Status(ctx)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(status)
		}

		fmt.Printf("aurad %s, up %s\n", status.Version, (time.Duration(status.UptimeSeconds) * time.Second).String())
		fmt.Printf("  screen:     %s\n", onOff(status.ScreenRunning))
		fmt.Printf("  audio:      %s (%s)\n", onOff(status.AudioRunning), status.AudioState)
		fmt.Printf("  context:    %s, %d patterns\n", onOff(status.ContextRunning), status.Patterns)
		fmt.Printf("  dispatcher: %s\n", onOff(status.DispatcherRunning))
		if status.QuietHoursStart != status.QuietHoursEnd {
			fmt.Printf("  quiet:      %02d:00-%02d:00\n", status.QuietHoursStart, status.QuietHoursEnd)
		}
		fmt.Printf("  listeners:  %d event stream client(s)\n", status.SSEClients)
		return nil
	},
}

func onOff(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}

var (
	searchKind  string
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Recall stored perception and command records",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) > 0 {
			query = args[0]
		}

		ctx, cancel := callCtx()
		defer cancel()

		outcome, err := api.Search(ctx, query, searchKind, searchLimit)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(outcome)
		}
		for _, hit := range outcome.Results {
			when := time.Unix(hit.CapturedAt, 0).Local().Format("Jan 02 15:04")
			label := hit.App
			if label == "" {
				label = hit.Source
			}
			fmt.Printf("%-8s %s  %s\n", hit.Kind, when, label)
			fmt.Printf("    %s\n", excerpt(hit.Excerpt, 120))
		}
		fmt.Printf("%d result(s)\n", outcome.TotalCount)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail the daemon's live event stream",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		err := api.StreamEvents(ctx, func(e client.StreamEvent) {
			at := e.At
			if at.IsZero() {
				at = time.Now()
			}
			if jsonOut {
				printJSON(e)
				return
			}
			fmt.Printf("%s  %-16s %s\n", at.Local().Format("15:04:05"), e.Type, excerpt(string(e.Data), 140))
		})
		if err == context.Canceled {
			return nil
		}
		return err
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the daemon process",
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Spawn the daemon if it is not already running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := client.EnsureRunning(Version)
		if err != nil {
			return err
		}
		fmt.Printf("daemon ready on port %d\n", port)
		return nil
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port := client.GetPort()
		if !client.IsRunning(port) {
			fmt.Println("daemon not running")
			return nil
		}
		if err := client.KillProcessOnPort(port); err != nil {
			return err
		}
		fmt.Println("daemon stopped")
		return nil
	},
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		port := client.GetPort()
		if client.IsRunning(port) {
			if err := client.KillProcessOnPort(port); err != nil {
				return err
			}
		}

		port, err := client.EnsureRunning(Version)
		if err != nil {
			return err
		}
		fmt.Printf("daemon ready on port %d\n", port)
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchKind, "kind", "", "Restrict to one source: screen, audio, context, commands")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum results")

	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonRestartCmd)
	rootCmd.AddCommand(statusCmd, searchCmd, watchCmd, daemonCmd)
}
