// Package main provides auractl, the command-line controller for the aura
// daemon.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/thebtf/aura/pkg/client"
)

// Version is stamped at release time through ldflags.
var Version = "dev"

var (
	api     *client.Client
	jsonOut bool
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "auractl",
	Short: "Control the aura ambient assistant daemon",
	Long: `auractl drives the aura daemon: run commands, manage perception,
inspect fused context, and tail the live event stream.

Quick start:
  auractl daemon start               # Spawn the daemon if it is not running
  auractl exec "open chrome"         # Route and run a command
  auractl screen start               # Start screen perception
  auractl status                     # Component status
  auractl watch                      # Tail live events`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.WarnLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(level)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})

		api = client.NewFromEnv()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print client and daemon versions",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("auractl %s\n", Version)
		if daemon := client.DaemonVersion(client.GetPort()); daemon != "" {
			fmt.Printf("aurad   %s\n", daemon)
		} else {
			fmt.Println("aurad   not running")
		}
	},
}

// callCtx bounds one API invocation.
func callCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// printJSON pretty-prints v to stdout.
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
