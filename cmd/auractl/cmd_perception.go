package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// durationPrecision rounds session lengths for display.
const durationPrecision = 100 * time.Millisecond

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Control screen perception",
}

var screenStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the screen sentinel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()
		if err := api.StartScreen(ctx); err != nil {
			return err
		}
		fmt.Println("screen perception started")
		return nil
	},
}

var screenStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the screen sentinel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()
		if err := api.StopScreen(ctx); err != nil {
			return err
		}
		fmt.Println("screen perception stopped")
		return nil
	},
}

var screenSnapshotsLimit int

var screenSnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Show recent screen snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()

		snapshots, err := api.ScreenSnapshots(ctx, screenSnapshotsLimit)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(snapshots)
		}
		for _, s := range snapshots {
			fmt.Printf("%s  %s — %s\n", s.CapturedAt.Local().Format("15:04:05"), s.AppName, s.WindowTitle)
			fmt.Printf("    %s\n", excerpt(s.ExtractedText, 120))
		}
		return nil
	},
}

var audioCmd = &cobra.Command{
	Use:   "audio",
	Short: "Control audio perception",
}

var audioStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the audio sentinel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()
		if err := api.StartAudio(ctx); err != nil {
			return err
		}
		fmt.Println("audio perception started")
		return nil
	},
}

var audioStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the audio sentinel",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()
		if err := api.StopAudio(ctx); err != nil {
			return err
		}
		fmt.Println("audio perception stopped")
		return nil
	},
}

var audioSessionsLimit int

var audioSessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Show recent sealed audio sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()

		sessions, err := api.AudioSessions(ctx, audioSessionsLimit)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(sessions)
		}
		for _, s := range sessions {
			fmt.Printf("%s  %s (%s)\n", s.StartTime.Local().Format("15:04:05"), s.SourceName, s.Duration().Round(durationPrecision))
			fmt.Printf("    %s\n", excerpt(s.Transcript, 120))
		}
		return nil
	},
}

// excerpt trims s to at most n runes for one-line display.
func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func init() {
	screenSnapshotsCmd.Flags().IntVar(&screenSnapshotsLimit, "limit", 20, "Maximum snapshots")
	audioSessionsCmd.Flags().IntVar(&audioSessionsLimit, "limit", 20, "Maximum sessions")

	screenCmd.AddCommand(screenStartCmd, screenStopCmd, screenSnapshotsCmd)
	audioCmd.AddCommand(audioStartCmd, audioStopCmd, audioSessionsCmd)
	rootCmd.AddCommand(screenCmd, audioCmd)
}
