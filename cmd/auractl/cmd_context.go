package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thebtf/aura/pkg/models"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Control the context engine",
}

var contextStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start context fusion and pattern evaluation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()
		if err := api.StartContext(ctx); err != nil {
			return err
		}
		fmt.Println("context engine started")
		return nil
	},
}

var contextStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop context fusion and pattern evaluation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()
		if err := api.StopContext(ctx); err != nil {
			return err
		}
		fmt.Println("context engine stopped")
		return nil
	},
}

var contextSnapshotsLimit int

var contextSnapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Show recent fused context snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()

		snapshots, err := api.ContextSnapshots(ctx, contextSnapshotsLimit)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(snapshots)
		}
		for _, s := range snapshots {
			parts := []string{}
			if s.ScreenSnapshot != nil {
				parts = append(parts, "screen")
			}
			if s.AudioSession != nil {
				parts = append(parts, "audio")
			}
			if s.UserIntent != nil {
				parts = append(parts, "intent")
			}
			fmt.Printf("%s  %s  [%s]\n", s.Timestamp.Local().Format("15:04:05"), s.AppName, strings.Join(parts, "+"))
		}
		return nil
	},
}

var triggersLimit int

var contextTriggersCmd = &cobra.Command{
	Use:   "triggers",
	Short: "Show recently fired triggers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()

		triggers, err := api.Triggers(ctx, triggersLimit)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(triggers)
		}
		for _, t := range triggers {
			fmt.Printf("%s  %s -> %s\n", t.FiredAt.Local().Format("15:04:05"), t.PatternName, strings.Join(t.Actions, "; "))
		}
		return nil
	},
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List registered context patterns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()

		patterns, err := api.Patterns(ctx)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(patterns)
		}
		for _, p := range patterns {
			state := "active"
			if !p.IsActive {
				state = "inactive"
			}
			fmt.Printf("%s (%s)\n", p.PatternName, state)
			if p.AppName != "" {
				fmt.Printf("    app: %s\n", p.AppName)
			}
			if p.WindowPattern != "" {
				fmt.Printf("    window: %s\n", p.WindowPattern)
			}
			if len(p.ScreenKeywords) > 0 {
				fmt.Printf("    screen: %s\n", strings.Join(p.ScreenKeywords, ", "))
			}
			if len(p.AudioKeywords) > 0 {
				fmt.Printf("    audio: %s\n", strings.Join(p.AudioKeywords, ", "))
			}
			fmt.Printf("    actions: %s\n", strings.Join(p.TriggerActions, "; "))
		}
		return nil
	},
}

var addPattern models.ContextPattern

var patternsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a context pattern",
	Long: `Registers a pattern that fires its actions when the current context
matches every given condition. At least one condition and one action are
required.

Example:
  auractl patterns add --name incident-watch --app Slack \
    --screen-keyword "deploy failed" --action "take a note incident started"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()

		addPattern.IsActive = true
		if err := api.AddPattern(ctx, addPattern); err != nil {
			return err
		}
		fmt.Printf("pattern %q registered\n", addPattern.PatternName)
		return nil
	},
}

var quietHoursCmd = &cobra.Command{
	Use:   "quiet-hours [start end]",
	Short: "Show or set the trigger suppression window",
	Long: `With no arguments, shows the configured window. With two hour values
(0-23), sets it; equal values disable quiet hours.`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()

		if len(args) == 0 {
			status, err := api.Status(ctx)
			if err != nil {
				return err
			}
			if status.QuietHoursStart == status.QuietHoursEnd {
				fmt.Println("quiet hours disabled")
			} else {
				fmt.Printf("quiet hours %02d:00-%02d:00\n", status.QuietHoursStart, status.QuietHoursEnd)
			}
			return nil
		}
		if len(args) != 2 {
			return fmt.Errorf("need both start and end hours")
		}

		start, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("start hour: %w", err)
		}
		end, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("end hour: %w", err)
		}

		if err := api.SetQuietHours(ctx, start, end); err != nil {
			return err
		}
		fmt.Printf("quiet hours set to %02d:00-%02d:00\n", start, end)
		return nil
	},
}

var filtersCmd = &cobra.Command{
	Use:   "filters",
	Short: "List capture filters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()

		appFilters, err := api.ScreenFilters(ctx)
		if err != nil {
			return err
		}
		audioFilters, err := api.AudioFilters(ctx)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(map[string]any{"screen": appFilters, "audio": audioFilters})
		}
		for _, f := range appFilters {
			fmt.Printf("app   %-20s %s\n", f.AppName, filterMode(f.IsWhitelisted, f.IsBlacklisted))
		}
		for _, f := range audioFilters {
			extra := ""
			if f.VolumeThreshold > 0 {
				extra = fmt.Sprintf(" threshold=%.2f", f.VolumeThreshold)
			}
			if len(f.Keywords) > 0 {
				extra += " keywords=" + strings.Join(f.Keywords, ",")
			}
			fmt.Printf("audio %-20s %s%s\n", f.SourceName, filterMode(f.IsWhitelisted, f.IsBlacklisted), extra)
		}
		return nil
	},
}

func filterMode(whitelisted, blacklisted bool) string {
	switch {
	case whitelisted:
		return "allow"
	case blacklisted:
		return "block"
	default:
		return "neutral"
	}
}

var (
	filterAllow          bool
	filterBlock          bool
	filterWindowPatterns []string
	filterThreshold      float64
	filterKeywords       []string
)

var filtersAppCmd = &cobra.Command{
	Use:   "app <name>",
	Short: "Register an app capture filter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()

		f := models.AppFilter{
			AppName:        args[0],
			IsWhitelisted:  filterAllow,
			IsBlacklisted:  filterBlock,
			WindowPatterns: filterWindowPatterns,
		}
		if err := api.AddScreenFilter(ctx, f); err != nil {
			return err
		}
		fmt.Printf("app filter %q registered\n", f.AppName)
		return nil
	},
}

var filtersAudioCmd = &cobra.Command{
	Use:   "audio <source>",
	Short: "Register an audio source filter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := callCtx()
		defer cancel()

		f := models.AudioFilter{
			SourceName:      args[0],
			IsWhitelisted:   filterAllow,
			IsBlacklisted:   filterBlock,
			VolumeThreshold: filterThreshold,
			Keywords:        filterKeywords,
		}
		if err := api.AddAudioFilter(ctx, f); err != nil {
			return err
		}
		fmt.Printf("audio filter %q registered\n", f.SourceName)
		return nil
	},
}

func init() {
	contextSnapshotsCmd.Flags().IntVar(&contextSnapshotsLimit, "limit", 20, "Maximum snapshots")
	contextTriggersCmd.Flags().IntVar(&triggersLimit, "limit", 20, "Maximum triggers")

	patternsAddCmd.Flags().StringVar(&addPattern.PatternName, "name", "", "Pattern name (required)")
	patternsAddCmd.Flags().StringVar(&addPattern.AppName, "app", "", "Match this foreground app")
	patternsAddCmd.Flags().StringVar(&addPattern.WindowPattern, "window", "", "Match window titles against this regexp")
	patternsAddCmd.Flags().StringSliceVar(&addPattern.ScreenKeywords, "screen-keyword", nil, "Match screen text containing this keyword (repeatable)")
	patternsAddCmd.Flags().StringSliceVar(&addPattern.AudioKeywords, "audio-keyword", nil, "Match transcripts containing this keyword (repeatable)")
	patternsAddCmd.Flags().StringSliceVar(&addPattern.TriggerActions, "action", nil, "Command to run when the pattern fires (repeatable)")
	patternsAddCmd.MarkFlagRequired("name")
	patternsAddCmd.MarkFlagRequired("action")

	filtersAppCmd.Flags().BoolVar(&filterAllow, "allow", false, "Whitelist: capture only listed entries")
	filtersAppCmd.Flags().BoolVar(&filterBlock, "block", false, "Blacklist: never capture this entry")
	filtersAppCmd.Flags().StringSliceVar(&filterWindowPatterns, "window-pattern", nil, "Restrict the filter to matching window titles (repeatable)")
	filtersAudioCmd.Flags().BoolVar(&filterAllow, "allow", false, "Whitelist: capture only listed entries")
	filtersAudioCmd.Flags().BoolVar(&filterBlock, "block", false, "Blacklist: never capture this entry")
	filtersAudioCmd.Flags().Float64Var(&filterThreshold, "threshold", 0, "Per-source volume threshold (0 keeps the default)")
	filtersAudioCmd.Flags().StringSliceVar(&filterKeywords, "keyword", nil, "Keep only sessions mentioning this keyword (repeatable)")

	contextCmd.AddCommand(contextStartCmd, contextStopCmd, contextSnapshotsCmd, contextTriggersCmd)
	patternsCmd.AddCommand(patternsAddCmd)
	filtersCmd.AddCommand(filtersAppCmd, filtersAudioCmd)
	rootCmd.AddCommand(contextCmd, patternsCmd, quietHoursCmd, filtersCmd)
}
