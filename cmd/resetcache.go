package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/meysamhadeli/scaffai/constants/lipgloss"
	"github.com/meysamhadeli/scaffai/providers/middleware"
	"github.com/meysamhadeli/scaffai/utils"
	"github.com/spf13/cobra"
)

type resetCacheOptions struct {
	force    bool
	stats    bool
	maxAge   time.Duration
	maxSize  int64
	maxFiles int
	dryRun   bool
}

// resetCacheCmd represents the reset-cache command
var resetCacheCmd = &cobra.Command{
	Use:   "reset-cache",
	Short: "Reset or trim the skeleton generation cache",
	Long: `The 'reset-cache' command removes cached skeleton generations from the cache directory.
With --max-age, --max-size or --max-files only entries beyond those limits are removed,
oldest first. Use --stats to inspect the cache without changing it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var options resetCacheOptions
		options.force, _ = cmd.Flags().GetBool("force")
		options.stats, _ = cmd.Flags().GetBool("stats")
		options.maxAge, _ = cmd.Flags().GetDuration("max-age")
		options.maxSize, _ = cmd.Flags().GetInt64("max-size")
		options.maxFiles, _ = cmd.Flags().GetInt("max-files")
		options.dryRun, _ = cmd.Flags().GetBool("dry-run")

		rootDependencies, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}
		return handleResetCacheCommand(cmd.Context(), rootDependencies, options)
	},
}

func init() {
	// Define command-specific flags
	resetCacheCmd.Flags().BoolP("force", "f", false, "Force cache reset without confirmation")
	resetCacheCmd.Flags().BoolP("stats", "s", false, "Show cache statistics without changing it")
	resetCacheCmd.Flags().Duration("max-age", 0, "Only remove entries older than this")
	resetCacheCmd.Flags().Int64("max-size", 0, "Only remove the oldest entries while the cache exceeds this many bytes")
	resetCacheCmd.Flags().Int("max-files", 0, "Only remove the oldest entries while the cache holds more than this many files")
	resetCacheCmd.Flags().Bool("dry-run", false, "Report what would be removed")

	// Add the reset-cache command to the root command
	rootCmd.AddCommand(resetCacheCmd)
}

func handleResetCacheCommand(parent context.Context, rootDependencies *RootDependencies, options resetCacheOptions) error {
	out := rootDependencies.Out
	store := rootDependencies.CacheStore
	if store == nil {
		fmt.Fprintln(out, lipgloss.Yellow.Render("Cache is disabled. No cache to reset."))
		return nil
	}

	if options.stats {
		report, err := store.Cleanup(middleware.CleanupOptions{DryRun: true})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, lipgloss.Info.Render("Cache Statistics:"))
		fmt.Fprintf(out, "  Cache Directory: %s\n", store.Dir())
		fmt.Fprintf(out, "  Cached Entries: %d\n", report.FilesBefore)
		return nil
	}

	trim := options.maxAge > 0 || options.maxSize > 0 || options.maxFiles > 0
	if trim || options.dryRun {
		report, err := store.Cleanup(middleware.CleanupOptions{
			MaxAge:   options.maxAge,
			MaxSize:  options.maxSize,
			MaxFiles: options.maxFiles,
			DryRun:   options.dryRun,
		})
		if err != nil {
			return err
		}
		verb := "Removed"
		if report.DryRun {
			verb = "Would remove"
		}
		fmt.Fprintln(out, lipgloss.Green.Render(fmt.Sprintf("%s %d of %d entries (%d by age, %d by size, %d by count), %.2f MB",
			verb, report.Deleted, report.FilesBefore, report.DeletedByAge, report.DeletedBySize, report.DeletedByCount,
			float64(report.FreedBytes)/(1024*1024))))
		return nil
	}

	// Confirm reset for full cache reset (if not forced)
	if !options.force {
		ctx, cancel := signalContext(parent)
		defer cancel()
		prompter := utils.NewPrompter(os.Stdin, out)
		confirmed, err := prompter.Confirm(ctx, "Are you sure you want to reset the entire skeleton cache?", false)
		if err != nil && !isIntakeClosed(err) {
			return err
		}
		if !confirmed {
			fmt.Fprintln(out, lipgloss.Yellow.Render("Cache reset cancelled."))
			return nil
		}
	}

	removed, err := store.Clear()
	if err != nil {
		return fmt.Errorf("error resetting cache: %w", err)
	}
	fmt.Fprintln(out, lipgloss.Green.Render(fmt.Sprintf("✓ Skeleton cache has been reset (%d entries removed).", removed)))
	return nil
}
