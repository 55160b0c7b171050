package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/meysamhadeli/scaffai/artifact_store"
	"github.com/meysamhadeli/scaffai/code_analyzer"
	"github.com/meysamhadeli/scaffai/code_generator"
	"github.com/meysamhadeli/scaffai/constants/lipgloss"
	"github.com/meysamhadeli/scaffai/improver"
	"github.com/meysamhadeli/scaffai/languages"
	"github.com/meysamhadeli/scaffai/test_runner"
	"github.com/meysamhadeli/scaffai/utils"
	"github.com/spf13/cobra"
)

var improveCmd = &cobra.Command{
	Use:   "improve <project>",
	Short: "Run the test -> fix -> re-test loop on an existing project workspace.",
	Long: `The 'improve' command runs the project's test suite, asks the model for a fix for
every failing test, appends the fixes to the failing files and runs the suite again,
until it passes or max_iterations test runs have been made.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDependencies, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}
		wait, _ := cmd.Flags().GetBool("wait")
		return handleImproveCommand(cmd.Context(), rootDependencies, args[0], wait)
	},
}

func init() {
	improveCmd.Flags().Bool("wait", false, "Wait for another run on the same workspace to finish instead of failing")
	rootCmd.AddCommand(improveCmd)
}

func handleImproveCommand(parent context.Context, rootDependencies *RootDependencies, project string, wait bool) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	store, err := rootDependencies.Workspace(project, rootDependencies.Profile)
	if err != nil {
		return err
	}
	if info, err := os.Stat(store.Root()); err != nil || !info.IsDir() {
		return fmt.Errorf("project workspace %s does not exist", store.Root())
	}

	generator, err := rootDependencies.Generator()
	if err != nil {
		return err
	}
	codeGenerator, err := code_generator.NewCodeGenerator(generator, rootDependencies.Profile, rootDependencies.Logger)
	if err != nil {
		return err
	}

	defer rootDependencies.displayTokens()
	_, err = runImprover(ctx, rootDependencies, store, codeGenerator, rootDependencies.Profile, wait)
	return err
}

// runImprover wires the loop for store and prints its progress and result.
func runImprover(ctx context.Context, rootDependencies *RootDependencies, store *artifact_store.Store, fixer improver.FixGenerator, profile languages.Profile, wait bool) (*improver.Result, error) {
	cfg := rootDependencies.Config
	logger := rootDependencies.Logger
	out := rootDependencies.Out

	opts := []improver.Option{improver.WithLogger(logger)}

	analyzer, err := code_analyzer.NewCodeAnalyzer(logger)
	if err != nil {
		logger.Warn("source outlines disabled", "error", err)
	} else {
		opts = append(opts, improver.WithOutliner(analyzer))
	}

	if cfg.GitCheckpoint {
		git := utils.NewGitOperations(store.Root())
		if err := git.Init(ctx); err != nil {
			logger.Warn("git checkpoints disabled", "error", err)
		} else {
			opts = append(opts, improver.WithCheckpoints(git))
		}
	}

	spinner := rootDependencies.startProgress("Running tests...")
	opts = append(opts, improver.WithEvents(func(event improver.Event) {
		switch event.Kind {
		case improver.EventTestRun:
			spinner.Stop()
			printTestRun(rootDependencies, event)
		case improver.EventFixRequest:
			spinner.Stop()
			spinner = rootDependencies.startProgress(fmt.Sprintf("Requesting a fix for %s", event.FailureID))
		case improver.EventPatch:
			spinner.Stop()
			fmt.Fprintln(out, lipgloss.Green.Render(fmt.Sprintf("  ✔ patch for %s appended to %s", event.FailureID, event.File)))
			spinner = rootDependencies.startProgress("Running tests...")
		case improver.EventCheckpoint:
			fmt.Fprintln(out, lipgloss.Info.Render(fmt.Sprintf("  checkpoint committed before run %d patches", event.Iteration)))
		case improver.EventFinished:
			spinner.Stop()
		}
	}))

	runner := test_runner.NewCommandRunner(profile, cfg.TestCommand, logger)
	loop := improver.NewImprover(store, runner, fixer, profile, improver.Options{
		MaxIterations: cfg.MaxIterations,
		MaxDuration:   cfg.MaxDuration,
		WaitForLock:   wait,
	}, opts...)

	result, err := loop.Improve(ctx)
	spinner.Stop()
	printResult(rootDependencies, result)
	if errors.Is(err, artifact_store.ErrWorkspaceBusy) {
		return result, fmt.Errorf("%w: another run is improving %s (use --wait)", err, store.Root())
	}
	return result, err
}

func printTestRun(rootDependencies *RootDependencies, event improver.Event) {
	out := rootDependencies.Out
	if event.Outcome == nil {
		return
	}
	if event.Outcome.Success {
		fmt.Fprintln(out, lipgloss.Green.Render(fmt.Sprintf("Run %d: all tests passed", event.Iteration)))
		return
	}
	fmt.Fprintln(out, lipgloss.Yellow.Render(fmt.Sprintf("Run %d: %d failing", event.Iteration, len(event.Outcome.Failures))))
	for _, failure := range event.Outcome.Failures {
		fmt.Fprintf(out, "  - %s\n", failure.ID)
	}
}

func printResult(rootDependencies *RootDependencies, result *improver.Result) {
	if result == nil {
		return
	}
	summary := fmt.Sprintf("State: %s\nTest runs: %d\nPatches: %d\nElapsed: %s",
		result.State, result.Iterations, len(result.Patches), result.Elapsed.Round(time.Millisecond))
	if result.Err != nil && result.State != improver.Converged {
		summary += fmt.Sprintf("\nReason: %v", result.Err)
	}
	fmt.Fprintln(rootDependencies.Out, lipgloss.BoxStyle.Render(summary))
}
