package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/meysamhadeli/scaffai/code_generator"
	"github.com/meysamhadeli/scaffai/constants/lipgloss"
	"github.com/meysamhadeli/scaffai/session"
	"github.com/meysamhadeli/scaffai/utils"
	"github.com/spf13/cobra"
)

type newOptions struct {
	intakeFile  string
	withTests   bool
	propose     bool
	skipImprove bool
	show        bool
	wait        bool
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Describe a project, generate its source files and improve them until the tests pass.",
	Long: `The 'new' command asks for a project name and description, its modules and their
functions, and optional package requirements (or reads them from --intake). It then
generates one source file per module, appends the function skeletons, records the
requirements and runs the improvement loop on the new workspace.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDependencies, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}
		var options newOptions
		options.intakeFile, _ = cmd.Flags().GetString("intake")
		options.withTests, _ = cmd.Flags().GetBool("with-tests")
		options.propose, _ = cmd.Flags().GetBool("propose")
		options.skipImprove, _ = cmd.Flags().GetBool("skip-improve")
		options.show, _ = cmd.Flags().GetBool("show")
		options.wait, _ = cmd.Flags().GetBool("wait")
		return handleNewCommand(cmd.Context(), rootDependencies, options)
	},
}

func init() {
	newCmd.Flags().StringP("intake", "i", "", "Read the project description from a YAML intake file instead of prompting")
	newCmd.Flags().Bool("with-tests", false, "Also generate a test file for every module")
	newCmd.Flags().Bool("propose", false, "Ask the model to propose modules from the project description")
	newCmd.Flags().Bool("skip-improve", false, "Stop after generating the files")
	newCmd.Flags().Bool("show", false, "Print the generated files")
	newCmd.Flags().Bool("wait", false, "Wait for another run on the same workspace to finish instead of failing")
	rootCmd.AddCommand(newCmd)
}

func handleNewCommand(parent context.Context, rootDependencies *RootDependencies, options newOptions) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	generator, err := rootDependencies.Generator()
	if err != nil {
		return err
	}
	defer rootDependencies.displayTokens()

	var s *session.Session
	if options.intakeFile != "" {
		intake, err := session.LoadIntakeFile(options.intakeFile)
		if err != nil {
			return err
		}
		if s, err = session.NewFromIntake(intake, rootDependencies.Config.Language); err != nil {
			return err
		}
	} else {
		s = session.New(rootDependencies.Profile)
	}

	codeGenerator, err := code_generator.NewCodeGenerator(generator, s.Profile, rootDependencies.Logger)
	if err != nil {
		return err
	}

	if options.intakeFile == "" {
		var proposer moduleProposer
		if options.propose {
			proposer = codeGenerator
		}
		prompter := utils.NewPrompter(os.Stdin, rootDependencies.Out)
		if err := runIntake(ctx, prompter, rootDependencies.Out, s, proposer); err != nil {
			if isIntakeClosed(err) {
				return fmt.Errorf("intake ended before the project was complete")
			}
			return err
		}
	}

	store, err := rootDependencies.Workspace(s.Project().Name, s.Profile)
	if err != nil {
		return err
	}

	spinner := rootDependencies.startProgress("Preparing workspace...")
	report, err := s.Build(ctx, session.BuildOptions{
		Workspace:  store,
		Generator:  codeGenerator,
		Manifest:   store.Manifest(s.Profile.Manifest),
		WithTests:  options.withTests,
		OnProgress: spinner.Update,
		Logger:     rootDependencies.Logger,
	})
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	out := rootDependencies.Out
	fmt.Fprintln(out, lipgloss.Green.Render(fmt.Sprintf("✔ Project '%s' written to %s", s.Project().Name, store.Root())))
	for _, file := range report.Files {
		fmt.Fprintf(out, "  %s\n", file)
		if options.show {
			if source, err := store.ReadUnit(file); err == nil {
				_ = utils.RenderFile(ctx, out, file, source, s.Profile.Name, rootDependencies.Config.Theme, rootDependencies.Interactive)
			}
		}
	}
	if len(report.Requirements) > 0 {
		fmt.Fprintf(out, "  %s: %d requirement(s) recorded\n", s.Profile.Manifest, len(report.Requirements))
	}
	rootDependencies.displayCacheStats()

	if options.skipImprove {
		return nil
	}
	_, err = runImprover(ctx, rootDependencies, store, codeGenerator, s.Profile, options.wait)
	return err
}
