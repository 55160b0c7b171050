package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/meysamhadeli/scaffai/code_generator"
	"github.com/spf13/cobra"
)

var proposeCmd = &cobra.Command{
	Use:   "propose <project description>",
	Short: "Ask the model to propose modules for a project description.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDependencies, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}
		return handleProposeCommand(cmd.Context(), rootDependencies, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(proposeCmd)
}

func handleProposeCommand(parent context.Context, rootDependencies *RootDependencies, description string) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	generator, err := rootDependencies.Generator()
	if err != nil {
		return err
	}
	codeGenerator, err := code_generator.NewCodeGenerator(generator, rootDependencies.Profile, rootDependencies.Logger)
	if err != nil {
		return err
	}
	defer rootDependencies.displayTokens()

	spinner := rootDependencies.startProgress("Proposing modules...")
	modules, err := codeGenerator.ProposeModules(ctx, description)
	spinner.Stop()
	if err != nil {
		return err
	}

	fmt.Fprintf(rootDependencies.Out, "%d module(s) proposed:\n", len(modules))
	printModules(rootDependencies.Out, modules)
	return nil
}
