package cmd

import (
	"context"
	"fmt"

	"github.com/meysamhadeli/scaffai/constants/lipgloss"
	"github.com/meysamhadeli/scaffai/providers"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models offered by the configured provider.",
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDependencies, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}
		return handleModelsCommand(cmd.Context(), rootDependencies)
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func handleModelsCommand(parent context.Context, rootDependencies *RootDependencies) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	lister, err := providers.ModelLister(rootDependencies.Config.AIProviderConfig, rootDependencies.Logger)
	if err != nil {
		return err
	}

	spinner := rootDependencies.startProgress("Fetching models...")
	names, err := lister.ListModels(ctx)
	spinner.Stop()
	if err != nil {
		return err
	}

	current := rootDependencies.Config.AIProviderConfig.Model
	for _, name := range names {
		if name == current {
			fmt.Fprintln(rootDependencies.Out, lipgloss.Green.Render("* "+name))
			continue
		}
		fmt.Fprintln(rootDependencies.Out, "  "+name)
	}
	return nil
}
