package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/meysamhadeli/scaffai/constants/lipgloss"
	"github.com/meysamhadeli/scaffai/requirements_manager"
	"github.com/meysamhadeli/scaffai/utils"
	"github.com/spf13/cobra"
)

var requirementsCmd = &cobra.Command{
	Use:   "requirements",
	Short: "Manage the dependency manifest of a project workspace.",
}

var requirementsAddCmd = &cobra.Command{
	Use:   "add <project> <package>...",
	Short: "Append packages to the project's manifest, skipping duplicates.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDependencies, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}
		return handleRequirementsAdd(rootDependencies, args[0], args[1:])
	},
}

var requirementsInstallCmd = &cobra.Command{
	Use:   "install <project>",
	Short: "Install the project's manifest with the language's package manager.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootDependencies, err := handleRootCommand(cmd)
		if err != nil {
			return err
		}
		return handleRequirementsInstall(cmd.Context(), rootDependencies, args[0])
	},
}

func init() {
	requirementsCmd.AddCommand(requirementsAddCmd, requirementsInstallCmd)
	rootCmd.AddCommand(requirementsCmd)
}

func requirementsFor(rootDependencies *RootDependencies, project string) (*requirements_manager.RequirementsManager, error) {
	store, err := rootDependencies.Workspace(project, rootDependencies.Profile)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(store.Root()); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("project workspace %s does not exist", store.Root())
	}
	return requirements_manager.NewRequirementsManager(store, rootDependencies.Profile, rootDependencies.Logger), nil
}

func handleRequirementsAdd(rootDependencies *RootDependencies, project string, packages []string) error {
	manager, err := requirementsFor(rootDependencies, project)
	if err != nil {
		return err
	}
	for _, name := range packages {
		added, err := manager.Add(name)
		if err != nil {
			return err
		}
		if added {
			fmt.Fprintln(rootDependencies.Out, lipgloss.Green.Render("✔ added "+name))
		} else {
			fmt.Fprintln(rootDependencies.Out, lipgloss.Yellow.Render(name+" is already listed"))
		}
	}
	return nil
}

func handleRequirementsInstall(parent context.Context, rootDependencies *RootDependencies, project string) error {
	ctx, cancel := signalContext(parent)
	defer cancel()

	manager, err := requirementsFor(rootDependencies, project)
	if err != nil {
		return err
	}

	// the package manager's own progress goes to stderr as it happens
	manager.SetExecutor(&utils.CommandExecutor{Echo: os.Stderr})

	result, err := manager.Install(ctx)
	if result == nil && err == nil {
		fmt.Fprintln(rootDependencies.Out, lipgloss.Yellow.Render("No requirements to install."))
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(rootDependencies.Out, lipgloss.Green.Render("✔ Requirements installed"))
	return nil
}
