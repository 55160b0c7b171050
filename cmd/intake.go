package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/meysamhadeli/scaffai/constants/lipgloss"
	"github.com/meysamhadeli/scaffai/session"
	"github.com/meysamhadeli/scaffai/session/models"
	"github.com/meysamhadeli/scaffai/utils"
)

// moduleProposer suggests modules for a project description.
type moduleProposer interface {
	ProposeModules(ctx context.Context, projectDescription string) ([]models.ModuleSpec, error)
}

// runIntake collects the project, its modules, functions and requirements from
// the prompter into s. A nil proposer skips module suggestions.
func runIntake(ctx context.Context, prompter *utils.Prompter, out io.Writer, s *session.Session, proposer moduleProposer) error {
	fmt.Fprintln(out, lipgloss.BoxStyle.Render(fmt.Sprintf("New %s project\nLeave a name empty to finish a list.", s.Profile.DisplayName)))

	for {
		name, err := prompter.RequiredPrompt(ctx, "Project name")
		if err != nil {
			return err
		}
		description, err := prompter.RequiredPrompt(ctx, "Project description")
		if err != nil {
			return err
		}
		if err := s.SetProject(name, description); err != nil {
			fmt.Fprintln(out, lipgloss.Red.Render(err.Error()))
			continue
		}
		break
	}

	if proposer != nil {
		if err := proposeIntoSession(ctx, prompter, out, s, proposer); err != nil {
			return err
		}
	}

	for {
		name, err := prompter.InputPrompt(ctx, fmt.Sprintf("Module (%s) name", s.Profile.UnitNoun))
		if err != nil {
			return err
		}
		if name == "" {
			if len(s.Modules()) == 0 {
				fmt.Fprintln(out, lipgloss.Yellow.Render("At least one module is required."))
				continue
			}
			break
		}
		description, err := prompter.RequiredPrompt(ctx, fmt.Sprintf("Description of '%s'", name))
		if err != nil {
			return err
		}
		if err := s.AddModule(name, description); err != nil {
			fmt.Fprintln(out, lipgloss.Red.Render(err.Error()))
		}
	}

	for {
		module, err := prompter.InputPrompt(ctx, "Add a function to module")
		if err != nil {
			return err
		}
		if module == "" {
			break
		}
		name, err := prompter.RequiredPrompt(ctx, "Function name")
		if err != nil {
			return err
		}
		description, err := prompter.RequiredPrompt(ctx, fmt.Sprintf("Description of '%s'", name))
		if err != nil {
			return err
		}
		if err := s.AddFunction(module, name, description); err != nil {
			fmt.Fprintln(out, lipgloss.Red.Render(err.Error()))
		}
	}

	for {
		requirement, err := prompter.InputPrompt(ctx, "Requirement (package)")
		if err != nil {
			return err
		}
		if requirement == "" {
			return nil
		}
		if err := s.AddRequirement(requirement); err != nil {
			fmt.Fprintln(out, lipgloss.Red.Render(err.Error()))
		}
	}
}

func proposeIntoSession(ctx context.Context, prompter *utils.Prompter, out io.Writer, s *session.Session, proposer moduleProposer) error {
	proposed, err := proposer.ProposeModules(ctx, s.Project().Description)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fmt.Fprintln(out, lipgloss.Yellow.Render(fmt.Sprintf("No modules proposed: %v", err)))
		return nil
	}

	printModules(out, proposed)
	accept, err := prompter.Confirm(ctx, "Use these modules?", true)
	if err != nil || !accept {
		return err
	}
	for _, module := range proposed {
		if err := s.AddModule(module.Name, module.Description); err != nil {
			fmt.Fprintln(out, lipgloss.Yellow.Render(fmt.Sprintf("skipping '%s': %v", module.Name, err)))
		}
	}
	return nil
}

func printModules(out io.Writer, modules []models.ModuleSpec) {
	for _, module := range modules {
		fmt.Fprintf(out, "  %s: %s\n", lipgloss.Info.Render(module.Name), module.Description)
	}
}

// isIntakeClosed reports whether the intake ended because input ran out.
func isIntakeClosed(err error) bool {
	return errors.Is(err, utils.ErrInputClosed)
}
