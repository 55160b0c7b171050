package code_generator

import (
	"context"
	"errors"

	"github.com/meysamhadeli/scaffai/providers/contracts"
	"github.com/meysamhadeli/scaffai/session/models"
)

// ProposeModules asks the generator to split a project into modules.
// A reply with no parsable line is treated as an unusable response.
func (g *CodeGenerator) ProposeModules(ctx context.Context, projectDescription string) ([]models.ModuleSpec, error) {
	prompt, err := g.render("propose", map[string]any{"Description": projectDescription})
	if err != nil {
		return nil, err
	}

	text, err := g.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	modules := ParseModules(text)
	if len(modules) == 0 {
		return nil, contracts.Unavailable(g.generator.Name(), errors.New("no modules in response"))
	}
	g.logger.Debug("modules proposed", "count", len(modules))
	return modules, nil
}
