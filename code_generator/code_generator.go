package code_generator

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/meysamhadeli/scaffai/embed_data"
	"github.com/meysamhadeli/scaffai/languages"
	"github.com/meysamhadeli/scaffai/logging"
	"github.com/meysamhadeli/scaffai/providers/contracts"
	"github.com/meysamhadeli/scaffai/providers/middleware"
)

// FixRequest carries one failure to the fix prompt. Detail is embedded verbatim.
type FixRequest struct {
	Detail  string
	File    string
	Outline string
}

// CodeGenerator formats prompts for the derived generation operations and
// delegates to the underlying generator. It holds no per-call state.
type CodeGenerator struct {
	generator contracts.IGenerator
	profile   languages.Profile
	templates *template.Template
	logger    *logging.Logger
}

// NewCodeGenerator parses the embedded prompt templates for the given language.
func NewCodeGenerator(generator contracts.IGenerator, profile languages.Profile, logger *logging.Logger) (*CodeGenerator, error) {
	templates := template.New("prompts").Option("missingkey=error")
	sources := map[string][]byte{
		"class":    embed_data.ClassSkeletonPrompt,
		"function": embed_data.FunctionSkeletonPrompt,
		"test":     embed_data.TestSkeletonPrompt,
		"fix":      embed_data.FixPrompt,
		"propose":  embed_data.ProposeModulesPrompt,
	}
	for name, source := range sources {
		if _, err := templates.New(name).Parse(string(source)); err != nil {
			return nil, fmt.Errorf("failed to parse %s prompt: %w", name, err)
		}
	}

	if logger == nil {
		logger = logging.Nop()
	}

	return &CodeGenerator{
		generator: generator,
		profile:   profile,
		templates: templates,
		logger:    logger.Component("code_generator"),
	}, nil
}

// ClassSkeleton generates the module-level unit (a class, or a type for Go) for a module.
func (g *CodeGenerator) ClassSkeleton(ctx context.Context, name, description, project string) (string, error) {
	prompt, err := g.render("class", map[string]any{
		"Language":    g.profile.DisplayName,
		"UnitNoun":    g.profile.UnitNoun,
		"Name":        name,
		"Description": description,
		"Project":     project,
	})
	if err != nil {
		return "", err
	}
	return g.generate(middleware.Cacheable(ctx), prompt)
}

// FunctionSkeleton generates one function belonging to module.
func (g *CodeGenerator) FunctionSkeleton(ctx context.Context, module, name, description string) (string, error) {
	prompt, err := g.render("function", map[string]any{
		"Language":    g.profile.DisplayName,
		"Name":        name,
		"Description": description,
		"Module":      module,
	})
	if err != nil {
		return "", err
	}
	return g.generate(middleware.Cacheable(ctx), prompt)
}

// TestSkeleton generates a test suite for the module stored in file.
func (g *CodeGenerator) TestSkeleton(ctx context.Context, module, file, description string) (string, error) {
	prompt, err := g.render("test", map[string]any{
		"Language":    g.profile.DisplayName,
		"Name":        module,
		"File":        file,
		"Description": description,
		"Framework":   g.profile.TestFramework,
	})
	if err != nil {
		return "", err
	}
	return g.generate(middleware.Cacheable(ctx), prompt)
}

// Fix asks for a patch addressing one failure. Fix calls are never cached.
func (g *CodeGenerator) Fix(ctx context.Context, request FixRequest) (string, error) {
	prompt, err := g.FixPrompt(request)
	if err != nil {
		return "", err
	}
	return g.generate(ctx, prompt)
}

// FixPrompt renders the fix prompt without sending it.
func (g *CodeGenerator) FixPrompt(request FixRequest) (string, error) {
	return g.render("fix", map[string]any{
		"Language": g.profile.DisplayName,
		"Detail":   request.Detail,
		"File":     request.File,
		"Outline":  request.Outline,
	})
}

func (g *CodeGenerator) render(name string, data map[string]any) (string, error) {
	var buffer bytes.Buffer
	if err := g.templates.ExecuteTemplate(&buffer, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", name, err)
	}
	return buffer.String(), nil
}

// generate returns upstream errors unchanged so callers can match them with errors.Is.
func (g *CodeGenerator) generate(ctx context.Context, prompt string) (string, error) {
	text, err := g.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	code := ExtractCode(text)
	if strings.TrimSpace(code) == "" {
		return "", contracts.Unavailable(g.generator.Name(), fmt.Errorf("response contained no code"))
	}
	g.logger.Trace("generated code", "bytes", len(code))
	return code, nil
}
