package session

import (
	"context"
	"fmt"

	"github.com/meysamhadeli/scaffai/logging"
)

// SkeletonGenerator produces source text for the build stage.
type SkeletonGenerator interface {
	ClassSkeleton(ctx context.Context, name, description, project string) (string, error)
	FunctionSkeleton(ctx context.Context, module, name, description string) (string, error)
	TestSkeleton(ctx context.Context, module, file, description string) (string, error)
}

// Workspace is the part of the artifact store the build stage writes through.
type Workspace interface {
	Root() string
	EnsureWorkspace() (bool, error)
	UnitFileName(unitName string) (string, error)
	WriteUnit(fileName string, text string) error
	AppendOrCreate(fileName string, text string) error
}

// ManifestWriter appends to the dependency manifest.
type ManifestWriter interface {
	Add(packageName string) (bool, error)
}

// BuildOptions configures Build.
type BuildOptions struct {
	Workspace Workspace
	Generator SkeletonGenerator
	// Manifest receives the session's requirements; nil skips them.
	Manifest ManifestWriter
	// WithTests also generates a test file per module.
	WithTests bool
	// OnProgress, when set, is called before each generation step.
	OnProgress func(step string)
	Logger     *logging.Logger
}

// BuildReport lists what the build stage wrote.
type BuildReport struct {
	WorkspaceCreated bool
	Files            []string
	Requirements     []string
}

// Build generates and persists every module, function and optional test skeleton,
// then records the requirements. It stops at the first error; files already
// written stay in place.
func (s *Session) Build(ctx context.Context, options BuildOptions) (*BuildReport, error) {
	if s.project == nil {
		return nil, ErrProjectNotSet
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	logger = logger.Component("session").With("session", s.ID)
	progress := options.OnProgress
	if progress == nil {
		progress = func(string) {}
	}

	report := &BuildReport{}
	created, err := options.Workspace.EnsureWorkspace()
	if err != nil {
		return nil, err
	}
	report.WorkspaceCreated = created

	seen := make(map[string]bool)
	record := func(file string) {
		if !seen[file] {
			seen[file] = true
			report.Files = append(report.Files, file)
		}
	}

	for _, module := range s.modules {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		fileName, err := options.Workspace.UnitFileName(module.Name)
		if err != nil {
			return report, err
		}

		progress(fmt.Sprintf("Generating %s '%s'", s.Profile.UnitNoun, module.Name))
		code, err := options.Generator.ClassSkeleton(ctx, module.Name, module.Description, s.project.Name)
		if err != nil {
			return report, fmt.Errorf("module '%s': %w", module.Name, err)
		}
		if err := options.Workspace.WriteUnit(fileName, code); err != nil {
			return report, err
		}
		record(fileName)
		logger.Info("module generated", "module", module.Name, "file", fileName)

		for _, fn := range s.FunctionsOf(module.Name) {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			progress(fmt.Sprintf("Generating function '%s' in '%s'", fn.Name, module.Name))
			code, err := options.Generator.FunctionSkeleton(ctx, module.Name, fn.Name, fn.Description)
			if err != nil {
				return report, fmt.Errorf("function '%s': %w", fn.Name, err)
			}
			if err := options.Workspace.AppendOrCreate(fileName, code); err != nil {
				return report, err
			}
			logger.Info("function appended", "function", fn.Name, "file", fileName)
		}

		if options.WithTests {
			testFile := s.Profile.TestFileName(module.Name)
			progress(fmt.Sprintf("Generating tests for '%s'", module.Name))
			code, err := options.Generator.TestSkeleton(ctx, module.Name, fileName, module.Description)
			if err != nil {
				return report, fmt.Errorf("tests for '%s': %w", module.Name, err)
			}
			if err := options.Workspace.WriteUnit(testFile, code); err != nil {
				return report, err
			}
			record(testFile)
		}
	}

	if options.Manifest != nil {
		for _, requirement := range s.requirements {
			added, err := options.Manifest.Add(requirement)
			if err != nil {
				return report, err
			}
			if added {
				report.Requirements = append(report.Requirements, requirement)
			}
		}
	}

	return report, nil
}
