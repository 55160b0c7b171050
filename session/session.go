package session

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/meysamhadeli/scaffai/artifact_store"
	"github.com/meysamhadeli/scaffai/languages"
	"github.com/meysamhadeli/scaffai/session/models"
)

var (
	// ErrProjectNotSet is returned when modules are added before the project.
	ErrProjectNotSet = errors.New("project has not been described yet")
	// ErrProjectAlreadySet is returned when the project descriptor is set twice.
	ErrProjectAlreadySet = errors.New("project is already described")
	// ErrUnknownModule is returned when a function names a module the session does not have.
	ErrUnknownModule = errors.New("unknown module")
)

// Session holds everything collected for one project run. It replaces shared
// process-wide state: each run creates its own Session and drops it when done.
type Session struct {
	ID        string
	CreatedAt time.Time
	Profile   languages.Profile

	project      *models.ProjectDescriptor
	modules      []models.ModuleSpec
	functions    []models.FunctionSpec
	requirements []string
	// moduleFiles maps a normalized file key to the module that owns it.
	moduleFiles map[string]string
}

// New starts an empty session for the given target language.
func New(profile languages.Profile) *Session {
	return &Session{
		ID:          uuid.NewString(),
		CreatedAt:   time.Now(),
		Profile:     profile,
		moduleFiles: make(map[string]string),
	}
}

// SetProject records the project descriptor. It can be set only once.
func (s *Session) SetProject(name, description string) error {
	if s.project != nil {
		return ErrProjectAlreadySet
	}
	name = strings.TrimSpace(name)
	if err := artifact_store.CheckUnitName(name); err != nil {
		return fmt.Errorf("project name: %w", err)
	}
	s.project = &models.ProjectDescriptor{Name: name, Description: strings.TrimSpace(description)}
	return nil
}

// Project returns the descriptor, or nil before SetProject.
func (s *Session) Project() *models.ProjectDescriptor {
	if s.project == nil {
		return nil
	}
	project := *s.project
	return &project
}

// AddModule appends a module. Names that would escape the workspace are rejected,
// as are names that map to the same file as an existing module.
func (s *Session) AddModule(name, description string) error {
	if s.project == nil {
		return ErrProjectNotSet
	}
	name = strings.TrimSpace(name)
	if err := artifact_store.CheckUnitName(name); err != nil {
		return err
	}

	key := strings.ToLower(name)
	if existing, ok := s.moduleFiles[key]; ok {
		return fmt.Errorf("module '%s' and '%s' share the file %s%s: %w",
			name, existing, key, s.Profile.Extension, artifact_store.ErrNameCollision)
	}

	s.moduleFiles[key] = name
	s.modules = append(s.modules, models.ModuleSpec{Name: name, Description: strings.TrimSpace(description)})
	return nil
}

// AddFunction attaches a function to an existing module.
func (s *Session) AddFunction(module, name, description string) error {
	owner, ok := s.moduleFiles[strings.ToLower(strings.TrimSpace(module))]
	if !ok {
		return fmt.Errorf("function '%s': %w '%s'", name, ErrUnknownModule, module)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("function name: %w", artifact_store.ErrInvalidName)
	}

	s.functions = append(s.functions, models.FunctionSpec{
		Module:      owner,
		Name:        name,
		Description: strings.TrimSpace(description),
	})
	return nil
}

// AddRequirement records a package for the dependency manifest. Duplicates are ignored.
func (s *Session) AddRequirement(packageName string) error {
	name := strings.TrimSpace(packageName)
	if name == "" || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("package '%s': %w", packageName, artifact_store.ErrInvalidName)
	}
	for _, existing := range s.requirements {
		if existing == name {
			return nil
		}
	}
	s.requirements = append(s.requirements, name)
	return nil
}

// Modules returns the modules in insertion order.
func (s *Session) Modules() []models.ModuleSpec {
	return append([]models.ModuleSpec(nil), s.modules...)
}

// Functions returns the functions in insertion order.
func (s *Session) Functions() []models.FunctionSpec {
	return append([]models.FunctionSpec(nil), s.functions...)
}

// FunctionsOf returns the functions of one module in insertion order.
func (s *Session) FunctionsOf(module string) []models.FunctionSpec {
	owner := s.moduleFiles[strings.ToLower(strings.TrimSpace(module))]
	var out []models.FunctionSpec
	for _, fn := range s.functions {
		if fn.Module == owner {
			out = append(out, fn)
		}
	}
	return out
}

// Requirements returns the requested packages in insertion order.
func (s *Session) Requirements() []string {
	return append([]string(nil), s.requirements...)
}
