package session

import (
	"fmt"
	"io"
	"os"

	"github.com/meysamhadeli/scaffai/languages"
	"github.com/meysamhadeli/scaffai/session/models"
	"gopkg.in/yaml.v3"
)

// Intake is the file form of an interactive intake session.
type Intake struct {
	Project      models.ProjectDescriptor `yaml:"project"`
	Language     string                   `yaml:"language"`
	Modules      []models.ModuleSpec      `yaml:"modules"`
	Functions    []models.FunctionSpec    `yaml:"functions"`
	Requirements []string                 `yaml:"requirements"`
}

// ReadIntake decodes an intake document. Unknown keys are rejected.
func ReadIntake(r io.Reader) (*Intake, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var intake Intake
	if err := decoder.Decode(&intake); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("intake file is empty")
		}
		return nil, fmt.Errorf("failed to parse intake file: %w", err)
	}
	return &intake, nil
}

// LoadIntakeFile reads an intake document from disk.
func LoadIntakeFile(path string) (*Intake, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open intake file: %w", err)
	}
	defer file.Close()
	return ReadIntake(file)
}

// NewFromIntake builds a session by replaying the intake through the same checks
// as interactive input. fallbackLanguage is used when the document names none.
func NewFromIntake(intake *Intake, fallbackLanguage string) (*Session, error) {
	language := intake.Language
	if language == "" {
		language = fallbackLanguage
	}
	profile, err := languages.Lookup(language)
	if err != nil {
		return nil, err
	}

	s := New(profile)
	if err := s.SetProject(intake.Project.Name, intake.Project.Description); err != nil {
		return nil, err
	}
	for _, module := range intake.Modules {
		if err := s.AddModule(module.Name, module.Description); err != nil {
			return nil, err
		}
	}
	for _, fn := range intake.Functions {
		if err := s.AddFunction(fn.Module, fn.Name, fn.Description); err != nil {
			return nil, err
		}
	}
	for _, requirement := range intake.Requirements {
		if err := s.AddRequirement(requirement); err != nil {
			return nil, err
		}
	}
	return s, nil
}
