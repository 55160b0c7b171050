package requirements_manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meysamhadeli/scaffai/artifact_store"
	"github.com/meysamhadeli/scaffai/languages"
	"github.com/meysamhadeli/scaffai/logging"
	"github.com/meysamhadeli/scaffai/utils"
)

// ErrInstallFailed is returned when the package manager exits non-zero.
var ErrInstallFailed = errors.New("dependency installation failed")

// RequirementsManager maintains the dependency manifest of a workspace and
// hands it to the language's package manager.
type RequirementsManager struct {
	store    *artifact_store.Store
	manifest *artifact_store.Manifest
	profile  languages.Profile
	executor *utils.CommandExecutor
	// InstallCommand overrides the profile's install invocation when set.
	InstallCommand []string
	logger         *logging.Logger
}

// NewRequirementsManager binds the manifest named by the profile inside store.
func NewRequirementsManager(store *artifact_store.Store, profile languages.Profile, logger *logging.Logger) *RequirementsManager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &RequirementsManager{
		store:    store,
		manifest: store.Manifest(profile.Manifest),
		profile:  profile,
		executor: utils.NewCommandExecutor(),
		logger:   logger.Component("requirements_manager"),
	}
}

// SetExecutor replaces the command executor, e.g. to echo installer output.
func (m *RequirementsManager) SetExecutor(executor *utils.CommandExecutor) {
	m.executor = executor
}

// Add appends packageName to the manifest; duplicates report added=false.
func (m *RequirementsManager) Add(packageName string) (bool, error) {
	return m.manifest.Add(packageName)
}

// Packages lists the manifest entries.
func (m *RequirementsManager) Packages() ([]string, error) {
	return m.manifest.Packages()
}

// Install runs the package manager over the manifest. Success is decided by the
// exit code alone. An empty manifest is a no-op and returns a nil result.
func (m *RequirementsManager) Install(ctx context.Context) (*utils.CommandResult, error) {
	packages, err := m.manifest.Packages()
	if err != nil {
		return nil, err
	}
	if len(packages) == 0 {
		m.logger.Info("no requirements to install")
		return nil, nil
	}

	manifestPath, err := m.manifest.Path()
	if err != nil {
		return nil, err
	}

	command := m.profile.InstallCommand(manifestPath, packages)
	if len(m.InstallCommand) > 0 {
		command = make([]string, len(m.InstallCommand))
		for i, arg := range m.InstallCommand {
			command[i] = strings.ReplaceAll(arg, "{manifest}", manifestPath)
		}
	}

	m.logger.Info("installing requirements", "packages", len(packages), "command", strings.Join(command, " "))

	result, err := m.executor.Run(ctx, m.store.Root(), command)
	if err != nil {
		return result, fmt.Errorf("failed to run package manager: %w", err)
	}
	if result.ExitCode != 0 {
		return result, fmt.Errorf("%w: exit code %d", ErrInstallFailed, result.ExitCode)
	}
	return result, nil
}
