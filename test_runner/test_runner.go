package test_runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/meysamhadeli/scaffai/languages"
	"github.com/meysamhadeli/scaffai/logging"
	"github.com/meysamhadeli/scaffai/test_runner/models"
	"github.com/meysamhadeli/scaffai/utils"
)

// ErrTestDiscovery marks a run in which the framework could not enumerate tests.
// It never reaches the loop as an error; it is folded into a synthetic record.
var ErrTestDiscovery = errors.New("test discovery failed")

// DiscoveryFailureID identifies the synthetic record produced for ErrTestDiscovery.
const DiscoveryFailureID = "<collection>"

// pytest exits with 5 when it collected no tests.
const exitNoTestsCollected = 5

// CommandRunner runs a test command in the workspace and parses its report.
type CommandRunner struct {
	Command  []string
	Format   string
	Executor *utils.CommandExecutor
	Logger   *logging.Logger
}

// NewCommandRunner builds a runner for the language profile. A non-empty override
// replaces the profile's test command.
func NewCommandRunner(profile languages.Profile, override []string, logger *logging.Logger) *CommandRunner {
	command := profile.TestCommand
	if len(override) > 0 {
		command = override
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &CommandRunner{
		Command:  command,
		Format:   profile.ReportFormat,
		Executor: utils.NewCommandExecutor(),
		Logger:   logger.Component("test_runner"),
	}
}

// Run executes the suite once. Framework-level failures become a synthetic
// FailureRecord; only a command that cannot be started (or ctx ending) is an error.
func (r *CommandRunner) Run(ctx context.Context, workspace string) (*models.TestOutcome, error) {
	reportDir, err := os.MkdirTemp("", "scaffai-report-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	defer os.RemoveAll(reportDir)
	reportPath := filepath.Join(reportDir, "report.xml")

	args := make([]string, len(r.Command))
	for i, arg := range r.Command {
		args[i] = strings.ReplaceAll(arg, languages.ReportPlaceholder, reportPath)
	}

	r.Logger.Debug("running tests", "workspace", workspace, "command", strings.Join(args, " "))

	result, err := r.Executor.Run(ctx, workspace, args)
	if err != nil {
		return nil, fmt.Errorf("failed to run tests: %w", err)
	}

	var outcome *models.TestOutcome
	switch r.Format {
	case languages.ReportGoJSON:
		outcome = goTestOutcome(result)
	default:
		outcome = junitOutcome(reportPath, result)
	}

	r.Logger.Info("test run finished",
		"exit_code", result.ExitCode,
		"success", outcome.Success,
		"failures", len(outcome.Failures))
	return outcome, nil
}

func junitOutcome(reportPath string, result *utils.CommandResult) *models.TestOutcome {
	report, readErr := os.ReadFile(reportPath)
	if readErr == nil {
		records, _, parseErr := parseJUnit(bytes.NewReader(report))
		if parseErr == nil {
			if len(records) > 0 {
				return models.Failed(records...)
			}
			if result.ExitCode == 0 || result.ExitCode == exitNoTestsCollected {
				return models.Passed()
			}
			return discoveryFailure(result, fmt.Errorf("exit code %d without failing cases", result.ExitCode))
		}
		return discoveryFailure(result, parseErr)
	}

	if result.ExitCode == 0 || result.ExitCode == exitNoTestsCollected {
		return models.Passed()
	}
	return discoveryFailure(result, fmt.Errorf("no report produced (exit code %d)", result.ExitCode))
}

func goTestOutcome(result *utils.CommandResult) *models.TestOutcome {
	records, stray := parseGoTestJSON(strings.NewReader(result.Stdout))
	if len(records) > 0 {
		return models.Failed(records...)
	}
	if result.ExitCode == 0 {
		return models.Passed()
	}

	detailed := &utils.CommandResult{Stdout: stray, Stderr: result.Stderr, ExitCode: result.ExitCode}
	return discoveryFailure(detailed, fmt.Errorf("exit code %d without failing tests", result.ExitCode))
}

func discoveryFailure(result *utils.CommandResult, cause error) *models.TestOutcome {
	detail := fmt.Sprintf("%v: %v", ErrTestDiscovery, cause)
	if output := strings.TrimSpace(result.Combined()); output != "" {
		detail += "\n" + output
	}
	return models.Failed(models.FailureRecord{ID: DiscoveryFailureID, Detail: detail})
}
