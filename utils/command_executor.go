package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// CommandResult is the captured outcome of one external command.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Combined returns stdout followed by stderr.
func (r *CommandResult) Combined() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// CommandExecutor runs external tools (test suites, package managers) with exit-code semantics.
type CommandExecutor struct {
	// Echo, when set, receives a copy of stdout and stderr as they are produced.
	Echo io.Writer
	Env  []string
}

// NewCommandExecutor creates a new command executor instance
func NewCommandExecutor() *CommandExecutor {
	return &CommandExecutor{}
}

// Run executes args in dir. A non-zero exit is reported through ExitCode, not as an
// error; err is returned only when the command could not be started or ctx ended.
func (ce *CommandExecutor) Run(ctx context.Context, dir string, args []string) (*CommandResult, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return nil, fmt.Errorf("empty command provided")
	}

	if err := ce.validateCommand(strings.Join(args, " ")); err != nil {
		return nil, fmt.Errorf("command validation failed: %w", err)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = dir
	if len(ce.Env) > 0 {
		cmd.Env = append(cmd.Environ(), ce.Env...)
	}

	var stdout, stderr bytes.Buffer
	if ce.Echo != nil {
		cmd.Stdout = io.MultiWriter(&stdout, ce.Echo)
		cmd.Stderr = io.MultiWriter(&stderr, ce.Echo)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	err := cmd.Run()
	result := &CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("command execution failed: %w", err)
	}

	return result, nil
}

// validateCommand performs security checks on the proposed command
func (ce *CommandExecutor) validateCommand(command string) error {
	dangerousPatterns := []string{
		"rm -rf /",
		":(){ :|:& };:", // Fork bomb
		"> /dev/sda",    // Disk overwrite
		"wipefs",
		"fdisk",
		"mkfs",
		"dd if=",
	}

	cmdLower := strings.ToLower(command)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(cmdLower, strings.ToLower(pattern)) {
			return fmt.Errorf("potentially dangerous command detected: %s", pattern)
		}
	}

	return nil
}
