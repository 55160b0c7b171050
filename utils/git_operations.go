package utils

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	checkpointAuthor = "scaffai"
	checkpointEmail  = "scaffai@localhost"
)

// GitOperations records workspace checkpoints so appended patches can be reverted.
type GitOperations struct {
	workingDir string
	executor   *CommandExecutor
}

// NewGitOperations creates a new GitOperations instance
func NewGitOperations(workingDir string) *GitOperations {
	return &GitOperations{workingDir: workingDir, executor: NewCommandExecutor()}
}

func (g *GitOperations) git(ctx context.Context, args ...string) (*CommandResult, error) {
	return g.executor.Run(ctx, g.workingDir, append([]string{"git"}, args...))
}

// CheckGitRepo checks that the working directory is the root of a git repository.
// A workspace nested inside another repository does not count.
func (g *GitOperations) CheckGitRepo(ctx context.Context) error {
	result, err := g.git(ctx, "rev-parse", "--show-toplevel")
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("not a git repository")
	}
	if !samePath(strings.TrimSpace(result.Stdout), g.workingDir) {
		return fmt.Errorf("not a git repository root")
	}
	return nil
}

func samePath(a, b string) bool {
	resolve := func(p string) string {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if real, err := filepath.EvalSymlinks(p); err == nil {
			p = real
		}
		return filepath.Clean(p)
	}
	return resolve(a) == resolve(b)
}

// Init creates a repository in the working directory when there is none.
func (g *GitOperations) Init(ctx context.Context) error {
	if g.CheckGitRepo(ctx) == nil {
		return nil
	}
	result, err := g.git(ctx, "init", "--quiet")
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("failed to initialize git repository: %s", strings.TrimSpace(result.Combined()))
	}
	return nil
}

// GetGitStatus returns the porcelain status of the working tree
func (g *GitOperations) GetGitStatus(ctx context.Context) (string, error) {
	result, err := g.git(ctx, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("failed to get git status: %s", strings.TrimSpace(result.Stderr))
	}
	return result.Stdout, nil
}

// HasUncommittedChanges checks if there are uncommitted changes
func (g *GitOperations) HasUncommittedChanges(ctx context.Context) (bool, error) {
	status, err := g.GetGitStatus(ctx)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(status) != "", nil
}

// AddFiles stages every change in the working directory
func (g *GitOperations) AddFiles(ctx context.Context) error {
	result, err := g.git(ctx, "add", "--all", ".")
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("failed to add files to git: %s", strings.TrimSpace(result.Stderr))
	}
	return nil
}

// Commit creates a commit with a fixed local identity so it works without user config.
func (g *GitOperations) Commit(ctx context.Context, message string) error {
	result, err := g.git(ctx,
		"-c", "user.name="+checkpointAuthor,
		"-c", "user.email="+checkpointEmail,
		"commit", "--quiet", "--no-verify", "-m", message)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("failed to create commit: %s", strings.TrimSpace(result.Combined()))
	}
	return nil
}

// Checkpoint commits the current workspace state. It reports false when there was nothing to commit.
func (g *GitOperations) Checkpoint(ctx context.Context, message string) (bool, error) {
	if err := g.Init(ctx); err != nil {
		return false, err
	}

	dirty, err := g.HasUncommittedChanges(ctx)
	if err != nil || !dirty {
		return false, err
	}

	if err := g.AddFiles(ctx); err != nil {
		return false, err
	}
	if err := g.Commit(ctx, message); err != nil {
		return false, err
	}
	return true, nil
}

// GetRecentCommits returns recent commit subjects, newest first
func (g *GitOperations) GetRecentCommits(ctx context.Context, limit int) ([]string, error) {
	result, err := g.git(ctx, "log", fmt.Sprintf("--max-count=%d", limit), "--pretty=format:%s")
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("failed to get recent commits: %s", strings.TrimSpace(result.Stderr))
	}

	var commits []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		if line != "" {
			commits = append(commits, line)
		}
	}
	return commits, nil
}
