package utils

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CapturesOutputAndExitCode(t *testing.T) {
	executor := NewCommandExecutor()

	result, err := executor.Run(context.Background(), t.TempDir(), []string{"sh", "-c", "echo out; echo err 1>&2; exit 3"})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, "out\n", result.Stdout)
	assert.Equal(t, "err\n", result.Stderr)
	assert.Equal(t, "out\n\nerr\n", result.Combined())
}

func TestRun_Echo(t *testing.T) {
	var echo bytes.Buffer
	executor := &CommandExecutor{Echo: &echo}

	result, err := executor.Run(context.Background(), t.TempDir(), []string{"sh", "-c", "echo hello"})
	require.NoError(t, err)
	assert.Zero(t, result.ExitCode)
	assert.Equal(t, "hello\n", echo.String())
}

func TestRun_MissingBinaryIsError(t *testing.T) {
	_, err := NewCommandExecutor().Run(context.Background(), t.TempDir(), []string{"definitely-not-a-real-binary-42"})
	assert.Error(t, err)
}

func TestRun_RejectsDangerousCommands(t *testing.T) {
	_, err := NewCommandExecutor().Run(context.Background(), t.TempDir(), []string{"sh", "-c", "rm -rf /"})
	assert.ErrorContains(t, err, "potentially dangerous")

	_, err = NewCommandExecutor().Run(context.Background(), t.TempDir(), nil)
	assert.ErrorContains(t, err, "empty command")
}
