package artifact_store

import (
	"errors"
	"fmt"
)

var (
	// ErrPathTraversal is returned before any write when a name would escape the workspace.
	ErrPathTraversal = errors.New("path escapes the workspace")
	// ErrInvalidName covers empty names and names with control characters.
	ErrInvalidName = errors.New("invalid unit name")
	// ErrNameCollision is returned when two units normalize to the same file.
	ErrNameCollision = errors.New("unit name collides with an existing unit")
	// ErrWorkspaceBusy is returned when another run holds the workspace guard.
	ErrWorkspaceBusy = errors.New("workspace is in use by another run")
)

// WorkspaceIOError reports a failed directory or file operation inside a workspace.
type WorkspaceIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *WorkspaceIOError) Error() string {
	return fmt.Sprintf("workspace %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WorkspaceIOError) Unwrap() error { return e.Err }

func ioError(op, path string, err error) error {
	return &WorkspaceIOError{Op: op, Path: path, Err: err}
}
