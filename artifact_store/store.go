package artifact_store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/meysamhadeli/scaffai/logging"
)

// Store persists generated source text inside one project workspace.
type Store struct {
	root      string
	extension string
	logger    *logging.Logger
}

// NewStore binds a store to workspaceRoot/projectName. The project name must be a
// single path element.
func NewStore(workspaceRoot string, projectName string, extension string, logger *logging.Logger) (*Store, error) {
	name := strings.TrimSpace(projectName)
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("project name '%s': %w", projectName, err)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("project name '%s': %w", projectName, ErrPathTraversal)
	}

	if workspaceRoot == "" {
		workspaceRoot = "."
	}
	absRoot, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, ioError("resolve", workspaceRoot, err)
	}

	if logger == nil {
		logger = logging.Nop()
	}

	return &Store{
		root:      filepath.Join(absRoot, name),
		extension: extension,
		logger:    logger.Component("artifact_store").With("workspace", name),
	}, nil
}

// Root returns the absolute workspace directory.
func (s *Store) Root() string { return s.root }

// Extension returns the source extension used for unit files.
func (s *Store) Extension() string { return s.extension }

// EnsureWorkspace creates the workspace directory if absent. It reports whether it
// was created and never fails just because the directory already exists.
func (s *Store) EnsureWorkspace() (bool, error) {
	info, err := os.Stat(s.root)
	if err == nil {
		if !info.IsDir() {
			return false, ioError("create", s.root, errors.New("exists and is not a directory"))
		}
		s.logger.Info("project directory already exists", "path", s.root)
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, ioError("stat", s.root, err)
	}

	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return false, ioError("create", s.root, err)
	}
	s.logger.Info("project directory created", "path", s.root)
	return true, nil
}

// UnitFileName maps a logical unit name to its file: lowercase(name) + extension.
func (s *Store) UnitFileName(unitName string) (string, error) {
	name := strings.TrimSpace(unitName)
	if err := validateName(name); err != nil {
		return "", fmt.Errorf("unit '%s': %w", unitName, err)
	}
	fileName := strings.ToLower(name) + s.extension
	if _, err := s.Resolve(fileName); err != nil {
		return "", err
	}
	return fileName, nil
}

// WriteUnit overwrites fileName in full, creating parent directories as needed.
func (s *Store) WriteUnit(fileName string, text string) error {
	path, err := s.Resolve(fileName)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ioError("create", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return ioError("write", path, err)
	}

	s.logger.Debug("code saved", "file", fileName, "bytes", len(text))
	return nil
}

// AppendOrCreate appends text after exactly one blank line when fileName exists,
// otherwise it behaves like WriteUnit.
func (s *Store) AppendOrCreate(fileName string, text string) error {
	path, err := s.Resolve(fileName)
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return s.WriteUnit(fileName, text)
	}
	if err != nil {
		return ioError("stat", path, err)
	}
	if info.IsDir() {
		return ioError("append", path, errors.New("is a directory"))
	}

	separator, err := blankLineSeparator(path, info.Size())
	if err != nil {
		return ioError("read", path, err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return ioError("open", path, err)
	}
	defer file.Close()

	if _, err := file.WriteString(separator + strings.TrimLeft(text, "\r\n")); err != nil {
		return ioError("append", path, err)
	}
	if err := file.Close(); err != nil {
		return ioError("close", path, err)
	}

	s.logger.Debug("code appended", "file", fileName, "bytes", len(text))
	return nil
}

// ReadUnit returns the current content of fileName.
func (s *Store) ReadUnit(fileName string) (string, error) {
	path, err := s.Resolve(fileName)
	if err != nil {
		return "", err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", ioError("read", path, err)
	}
	return string(content), nil
}

// Exists reports whether fileName resolves inside the workspace and is present.
func (s *Store) Exists(fileName string) bool {
	path, err := s.Resolve(fileName)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Resolve joins fileName to the workspace root, rejecting absolute paths, parent
// segments and symlinks that lead outside the workspace.
func (s *Store) Resolve(fileName string) (string, error) {
	name := strings.TrimSpace(fileName)
	if err := validateName(name); err != nil {
		return "", fmt.Errorf("file '%s': %w", fileName, err)
	}

	slashed := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("file '%s': %w", fileName, ErrPathTraversal)
	}
	for _, segment := range strings.Split(slashed, "/") {
		if segment == ".." {
			return "", fmt.Errorf("file '%s': %w", fileName, ErrPathTraversal)
		}
	}

	joined := filepath.Join(s.root, filepath.FromSlash(slashed))
	if joined == s.root || !hasPathPrefix(joined, s.root) {
		return "", fmt.Errorf("file '%s': %w", fileName, ErrPathTraversal)
	}

	resolvedRoot := evalExisting(s.root)
	if !hasPathPrefix(evalExisting(joined), resolvedRoot) {
		return "", fmt.Errorf("file '%s': %w", fileName, ErrPathTraversal)
	}
	return joined, nil
}

// Rel converts an absolute path inside the workspace to a slash-separated relative
// path. ok is false for paths outside the workspace.
func (s *Store) Rel(path string) (string, bool) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), true
	}
	for _, root := range []string{s.root, evalExisting(s.root)} {
		if hasPathPrefix(path, root) {
			rel, err := filepath.Rel(root, path)
			if err == nil && rel != "." {
				return filepath.ToSlash(rel), true
			}
		}
	}
	return "", false
}

// CheckUnitName rejects unit names that could not be stored as a single file
// directly inside a workspace. It needs no Store and touches no filesystem.
func CheckUnitName(unitName string) error {
	name := strings.TrimSpace(unitName)
	if err := validateName(name); err != nil {
		return fmt.Errorf("unit '%s': %w", unitName, err)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return fmt.Errorf("unit '%s': %w", unitName, ErrPathTraversal)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}
	for _, r := range name {
		if r == 0 || r == '\n' || r == '\r' {
			return ErrInvalidName
		}
	}
	return nil
}

// blankLineSeparator returns what must precede appended text so that exactly one
// blank line separates it from the existing content.
func blankLineSeparator(path string, size int64) (string, error) {
	if size == 0 {
		return "", nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	// long enough for a CRLF blank line
	tailLen := int64(4)
	if size < tailLen {
		tailLen = size
	}
	tail := make([]byte, tailLen)
	if _, err := file.ReadAt(tail, size-tailLen); err != nil && err != io.EOF {
		return "", err
	}

	switch {
	case strings.HasSuffix(string(tail), "\n\n"), strings.HasSuffix(string(tail), "\r\n\r\n"):
		return "", nil
	case strings.HasSuffix(string(tail), "\n"):
		return "\n", nil
	default:
		return "\n\n", nil
	}
}

// evalExisting resolves symlinks on the deepest existing ancestor of path and
// re-appends the missing tail.
func evalExisting(path string) string {
	path = filepath.Clean(path)
	var missing []string
	current := path
	for {
		if resolved, err := filepath.EvalSymlinks(current); err == nil {
			parts := append([]string{resolved}, missing...)
			return filepath.Join(parts...)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path
		}
		missing = append([]string{filepath.Base(current)}, missing...)
		current = parent
	}
}

func hasPathPrefix(path, root string) bool {
	path = filepath.Clean(path)
	root = filepath.Clean(root)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		root = strings.ToLower(root)
	}
	if path == root {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(root, sep) {
		root += sep
	}
	return strings.HasPrefix(path, root)
}
