package artifact_store

import (
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Manifest is the newline-delimited dependency list of a workspace.
type Manifest struct {
	store    *Store
	fileName string
}

// Manifest returns a handle on the dependency manifest stored as fileName.
func (s *Store) Manifest(fileName string) *Manifest {
	return &Manifest{store: s, fileName: fileName}
}

// Path returns the manifest's absolute path.
func (m *Manifest) Path() (string, error) {
	return m.store.Resolve(m.fileName)
}

// Add appends a package name. Names that are already listed are skipped and
// reported with added=false.
func (m *Manifest) Add(packageName string) (bool, error) {
	name := strings.TrimSpace(packageName)
	if name == "" || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return false, fmt.Errorf("package '%s': %w", packageName, ErrInvalidName)
	}

	existing, err := m.Packages()
	if err != nil {
		return false, err
	}
	for _, p := range existing {
		if p == name {
			return false, nil
		}
	}

	path, err := m.Path()
	if err != nil {
		return false, err
	}

	prefix := ""
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 && content[len(content)-1] != '\n' {
		prefix = "\n"
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return false, ioError("open", path, err)
	}
	defer file.Close()

	if _, err := file.WriteString(prefix + name + "\n"); err != nil {
		return false, ioError("append", path, err)
	}
	if err := file.Close(); err != nil {
		return false, ioError("close", path, err)
	}

	m.store.logger.Info("requirement added", "package", name, "manifest", m.fileName)
	return true, nil
}

// Packages lists the manifest entries in file order, ignoring blanks and comments.
func (m *Manifest) Packages() ([]string, error) {
	path, err := m.Path()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ioError("read", path, err)
	}

	var packages []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		packages = append(packages, line)
	}
	return packages, nil
}
