package improver

import (
	"path"
	"regexp"
	"strings"

	"golang.org/x/mod/modfile"
)

// UnknownFile is the unit used when a failure names no file inside the workspace.
const UnknownFile = "unknown_file"

// referenceScanner finds the source file a failure points at.
type referenceScanner struct {
	marker    *regexp.Regexp
	fallback  *regexp.Regexp
	extension string
	workspace Workspace
}

// fileReference is where a failure points. File is set only when the reference
// names a file that already exists, spelled as it is on disk.
type fileReference struct {
	Unit string
	File string
}

// unitFor returns the reference of the first line of detail that carries a
// usable file marker. References outside the workspace or to other file types
// are skipped. The quoted fallback is tried only when no marker line qualifies.
// Relative references are looked up under each of dirs before the workspace root.
func (s *referenceScanner) unitFor(detail string, dirs ...string) fileReference {
	for _, pattern := range []*regexp.Regexp{s.marker, s.fallback} {
		if pattern == nil {
			continue
		}
		for _, line := range strings.Split(detail, "\n") {
			match := pattern.FindStringSubmatch(line)
			if len(match) < 2 {
				continue
			}
			if ref, ok := s.referenceFromPath(match[1], dirs); ok {
				return ref
			}
		}
	}
	return fileReference{Unit: UnknownFile}
}

func (s *referenceScanner) referenceFromPath(reference string, dirs []string) (fileReference, bool) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return fileReference{}, false
	}
	if !strings.EqualFold(path.Ext(reference), s.extension) {
		return fileReference{}, false
	}

	absolute := path.IsAbs(strings.ReplaceAll(reference, `\`, "/"))
	rel, ok := s.workspace.Rel(reference)
	if !ok {
		return fileReference{}, false
	}
	rel = strings.TrimPrefix(rel, "./")
	if _, err := s.workspace.Resolve(rel); err != nil {
		return fileReference{}, false
	}

	candidates := []string{rel}
	if !absolute {
		candidates = nil
		for _, dir := range dirs {
			if dir != "" {
				candidates = append(candidates, path.Join(dir, rel))
			}
		}
		candidates = append(candidates, rel)
	}
	for _, candidate := range candidates {
		if _, err := s.workspace.Resolve(candidate); err == nil && s.workspace.Exists(candidate) {
			return fileReference{Unit: strings.TrimSuffix(candidate, path.Ext(candidate)), File: candidate}, true
		}
	}

	unit := strings.TrimSuffix(rel, path.Ext(rel))
	if unit == "" {
		return fileReference{}, false
	}
	return fileReference{Unit: unit}, true
}

// goPackageDir maps the package part of a `go test -json` failure id to its
// directory relative to the workspace module root. ok is false for the root
// package and for ids outside the workspace module.
func goPackageDir(workspace Workspace, failureID string) (string, bool) {
	pkg, _, _ := strings.Cut(failureID, "::")
	// build failures are reported as "<pkg> [<pkg>.test]"
	pkg, _, _ = strings.Cut(pkg, " ")
	if pkg == "" {
		return "", false
	}

	source, err := workspace.ReadUnit("go.mod")
	if err != nil {
		return "", false
	}
	module := modfile.ModulePath([]byte(source))
	if module == "" || pkg == module || !strings.HasPrefix(pkg, module+"/") {
		return "", false
	}
	return strings.TrimPrefix(pkg, module+"/"), true
}
