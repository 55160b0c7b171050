package languages

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Report formats understood by test_runner.
const (
	ReportJUnit  = "junit"
	ReportGoJSON = "go-json"
)

// ReportPlaceholder in a test command is replaced by the report file path.
const ReportPlaceholder = "{report}"

// Profile describes how one target language is generated, stored, tested and installed.
type Profile struct {
	Name          string
	DisplayName   string
	Extension     string
	UnitNoun      string
	TestFramework string
	TestCommand   []string
	ReportFormat  string
	// FileMarker captures the source path of a failure in group 1.
	FileMarker *regexp.Regexp
	// QuotedFallback captures a quoted path ending in Extension, used when FileMarker finds nothing.
	QuotedFallback *regexp.Regexp
	Manifest       string
	testFile       func(unit string) string
	install        func(manifestPath string, packages []string) []string
}

// TestFileName returns the conventional test file for a module file stem.
func (p Profile) TestFileName(unit string) string {
	return p.testFile(strings.ToLower(unit))
}

// InstallCommand returns the package-manager invocation for the manifest.
func (p Profile) InstallCommand(manifestPath string, packages []string) []string {
	return p.install(manifestPath, packages)
}

var profiles = map[string]Profile{
	"python": {
		Name:          "python",
		DisplayName:   "Python",
		Extension:     ".py",
		UnitNoun:      "class",
		TestFramework: "pytest",
		TestCommand: []string{
			"python", "-m", "pytest", "-q", "--tb=native", "-p", "no:cacheprovider",
			"--junitxml=" + ReportPlaceholder,
		},
		ReportFormat:   ReportJUnit,
		FileMarker:     regexp.MustCompile(`File "([^"]+)"`),
		QuotedFallback: regexp.MustCompile(`"([^"]+\.py)"`),
		Manifest:       "requirements.txt",
		testFile:       func(unit string) string { return "test_" + unit + ".py" },
		install: func(manifestPath string, _ []string) []string {
			return []string{"python", "-m", "pip", "install", "-r", manifestPath}
		},
	},
	"go": {
		Name:           "go",
		DisplayName:    "Go",
		Extension:      ".go",
		UnitNoun:       "struct type",
		TestFramework:  "the standard testing package",
		TestCommand:    []string{"go", "test", "-json", "./..."},
		ReportFormat:   ReportGoJSON,
		FileMarker:     regexp.MustCompile(`([^\s:"]+\.go):\d+`),
		QuotedFallback: regexp.MustCompile(`"([^"]+\.go)"`),
		Manifest:       "requirements.txt",
		testFile:       func(unit string) string { return unit + "_test.go" },
		install: func(_ string, packages []string) []string {
			return append([]string{"go", "get"}, packages...)
		},
	},
}

// Lookup returns the profile registered under name.
func Lookup(name string) (Profile, error) {
	profile, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Profile{}, fmt.Errorf("unsupported language '%s' (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return profile, nil
}

// Names lists supported languages in sorted order.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
