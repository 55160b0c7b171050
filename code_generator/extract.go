package code_generator

import (
	"regexp"
	"strings"

	"github.com/meysamhadeli/scaffai/session/models"
)

var (
	fencePattern  = regexp.MustCompile("(?s)```[^\\n`]*\\n(.*?)```")
	bulletPattern = regexp.MustCompile(`^\s*(?:[-*+•]|\d+[.)])\s*`)
)

// ExtractCode returns the body of the first fenced code block, or the trimmed
// text when no fence is present.
func ExtractCode(text string) string {
	if match := fencePattern.FindStringSubmatch(text); match != nil {
		return strings.TrimRight(match[1], " \t\r\n")
	}
	return strings.TrimSpace(text)
}

// ParseModules reads `name: description` lines. Lines without a colon, or with an
// empty name or description, are skipped. List bullets and emphasis markers are removed.
func ParseModules(text string) []models.ModuleSpec {
	var modules []models.ModuleSpec
	for _, line := range strings.Split(text, "\n") {
		line = bulletPattern.ReplaceAllString(strings.TrimSpace(line), "")
		name, description, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		name = strings.Trim(strings.TrimSpace(name), "*`_")
		description = strings.TrimSpace(strings.Trim(strings.TrimSpace(description), "*`_"))
		if name == "" || description == "" {
			continue
		}
		modules = append(modules, models.ModuleSpec{Name: name, Description: description})
	}
	return modules
}
