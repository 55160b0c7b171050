package test_runner

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/meysamhadeli/scaffai/test_runner/models"
)

// goTestEvent is one line of `go test -json` (test2json) output.
type goTestEvent struct {
	Action  string `json:"Action"`
	Package string `json:"Package"`
	Test    string `json:"Test"`
	Output  string `json:"Output"`
	// ImportPath is set instead of Package on build events.
	ImportPath string `json:"ImportPath"`
}

type goTestCase struct {
	id     string
	output strings.Builder
	failed bool
}

// parseGoTestJSON turns a test2json stream into failure records ordered by the
// first time each test or package was seen. Non-JSON lines are returned as stray output.
func parseGoTestJSON(r io.Reader) ([]models.FailureRecord, string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var order []string
	cases := make(map[string]*goTestCase)
	testFailedInPackage := make(map[string]bool)
	var stray strings.Builder

	get := func(id string) *goTestCase {
		tc, ok := cases[id]
		if !ok {
			tc = &goTestCase{id: id}
			cases[id] = tc
			order = append(order, id)
		}
		return tc
	}

	for scanner.Scan() {
		line := scanner.Text()
		var event goTestEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil || event.Action == "" {
			stray.WriteString(line)
			stray.WriteString("\n")
			continue
		}

		pkg := event.Package
		if pkg == "" {
			pkg = event.ImportPath
		}
		id := pkg
		if event.Test != "" {
			id = pkg + "::" + event.Test
		}

		switch event.Action {
		case "output", "build-output":
			get(id).output.WriteString(event.Output)
		case "fail", "build-fail":
			get(id).failed = true
			if event.Test != "" {
				testFailedInPackage[pkg] = true
			}
		default:
			get(id)
		}
	}

	var records []models.FailureRecord
	for _, id := range order {
		tc := cases[id]
		if !tc.failed {
			continue
		}
		// A package fails whenever one of its tests does; report only the test then.
		if !strings.Contains(id, "::") && testFailedInPackage[id] {
			continue
		}
		records = append(records, models.FailureRecord{ID: id, Detail: strings.TrimSpace(tc.output.String())})
	}

	return records, stray.String()
}
