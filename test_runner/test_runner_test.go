package test_runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/meysamhadeli/scaffai/languages"
	"github.com/meysamhadeli/scaffai/test_runner/models"
	"github.com/meysamhadeli/scaffai/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pytestReport = `<?xml version="1.0" encoding="utf-8"?>
<testsuites>
  <testsuite name="pytest" errors="1" failures="1" skipped="0" tests="3">
    <testcase classname="test_calculator.TestCalculator" name="test_add" file="test_calculator.py" line="4"/>
    <testcase classname="test_calculator.TestCalculator" name="test_subtract" file="test_calculator.py" line="8">
      <failure message="AssertionError: assert 5 == -1">Traceback (most recent call last):
  File "/work/calc/test_calculator.py", line 9, in test_subtract
    assert Calculator().subtract(2, 3) == -1
AssertionError: assert 5 == -1</failure>
    </testcase>
    <testcase classname="" name="test_strings" file="test_strings.py">
      <error message="collection failure">Traceback (most recent call last):
  File "/work/calc/string_utils.py", line 2
    def broken(
              ^
SyntaxError: '(' was never closed</error>
    </testcase>
  </testsuite>
</testsuites>`

const goTestStream = `{"Action":"start","Package":"calc"}
{"Action":"run","Package":"calc","Test":"TestAdd"}
{"Action":"output","Package":"calc","Test":"TestAdd","Output":"=== RUN   TestAdd\n"}
{"Action":"pass","Package":"calc","Test":"TestAdd"}
{"Action":"run","Package":"calc","Test":"TestSub"}
{"Action":"output","Package":"calc","Test":"TestSub","Output":"    calculator_test.go:12: expected -1, got 5\n"}
{"Action":"fail","Package":"calc","Test":"TestSub"}
{"Action":"output","Package":"calc","Output":"FAIL\n"}
{"Action":"fail","Package":"calc"}
`

func TestParseJUnit_OrderAndDetail(t *testing.T) {
	records, cases, err := parseJUnit(strings.NewReader(pytestReport))
	require.NoError(t, err)
	assert.Equal(t, 3, cases)

	want := []models.FailureRecord{
		{
			ID: "test_calculator.TestCalculator::test_subtract",
			Detail: "Traceback (most recent call last):\n  File \"/work/calc/test_calculator.py\", line 9, in test_subtract\n" +
				"    assert Calculator().subtract(2, 3) == -1\nAssertionError: assert 5 == -1",
		},
		{
			ID: "test_strings",
			Detail: "collection failure\nTraceback (most recent call last):\n  File \"/work/calc/string_utils.py\", line 2\n" +
				"    def broken(\n              ^\nSyntaxError: '(' was never closed",
		},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestParseJUnit_SingleSuiteRoot(t *testing.T) {
	report := `<testsuite tests="1"><testcase classname="t" name="ok"/></testsuite>`
	records, cases, err := parseJUnit(strings.NewReader(report))
	require.NoError(t, err)
	assert.Equal(t, 1, cases)
	assert.Empty(t, records)
}

func TestParseJUnit_Malformed(t *testing.T) {
	_, _, err := parseJUnit(strings.NewReader(`<testsuite><testcase`))
	assert.Error(t, err)
}

func TestParseGoTestJSON(t *testing.T) {
	records, stray := parseGoTestJSON(strings.NewReader(goTestStream))
	assert.Empty(t, stray)

	want := []models.FailureRecord{
		{ID: "calc::TestSub", Detail: "calculator_test.go:12: expected -1, got 5"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestParseGoTestJSON_BuildFailure(t *testing.T) {
	stream := `{"ImportPath":"calc [calc.test]","Action":"build-output","Output":"./calculator.go:3:1: syntax error\n"}
{"ImportPath":"calc [calc.test]","Action":"build-fail"}
`
	records, _ := parseGoTestJSON(strings.NewReader(stream))
	require.Len(t, records, 1)
	assert.Equal(t, "calc [calc.test]", records[0].ID)
	assert.Contains(t, records[0].Detail, "calculator.go:3:1")
}

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func shellRunner(format string, script string, args ...string) *CommandRunner {
	command := append([]string{"sh", "-c", script, "sh"}, args...)
	return &CommandRunner{Command: command, Format: format, Executor: utils.NewCommandExecutor()}
}

func TestRun_JUnitFailures(t *testing.T) {
	fixture := writeFixture(t, pytestReport)
	runner := shellRunner(languages.ReportJUnit, `cp "$1" "$2"; exit 1`, fixture, languages.ReportPlaceholder)

	outcome, err := runner.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	require.Len(t, outcome.Failures, 2)
	assert.Equal(t, "test_calculator.TestCalculator::test_subtract", outcome.Failures[0].ID)
}

func TestRun_JUnitAllPassing(t *testing.T) {
	fixture := writeFixture(t, `<testsuite><testcase classname="t" name="ok"/></testsuite>`)
	runner := shellRunner(languages.ReportJUnit, `cp "$1" "$2"`, fixture, languages.ReportPlaceholder)

	outcome, err := runner.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Empty(t, outcome.Failures)
}

func TestRun_NoTestsCollectedIsSuccess(t *testing.T) {
	runner := shellRunner(languages.ReportJUnit, `exit 5`)

	outcome, err := runner.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.True(t, outcome.Success)
}

func TestRun_FrameworkErrorBecomesSyntheticRecord(t *testing.T) {
	runner := shellRunner(languages.ReportJUnit, `echo "ERROR: usage: pytest [options]" 1>&2; exit 4`)

	outcome, err := runner.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	require.Len(t, outcome.Failures, 1)
	assert.Equal(t, DiscoveryFailureID, outcome.Failures[0].ID)
	assert.Contains(t, outcome.Failures[0].Detail, ErrTestDiscovery.Error())
	assert.Contains(t, outcome.Failures[0].Detail, "usage: pytest")
}

func TestRun_MalformedReportBecomesSyntheticRecord(t *testing.T) {
	fixture := writeFixture(t, `<testsuite><testcase`)
	runner := shellRunner(languages.ReportJUnit, `cp "$1" "$2"; exit 2`, fixture, languages.ReportPlaceholder)

	outcome, err := runner.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.Len(t, outcome.Failures, 1)
	assert.Equal(t, DiscoveryFailureID, outcome.Failures[0].ID)
}

func TestRun_GoJSON(t *testing.T) {
	fixture := writeFixture(t, goTestStream)
	runner := shellRunner(languages.ReportGoJSON, `cat "$1"; exit 1`, fixture)

	outcome, err := runner.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.Len(t, outcome.Failures, 1)
	assert.Equal(t, "calc::TestSub", outcome.Failures[0].ID)
}

func TestRun_StableOrderAcrossRuns(t *testing.T) {
	fixture := writeFixture(t, pytestReport)
	runner := shellRunner(languages.ReportJUnit, `cp "$1" "$2"; exit 1`, fixture, languages.ReportPlaceholder)

	first, err := runner.Run(context.Background(), t.TempDir())
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), t.TempDir())
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("outcomes differ between runs:\n%s", diff)
	}
}

func TestRun_MissingCommandIsError(t *testing.T) {
	runner := &CommandRunner{Command: []string{"definitely-not-a-test-runner-42"}, Executor: utils.NewCommandExecutor()}
	_, err := runner.Run(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestNewCommandRunner_Override(t *testing.T) {
	profile, err := languages.Lookup("python")
	require.NoError(t, err)

	runner := NewCommandRunner(profile, []string{"pytest", "--junitxml={report}"}, nil)
	assert.Equal(t, []string{"pytest", "--junitxml={report}"}, runner.Command)
	assert.Equal(t, languages.ReportJUnit, runner.Format)

	runner = NewCommandRunner(profile, nil, nil)
	assert.Equal(t, profile.TestCommand, runner.Command)
}
