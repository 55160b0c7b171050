package improver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/meysamhadeli/scaffai/artifact_store"
	"github.com/meysamhadeli/scaffai/code_analyzer"
	"github.com/meysamhadeli/scaffai/code_generator"
	"github.com/meysamhadeli/scaffai/languages"
	"github.com/meysamhadeli/scaffai/providers/contracts"
	"github.com/meysamhadeli/scaffai/test_runner/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventLog records the order of runner, generator and store calls.
type eventLog struct {
	entries []string
}

func (l *eventLog) add(format string, args ...any) {
	l.entries = append(l.entries, fmt.Sprintf(format, args...))
}

func (l *eventLog) count(prefix string) int {
	n := 0
	for _, entry := range l.entries {
		if strings.HasPrefix(entry, prefix) {
			n++
		}
	}
	return n
}

type scriptedRunner struct {
	log      *eventLog
	outcomes []*models.TestOutcome
	calls    int
	hook     func(call int)
}

func (r *scriptedRunner) Run(_ context.Context, _ string) (*models.TestOutcome, error) {
	r.calls++
	r.log.add("run")
	if r.hook != nil {
		r.hook(r.calls)
	}
	if r.calls <= len(r.outcomes) {
		return r.outcomes[r.calls-1], nil
	}
	return r.outcomes[len(r.outcomes)-1], nil
}

type scriptedFixer struct {
	log      *eventLog
	requests []code_generator.FixRequest
	err      error
}

func (f *scriptedFixer) Fix(_ context.Context, request code_generator.FixRequest) (string, error) {
	f.requests = append(f.requests, request)
	f.log.add("fix:%s", request.File)
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("def fixed_function():\n    return %d", len(f.requests)), nil
}

type recordingStore struct {
	*artifact_store.Store
	log *eventLog
}

func (s *recordingStore) AppendOrCreate(fileName string, text string) error {
	s.log.add("persist:%s", fileName)
	return s.Store.AppendOrCreate(fileName, text)
}

type fixture struct {
	log    *eventLog
	store  *recordingStore
	fixer  *scriptedFixer
	runner *scriptedRunner
}

func newFixture(t *testing.T, outcomes ...*models.TestOutcome) *fixture {
	t.Helper()
	store, err := artifact_store.NewStore(t.TempDir(), "calc", ".py", nil)
	require.NoError(t, err)
	_, err = store.EnsureWorkspace()
	require.NoError(t, err)

	log := &eventLog{}
	return &fixture{
		log:    log,
		store:  &recordingStore{Store: store, log: log},
		fixer:  &scriptedFixer{log: log},
		runner: &scriptedRunner{log: log, outcomes: outcomes},
	}
}

func (f *fixture) improver(t *testing.T, options Options, opts ...Option) *Improver {
	t.Helper()
	profile, err := languages.Lookup("python")
	require.NoError(t, err)
	return NewImprover(f.store, f.runner, f.fixer, profile, options, opts...)
}

func traceback(path string, line int) string {
	return fmt.Sprintf("Traceback (most recent call last):\n  File \"%s\", line %d, in subtract\n    return a + b\nAssertionError: assert 5 == -1", path, line)
}

func failing(details ...string) *models.TestOutcome {
	records := make([]models.FailureRecord, len(details))
	for i, detail := range details {
		records[i] = models.FailureRecord{ID: fmt.Sprintf("test_calculator.py::test_%d", i), Detail: detail}
	}
	return models.Failed(records...)
}

func TestImprove_ConvergesWithoutGenerating(t *testing.T) {
	f := newFixture(t, models.Passed())

	result, err := f.improver(t, Options{}).Improve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Converged, result.State)
	assert.Equal(t, 1, result.Iterations)
	assert.Empty(t, result.Patches)
	assert.Equal(t, []string{"run"}, f.log.entries)
}

func TestImprove_BatchThenRetest(t *testing.T) {
	f := newFixture(t)
	root := f.store.Root()
	f.runner.outcomes = []*models.TestOutcome{
		failing(
			traceback(filepath.Join(root, "calculator.py"), 3),
			traceback(filepath.Join(root, "parser.py"), 9),
			traceback(filepath.Join(root, "calculator.py"), 7),
		),
		models.Passed(),
	}

	result, err := f.improver(t, Options{}).Improve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Converged, result.State)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, []string{
		"run",
		"fix:calculator.py", "persist:calculator.py",
		"fix:parser.py", "persist:parser.py",
		"fix:calculator.py", "persist:calculator.py",
		"run",
	}, f.log.entries)
	require.Len(t, result.Patches, 3)
	assert.Equal(t, "calculator", result.Patches[0].Unit)
	assert.Equal(t, 1, result.Patches[2].Iteration)
}

func TestImprove_ExhaustsAfterExactlyMaxIterations(t *testing.T) {
	for _, maxIterations := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("max_%d", maxIterations), func(t *testing.T) {
			f := newFixture(t)
			f.runner.outcomes = []*models.TestOutcome{failing(traceback(filepath.Join(f.store.Root(), "calculator.py"), 3))}

			result, err := f.improver(t, Options{MaxIterations: maxIterations}).Improve(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrLoopExhausted)
			assert.Equal(t, Exhausted, result.State)
			assert.Equal(t, maxIterations, f.runner.calls)
			assert.Equal(t, maxIterations, result.Iterations)
			assert.Equal(t, maxIterations-1, len(f.fixer.requests))
			require.NotNil(t, result.LastOutcome)
			assert.Len(t, result.LastOutcome.Failures, 1)
		})
	}
}

func TestImprove_DefaultIterationBound(t *testing.T) {
	f := newFixture(t, failing("boom"))

	result, err := f.improver(t, Options{MaxIterations: 0}).Improve(context.Background())
	assert.ErrorIs(t, err, ErrLoopExhausted)
	assert.Equal(t, DefaultMaxIterations, result.Iterations)
}

func TestImprove_AbortsWhenGenerationUnavailable(t *testing.T) {
	f := newFixture(t, failing("first", "second"))
	f.fixer.err = contracts.Unavailable("remote", errors.New("connection refused"))

	result, err := f.improver(t, Options{MaxIterations: 5}).Improve(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, contracts.ErrGenerationUnavailable)
	assert.Equal(t, Aborted, result.State)
	assert.Equal(t, 1, result.Iterations)
	require.NotNil(t, result.LastOutcome)
	assert.Len(t, result.LastOutcome.Failures, 2)
	assert.Equal(t, []string{"run", "fix:unknown_file.py"}, f.log.entries)
	assert.False(t, f.store.Exists("unknown_file.py"))
}

func TestImprove_CalculatorScenario(t *testing.T) {
	f := newFixture(t)
	root := f.store.Root()
	skeleton := "class Calculator:\n    def subtract(self, a, b):\n        return a + b\n"
	require.NoError(t, f.store.WriteUnit("calculator.py", skeleton))

	f.runner.outcomes = []*models.TestOutcome{
		failing(traceback(filepath.Join(root, "calculator.py"), 3)),
		models.Passed(),
	}

	result, err := f.improver(t, Options{MaxIterations: 3}).Improve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Converged, result.State)

	require.Len(t, f.fixer.requests, 1)
	assert.Equal(t, traceback(filepath.Join(root, "calculator.py"), 3), f.fixer.requests[0].Detail)
	assert.Equal(t, "calculator.py", f.fixer.requests[0].File)

	content, err := f.store.ReadUnit("calculator.py")
	require.NoError(t, err)
	assert.Equal(t, skeleton+"\ndef fixed_function():\n    return 1", content)
}

func TestImprove_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t, models.Passed())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.improver(t, Options{}).Improve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Aborted, result.State)
	assert.Equal(t, 0, f.runner.calls)
}

func TestImprove_CancellationCheckedBetweenIterations(t *testing.T) {
	f := newFixture(t, failing("boom"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.runner.hook = func(call int) {
		if call == 2 {
			cancel()
		}
	}

	result, err := f.improver(t, Options{MaxIterations: 10}).Improve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Aborted, result.State)
	assert.Equal(t, 2, result.Iterations)
	assert.Equal(t, 2, f.runner.calls)
	assert.Len(t, result.Patches, 2)
}

func TestImprove_TimeBudget(t *testing.T) {
	f := newFixture(t, failing("boom"))
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	result, err := f.improver(t, Options{MaxIterations: 100, MaxDuration: 150 * time.Second}, WithClock(now)).Improve(context.Background())
	assert.ErrorIs(t, err, ErrLoopExhausted)
	assert.Equal(t, Exhausted, result.State)
	assert.Less(t, f.runner.calls, 100)
	assert.Equal(t, f.runner.calls, result.Iterations)
}

func TestImprove_BusyWorkspace(t *testing.T) {
	f := newFixture(t, models.Passed())
	release, ok := f.store.TryLock()
	require.True(t, ok)
	defer release()

	result, err := f.improver(t, Options{}).Improve(context.Background())
	assert.ErrorIs(t, err, artifact_store.ErrWorkspaceBusy)
	assert.Equal(t, Aborted, result.State)
	assert.Equal(t, 0, f.runner.calls)
}

func TestImprove_ReleasesLock(t *testing.T) {
	f := newFixture(t, models.Passed())

	_, err := f.improver(t, Options{}).Improve(context.Background())
	require.NoError(t, err)

	release, ok := f.store.TryLock()
	require.True(t, ok)
	release()
}

func TestImprove_WriteFailureAborts(t *testing.T) {
	f := newFixture(t)
	root := f.store.Root()
	require.NoError(t, os.Mkdir(filepath.Join(root, "calculator.py"), 0o755))
	f.runner.outcomes = []*models.TestOutcome{failing(traceback(filepath.Join(root, "calculator.py"), 3))}

	result, err := f.improver(t, Options{}).Improve(context.Background())
	require.Error(t, err)
	var ioErr *artifact_store.WorkspaceIOError
	assert.ErrorAs(t, err, &ioErr)
	assert.Equal(t, Aborted, result.State)
	assert.Equal(t, 1, f.runner.calls)
}

func TestImprove_OutlineAddedToFixRequest(t *testing.T) {
	f := newFixture(t)
	root := f.store.Root()
	require.NoError(t, f.store.WriteUnit("calculator.py", "class Calculator:\n    def add(self, a, b):\n        return a - b\n"))
	f.runner.outcomes = []*models.TestOutcome{failing(traceback(filepath.Join(root, "calculator.py"), 3)), models.Passed()}

	analyzer, err := code_analyzer.NewCodeAnalyzer(nil)
	require.NoError(t, err)

	_, err = f.improver(t, Options{}, WithOutliner(analyzer)).Improve(context.Background())
	require.NoError(t, err)
	require.Len(t, f.fixer.requests, 1)
	assert.Equal(t, "class: Calculator (line 1)\nfunction: add (line 2)", f.fixer.requests[0].Outline)
}

type countingCheckpoint struct {
	log *eventLog
	err error
}

func (c *countingCheckpoint) Checkpoint(_ context.Context, message string) (bool, error) {
	c.log.add("checkpoint")
	return c.err == nil, c.err
}

func TestImprove_CheckpointsBeforeEachBatch(t *testing.T) {
	f := newFixture(t, failing("a", "b"), failing("a"), models.Passed())
	var events []EventKind

	_, err := f.improver(t, Options{},
		WithCheckpoints(&countingCheckpoint{log: f.log}),
		WithEvents(func(e Event) { events = append(events, e.Kind) }),
	).Improve(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"run", "checkpoint", "fix:unknown_file.py", "persist:unknown_file.py", "fix:unknown_file.py", "persist:unknown_file.py",
		"run", "checkpoint", "fix:unknown_file.py", "persist:unknown_file.py",
		"run",
	}, f.log.entries)
	assert.Equal(t, 2, f.log.count("checkpoint"))
	assert.Equal(t, EventFinished, events[len(events)-1])
	assert.Contains(t, events, EventCheckpoint)
}

func TestImprove_CheckpointFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, failing("a"), models.Passed())

	result, err := f.improver(t, Options{}, WithCheckpoints(&countingCheckpoint{log: f.log, err: errors.New("git missing")})).Improve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Converged, result.State)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "converged", Converged.String())
	assert.True(t, Aborted.Terminal())
	assert.False(t, Running.Terminal())
}
