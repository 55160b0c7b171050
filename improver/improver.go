package improver

import (
	"context"
	"fmt"
	"time"

	"github.com/meysamhadeli/scaffai/artifact_store"
	"github.com/meysamhadeli/scaffai/code_analyzer"
	analyzer_models "github.com/meysamhadeli/scaffai/code_analyzer/models"
	"github.com/meysamhadeli/scaffai/code_generator"
	"github.com/meysamhadeli/scaffai/languages"
	"github.com/meysamhadeli/scaffai/logging"
	test_contracts "github.com/meysamhadeli/scaffai/test_runner/contracts"
)

const (
	DefaultMaxIterations = 5
	// DefaultUnitName labels appended patches.
	DefaultUnitName = "fixed_function"
)

// Workspace is the part of the artifact store the loop writes through.
type Workspace interface {
	Root() string
	Rel(path string) (string, bool)
	Resolve(fileName string) (string, error)
	UnitFileName(unitName string) (string, error)
	AppendOrCreate(fileName string, text string) error
	ReadUnit(fileName string) (string, error)
	Exists(fileName string) bool
	Lock(ctx context.Context) (func(), error)
	TryLock() (func(), bool)
}

// FixGenerator produces a patch for one failure.
type FixGenerator interface {
	Fix(ctx context.Context, request code_generator.FixRequest) (string, error)
}

// Outliner summarizes a source file for the fix prompt.
type Outliner interface {
	Outline(ctx context.Context, fileName string, source []byte) (*analyzer_models.FileOutline, error)
}

// Checkpointer snapshots the workspace before a patch batch.
type Checkpointer interface {
	Checkpoint(ctx context.Context, message string) (bool, error)
}

// Options bound and label one improvement run.
type Options struct {
	// MaxIterations caps the number of test executions. Values below 1 select DefaultMaxIterations.
	MaxIterations int
	// MaxDuration caps wall-clock time, checked before each test run. Zero disables it.
	MaxDuration time.Duration
	// UnitName labels appended patches in logs and events.
	UnitName string
	// WaitForLock blocks until the workspace is free instead of aborting with ErrWorkspaceBusy.
	WaitForLock bool
}

// Improver runs the test -> fix -> re-test loop for one workspace.
type Improver struct {
	workspace  Workspace
	runner     test_contracts.ITestRunner
	fixer      FixGenerator
	scanner    *referenceScanner
	goPackages bool
	outliner   Outliner
	checkpoint Checkpointer
	options    Options
	onEvent    func(Event)
	logger     *logging.Logger
	now        func() time.Time
}

// Option customizes an Improver.
type Option func(*Improver)

// WithOutliner adds a declaration outline of the failing file to fix prompts.
func WithOutliner(outliner Outliner) Option {
	return func(imp *Improver) { imp.outliner = outliner }
}

// WithCheckpoints commits the workspace before each batch of patches.
func WithCheckpoints(checkpoint Checkpointer) Option {
	return func(imp *Improver) { imp.checkpoint = checkpoint }
}

// WithEvents registers a progress callback.
func WithEvents(onEvent func(Event)) Option {
	return func(imp *Improver) { imp.onEvent = onEvent }
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(imp *Improver) { imp.logger = logger }
}

// WithClock replaces time.Now for the duration budget.
func WithClock(now func() time.Time) Option {
	return func(imp *Improver) { imp.now = now }
}

// NewImprover wires the loop. profile supplies the failure file markers and source extension.
func NewImprover(workspace Workspace, runner test_contracts.ITestRunner, fixer FixGenerator, profile languages.Profile, options Options, opts ...Option) *Improver {
	if options.MaxIterations < 1 {
		options.MaxIterations = DefaultMaxIterations
	}
	if options.UnitName == "" {
		options.UnitName = DefaultUnitName
	}

	imp := &Improver{
		workspace: workspace,
		runner:    runner,
		fixer:     fixer,
		scanner: &referenceScanner{
			marker:    profile.FileMarker,
			fallback:  profile.QuotedFallback,
			extension: profile.Extension,
			workspace: workspace,
		},
		goPackages: profile.ReportFormat == languages.ReportGoJSON,
		options:    options,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(imp)
	}
	if imp.logger == nil {
		imp.logger = logging.Nop()
	}
	imp.logger = imp.logger.Component("improver")
	return imp
}

// Improve runs the loop to a terminal state. The returned Result is never nil;
// the error is nil only when the run Converged.
func (imp *Improver) Improve(ctx context.Context) (*Result, error) {
	result := &Result{State: Idle}
	start := imp.now()

	release, err := imp.acquire(ctx)
	if err != nil {
		return imp.finish(result, start, Aborted, err)
	}
	defer release()

	result.State = Running
	imp.logger.Info("improvement started",
		"workspace", imp.workspace.Root(),
		"max_iterations", imp.options.MaxIterations,
		"max_duration", imp.options.MaxDuration.String())

	for {
		if err := ctx.Err(); err != nil {
			return imp.finish(result, start, Aborted, err)
		}
		if imp.options.MaxDuration > 0 && imp.now().Sub(start) >= imp.options.MaxDuration {
			return imp.finish(result, start, Exhausted,
				fmt.Errorf("%w: time budget of %s spent after %d test runs", ErrLoopExhausted, imp.options.MaxDuration, result.Iterations))
		}

		outcome, err := imp.runner.Run(ctx, imp.workspace.Root())
		if err != nil {
			return imp.finish(result, start, Aborted, fmt.Errorf("test run failed: %w", err))
		}
		result.Iterations++
		result.LastOutcome = outcome
		iteration := result.Iterations

		imp.emit(Event{Kind: EventTestRun, Iteration: iteration, State: Running, Outcome: outcome})
		imp.logger.Info("tests finished", "iteration", iteration, "success", outcome.Success, "failures", len(outcome.Failures))

		if outcome.Success {
			return imp.finish(result, start, Converged, nil)
		}
		if iteration >= imp.options.MaxIterations {
			return imp.finish(result, start, Exhausted,
				fmt.Errorf("%w: %d failing tests after %d test runs", ErrLoopExhausted, len(outcome.Failures), iteration))
		}

		imp.checkpointBefore(ctx, iteration)

		for _, record := range outcome.Failures {
			patch, err := imp.patch(ctx, iteration, record.ID, record.Detail)
			if err != nil {
				return imp.finish(result, start, Aborted, err)
			}
			result.Patches = append(result.Patches, *patch)
		}
	}
}

func (imp *Improver) acquire(ctx context.Context) (func(), error) {
	if imp.options.WaitForLock {
		return imp.workspace.Lock(ctx)
	}
	release, ok := imp.workspace.TryLock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", imp.workspace.Root(), artifact_store.ErrWorkspaceBusy)
	}
	return release, nil
}

// patch requests and persists exactly one fix for one failure record.
func (imp *Improver) patch(ctx context.Context, iteration int, failureID, detail string) (*Patch, error) {
	var dirs []string
	if imp.goPackages {
		if dir, ok := goPackageDir(imp.workspace, failureID); ok {
			dirs = append(dirs, dir)
		}
	}

	ref := imp.scanner.unitFor(detail, dirs...)
	unit, fileName := ref.Unit, ref.File
	if fileName == "" {
		var err error
		if fileName, err = imp.workspace.UnitFileName(unit); err != nil {
			imp.logger.Warn("unusable unit name, using fallback", "unit", unit, "error", err)
			unit = UnknownFile
			if fileName, err = imp.workspace.UnitFileName(unit); err != nil {
				return nil, err
			}
		}
	}

	request := code_generator.FixRequest{Detail: detail, File: fileName}
	if imp.outliner != nil && imp.workspace.Exists(fileName) {
		if source, readErr := imp.workspace.ReadUnit(fileName); readErr == nil {
			if outline, outlineErr := imp.outliner.Outline(ctx, fileName, []byte(source)); outlineErr == nil {
				request.Outline = code_analyzer.Render(outline)
			} else {
				imp.logger.Debug("outline unavailable", "file", fileName, "error", outlineErr)
			}
		}
	}

	imp.emit(Event{Kind: EventFixRequest, Iteration: iteration, State: Running, FailureID: failureID, File: fileName})

	text, err := imp.fixer.Fix(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("fix for %s: %w", failureID, err)
	}

	if err := imp.workspace.AppendOrCreate(fileName, text); err != nil {
		return nil, fmt.Errorf("persisting %s for %s: %w", imp.options.UnitName, failureID, err)
	}

	imp.emit(Event{Kind: EventPatch, Iteration: iteration, State: Running, FailureID: failureID, File: fileName})
	imp.logger.Info("patch appended", "iteration", iteration, "failure", failureID, "file", fileName, "unit", imp.options.UnitName)

	return &Patch{Iteration: iteration, FailureID: failureID, Unit: unit, File: fileName, Bytes: len(text)}, nil
}

func (imp *Improver) checkpointBefore(ctx context.Context, iteration int) {
	if imp.checkpoint == nil {
		return
	}
	committed, err := imp.checkpoint.Checkpoint(ctx, fmt.Sprintf("scaffai: before patches of iteration %d", iteration))
	if err != nil {
		imp.logger.Warn("checkpoint failed", "iteration", iteration, "error", err)
		return
	}
	if committed {
		imp.emit(Event{Kind: EventCheckpoint, Iteration: iteration, State: Running})
	}
}

func (imp *Improver) finish(result *Result, start time.Time, state State, err error) (*Result, error) {
	result.State = state
	result.Err = err
	result.Elapsed = imp.now().Sub(start)

	imp.emit(Event{Kind: EventFinished, Iteration: result.Iterations, State: state, Outcome: result.LastOutcome, Err: err})

	if err != nil {
		imp.logger.Warn("improvement stopped", "state", state.String(), "iterations", result.Iterations, "error", err)
	} else {
		imp.logger.Info("improvement converged", "iterations", result.Iterations, "patches", len(result.Patches))
	}
	return result, err
}

func (imp *Improver) emit(event Event) {
	if imp.onEvent != nil {
		imp.onEvent(event)
	}
}
