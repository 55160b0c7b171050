package improver

import (
	"errors"
	"time"

	"github.com/meysamhadeli/scaffai/test_runner/models"
)

// ErrLoopExhausted reports that the iteration or time budget ran out before the suite passed.
var ErrLoopExhausted = errors.New("improvement loop exhausted")

// State is a position in the improvement state machine.
type State int

const (
	Idle State = iota
	Running
	Converged
	Exhausted
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Converged:
		return "converged"
	case Exhausted:
		return "exhausted"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == Converged || s == Exhausted || s == Aborted
}

// Patch is one generated fix persisted into the workspace.
type Patch struct {
	Iteration int
	FailureID string
	Unit      string
	File      string
	Bytes     int
}

// Result describes how a run ended. Iterations counts completed test runs.
type Result struct {
	State       State
	Iterations  int
	LastOutcome *models.TestOutcome
	Patches     []Patch
	Elapsed     time.Duration
	Err         error
}

// EventKind labels progress notifications.
type EventKind string

const (
	EventTestRun    EventKind = "test_run"
	EventCheckpoint EventKind = "checkpoint"
	EventFixRequest EventKind = "fix_requested"
	EventPatch      EventKind = "patch_applied"
	EventFinished   EventKind = "finished"
)

// Event is emitted synchronously from the loop goroutine.
type Event struct {
	Kind      EventKind
	Iteration int
	State     State
	Outcome   *models.TestOutcome
	FailureID string
	File      string
	Err       error
}
