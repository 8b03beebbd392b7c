// Package workflow implements the project lifecycle engine: graph editing
// and validation, action resolution, transition execution, point-in-time
// revisions and workflow switching.
package workflow

import (
	"errors"
	"fmt"
)

// Engine error taxonomy. Every rejected mutation returns one of these (or an
// EditError wrapping one) and leaves prior state completely unchanged.
var (
	// ErrValidation indicates a malformed edit: a structural invariant of
	// the graph would be violated (dangling transition target, empty stage
	// set, unknown rule key).
	ErrValidation = errors.New("definition validation failed")

	// ErrStageNotFound indicates a referenced stage is not a member of the
	// definition's stage set.
	ErrStageNotFound = errors.New("stage not found")

	// ErrDuplicateStage indicates an added or renamed stage collides with an
	// existing stage after case-insensitive normalization.
	ErrDuplicateStage = errors.New("duplicate stage name")

	// ErrInitialStageUndeletable indicates removal of the only stage (or the
	// initial stage with no remaining stage to promote).
	ErrInitialStageUndeletable = errors.New("initial stage cannot be deleted")

	// ErrTransitionNotAllowed indicates a move the current graph, role set,
	// file rules or pending approvals do not permit.
	ErrTransitionNotAllowed = errors.New("transition not allowed")

	// ErrWrongStage indicates an approval aimed at a stage that is no longer
	// the project's current stage (stale client).
	ErrWrongStage = errors.New("stage does not match project's current stage")

	// ErrApprovalNotRequired indicates an approval from a role the current
	// stage does not require a decision from.
	ErrApprovalNotRequired = errors.New("stage requires no approval from role")

	// ErrAmbiguousMove indicates a move with no explicit target while more
	// than one permitted target exists.
	ErrAmbiguousMove = errors.New("ambiguous move: multiple permitted targets")

	// ErrReasonRequired indicates a revise call with an empty reason.
	ErrReasonRequired = errors.New("revision reason is required")

	// ErrRevisionNotFound indicates the requested revision number does not
	// exist for the project.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrStageNotInTargetWorkflow indicates a workflow switch whose target
	// definition does not contain the project's current stage.
	ErrStageNotInTargetWorkflow = errors.New("current stage not present in target workflow")
)

// EditError wraps a rejected graph edit with the operation and stage that
// triggered it.
type EditError struct {
	Op    string
	Stage string
	Err   error
}

func (e *EditError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s %q: %v", e.Op, e.Stage, e.Err)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *EditError) Unwrap() error {
	return e.Err
}

func newEditError(op, stage string, err error) *EditError {
	return &EditError{Op: op, Stage: stage, Err: err}
}

// IsValidation reports whether err belongs to the structural-validation
// family (including stage membership and duplicate-name failures).
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrStageNotFound) ||
		errors.Is(err, ErrDuplicateStage) ||
		errors.Is(err, ErrInitialStageUndeletable)
}
