// Package services provides the application services behind the HTTP API,
// coordinating the workflow engine, persistence and the event bus.
package services

import (
	"errors"
	"fmt"

	"github.com/craftdesk/flowline/pkg/persistence"
	"github.com/craftdesk/flowline/pkg/workflow"
)

var (
	// ErrInvalidRequest indicates a request that failed structural validation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrWorkflowInUse indicates a definition delete was refused because
	// projects still reference it.
	ErrWorkflowInUse = errors.New("workflow definition is referenced by projects")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsValidationError checks if an error should map to HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, workflow.ErrValidation) ||
		errors.Is(err, workflow.ErrReasonRequired) ||
		errors.Is(err, workflow.ErrStageNotFound) ||
		errors.Is(err, workflow.ErrApprovalNotRequired)
}

// IsNotFoundError checks if an error should map to HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsDefinitionNotFound(err) ||
		persistence.IsProjectNotFound(err) ||
		persistence.IsRevisionNotFound(err) ||
		errors.Is(err, workflow.ErrRevisionNotFound) ||
		errors.Is(err, persistence.ErrRoleNotFound)
}

// IsConflictError checks if an error should map to HTTP 409. Lost
// optimistic-concurrency races, stale-stage approvals and disallowed or
// ambiguous transitions all land here.
func IsConflictError(err error) bool {
	return persistence.IsVersionConflict(err) ||
		errors.Is(err, workflow.ErrWrongStage) ||
		errors.Is(err, workflow.ErrAmbiguousMove) ||
		errors.Is(err, workflow.ErrTransitionNotAllowed) ||
		errors.Is(err, workflow.ErrStageNotInTargetWorkflow) ||
		errors.Is(err, workflow.ErrDuplicateStage) ||
		errors.Is(err, workflow.ErrInitialStageUndeletable) ||
		errors.Is(err, persistence.ErrRoleExists) ||
		errors.Is(err, ErrWorkflowInUse)
}
