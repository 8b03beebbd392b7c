// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDefinitionNotFound indicates a workflow definition was not found by
	// the given identifier (including an unset "active" alias).
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrProjectNotFound indicates a project was not found by the given identifier.
	ErrProjectNotFound = errors.New("project not found")

	// ErrRevisionNotFound indicates the requested revision number does not
	// exist for the project.
	ErrRevisionNotFound = errors.New("revision not found")

	// ErrVersionConflict indicates an optimistic-concurrency loss: the
	// stored version no longer matches the version the writer read.
	ErrVersionConflict = errors.New("version conflict")

	// ErrRoleExists indicates the role name is already in the vocabulary.
	ErrRoleExists = errors.New("role already exists")

	// ErrRoleNotFound indicates the role name is not in the vocabulary.
	ErrRoleNotFound = errors.New("role not found")
)

// DefinitionError wraps definition-store errors with operation context.
type DefinitionError struct {
	Op           string // Operation being performed (e.g. "GetByID", "Save")
	DefinitionID string
	Version      int
	Err          error
}

func (e *DefinitionError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("%s operation failed for definition %s (version %d): %v", e.Op, e.DefinitionID, e.Version, e.Err)
	}

	return fmt.Sprintf("%s operation failed for definition %s: %v", e.Op, e.DefinitionID, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

func (e *DefinitionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewDefinitionError creates a definition error with context.
func NewDefinitionError(op, definitionID string, err error) *DefinitionError {
	return &DefinitionError{Op: op, DefinitionID: definitionID, Err: err}
}

// ProjectError wraps project-store errors with operation context.
type ProjectError struct {
	Op        string
	ProjectID string
	Err       error
}

func (e *ProjectError) Error() string {
	return fmt.Sprintf("%s operation failed for project %s: %v", e.Op, e.ProjectID, e.Err)
}

func (e *ProjectError) Unwrap() error {
	return e.Err
}

func (e *ProjectError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewProjectError creates a project error with context.
func NewProjectError(op, projectID string, err error) *ProjectError {
	return &ProjectError{Op: op, ProjectID: projectID, Err: err}
}

// IsDefinitionNotFound checks if an error indicates a missing definition.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

// IsProjectNotFound checks if an error indicates a missing project.
func IsProjectNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound)
}

// IsRevisionNotFound checks if an error indicates a missing revision.
func IsRevisionNotFound(err error) bool {
	return errors.Is(err, ErrRevisionNotFound)
}

// IsVersionConflict checks if an error indicates an optimistic-concurrency loss.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
