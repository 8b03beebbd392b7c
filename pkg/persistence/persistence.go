// Package persistence provides the data storage abstraction for workflow
// definitions, projects, revisions, roles and document counts.
package persistence

import (
	"context"
	"time"

	"github.com/craftdesk/flowline/pkg/models"
)

// Persistence aggregates the repositories of one storage backend.
type Persistence interface {
	DefinitionRepository() DefinitionRepository
	ProjectRepository() ProjectRepository
	RevisionRepository() RevisionRepository
	RoleRepository() RoleRepository
	DocumentRepository() DocumentRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// DefinitionSummary is the listing row for a stored definition.
type DefinitionSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// ActiveAlias is the record behind the reserved "active" definition ID. It
// carries its own version counter, independent of the target definition's.
type ActiveAlias struct {
	TargetID  string    `json:"target_id"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefinitionRepository stores workflow definitions under optimistic
// concurrency: Save compares the supplied definition's version against the
// stored one and increments it atomically, failing with ErrVersionConflict
// when a concurrent writer got there first.
type DefinitionRepository interface {
	List(ctx context.Context) ([]*DefinitionSummary, error)
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	Save(ctx context.Context, def *models.WorkflowDefinition) (*models.WorkflowDefinition, error)
	Delete(ctx context.Context, id string) error

	// ActiveAlias returns the current "active" alias record, or
	// ErrDefinitionNotFound when no definition has been activated yet.
	ActiveAlias(ctx context.Context) (*ActiveAlias, error)

	// SetActive re-points the alias at targetID, compare-and-swapped
	// against the alias's own version (not the target's).
	SetActive(ctx context.Context, targetID string, aliasVersion int) (*ActiveAlias, error)
}

// ProjectRepository stores projects. Per-project write serialization is the
// service layer's concern (pkg/lock); Save is a plain last-write replace.
type ProjectRepository interface {
	List(ctx context.Context) ([]*models.Project, error)
	GetByID(ctx context.Context, id string) (*models.Project, error)
	Save(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
}

// RevisionRepository stores immutable project revisions. There is no update
// or delete: revisions are append-only by contract.
type RevisionRepository interface {
	Save(ctx context.Context, revision *models.Revision) error
	ListByProject(ctx context.Context, projectID string) ([]*models.Revision, error)
	GetByNumber(ctx context.Context, projectID string, revisionNumber int) (*models.Revision, error)
}

// RoleRepository is the flat global role vocabulary referenced by transition
// and approval rules.
type RoleRepository interface {
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
}

// DocumentRepository records uploaded document metadata and answers the
// count queries the action resolver needs for file gating. Storage of the
// file contents themselves lives elsewhere.
type DocumentRepository interface {
	Record(ctx context.Context, projectID, stageID, label, filename string) error
	CountDocuments(ctx context.Context, projectID, stageID, label string) (int, error)
	ListByProject(ctx context.Context, projectID string) ([]models.DocumentRecord, error)
}
