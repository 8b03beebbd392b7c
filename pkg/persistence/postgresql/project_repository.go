package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/craftdesk/flowline/pkg/models"
	"github.com/craftdesk/flowline/pkg/persistence"
)

// ProjectRepository stores projects as JSONB documents.
type ProjectRepository struct {
	db *sql.DB
}

// List returns every stored project ordered by creation time.
func (pr *ProjectRepository) List(ctx context.Context) ([]*models.Project, error) {
	rows, err := pr.db.QueryContext(ctx,
		`SELECT document FROM projects ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project

	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}

		var project models.Project
		if err := json.Unmarshal(document, &project); err != nil {
			return nil, fmt.Errorf("failed to decode project: %w", err)
		}

		projects = append(projects, &project)
	}

	return projects, rows.Err()
}

// GetByID retrieves a project by its ID.
func (pr *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	var document []byte

	err := pr.db.QueryRowContext(ctx,
		`SELECT document FROM projects WHERE id = $1`, id).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewProjectError("GetByID", id, persistence.ErrProjectNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}

	var project models.Project
	if err := json.Unmarshal(document, &project); err != nil {
		return nil, fmt.Errorf("failed to decode project %s: %w", id, err)
	}

	return &project, nil
}

// Save persists a project, replacing any previous state.
func (pr *ProjectRepository) Save(ctx context.Context, project *models.Project) error {
	document, err := json.Marshal(project)
	if err != nil {
		return fmt.Errorf("failed to encode project %s: %w", project.ID, err)
	}

	_, err = pr.db.ExecContext(ctx, `
		INSERT INTO projects (id, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET document = EXCLUDED.document,
		    updated_at = EXCLUDED.updated_at`,
		project.ID, document, project.CreatedAt, project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save project %s: %w", project.ID, err)
	}

	return nil
}

// Delete removes a project row. Revisions are kept as immutable history.
func (pr *ProjectRepository) Delete(ctx context.Context, id string) error {
	result, err := pr.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result for project %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.NewProjectError("Delete", id, persistence.ErrProjectNotFound)
	}

	return nil
}

// RevisionRepository stores immutable project revisions. The unique
// (project_id, revision_number) constraint enforces write-once semantics.
type RevisionRepository struct {
	db *sql.DB
}

// Save persists a new revision.
func (rr *RevisionRepository) Save(ctx context.Context, revision *models.Revision) error {
	document, err := json.Marshal(revision)
	if err != nil {
		return fmt.Errorf("failed to encode revision: %w", err)
	}

	_, err = rr.db.ExecContext(ctx, `
		INSERT INTO project_revisions (id, project_id, revision_number, document, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		revision.ID, revision.ProjectID, revision.RevisionNumber, document, revision.SnapshotDate)
	if err != nil {
		return fmt.Errorf("failed to save revision %d of project %s: %w",
			revision.RevisionNumber, revision.ProjectID, err)
	}

	return nil
}

// ListByProject returns every revision of a project ordered by number.
func (rr *RevisionRepository) ListByProject(ctx context.Context, projectID string) ([]*models.Revision, error) {
	rows, err := rr.db.QueryContext(ctx, `
		SELECT document FROM project_revisions
		WHERE project_id = $1
		ORDER BY revision_number`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions of project %s: %w", projectID, err)
	}
	defer rows.Close()

	revisions := make([]*models.Revision, 0)

	for rows.Next() {
		var document []byte
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}

		var revision models.Revision
		if err := json.Unmarshal(document, &revision); err != nil {
			return nil, fmt.Errorf("failed to decode revision: %w", err)
		}

		revisions = append(revisions, &revision)
	}

	return revisions, rows.Err()
}

// GetByNumber retrieves one revision of a project.
func (rr *RevisionRepository) GetByNumber(ctx context.Context, projectID string, revisionNumber int) (*models.Revision, error) {
	var document []byte

	err := rr.db.QueryRowContext(ctx, `
		SELECT document FROM project_revisions
		WHERE project_id = $1 AND revision_number = $2`,
		projectID, revisionNumber).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewProjectError("GetByNumber", projectID, persistence.ErrRevisionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get revision %d of project %s: %w", revisionNumber, projectID, err)
	}

	var revision models.Revision
	if err := json.Unmarshal(document, &revision); err != nil {
		return nil, fmt.Errorf("failed to decode revision %d of project %s: %w", revisionNumber, projectID, err)
	}

	return &revision, nil
}
