package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/craftdesk/flowline/pkg/models"
)

// DocumentRepository counts uploaded documents per project, stage and label.
type DocumentRepository struct {
	db *sql.DB
}

// Record registers one uploaded document.
func (dr *DocumentRepository) Record(ctx context.Context, projectID, stageID, label, filename string) error {
	_, err := dr.db.ExecContext(ctx, `
		INSERT INTO project_documents (project_id, stage_id, label, filename, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		projectID, stageID, label, filename, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record document for project %s: %w", projectID, err)
	}

	return nil
}

// CountDocuments reports how many documents are attached to a project for a
// stage and requirement label.
func (dr *DocumentRepository) CountDocuments(ctx context.Context, projectID, stageID, label string) (int, error) {
	var count int

	err := dr.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM project_documents
		WHERE project_id = $1 AND stage_id = $2 AND label = $3`,
		projectID, stageID, label).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents for project %s: %w", projectID, err)
	}

	return count, nil
}

// ListByProject returns every document record of a project in upload order.
func (dr *DocumentRepository) ListByProject(ctx context.Context, projectID string) ([]models.DocumentRecord, error) {
	rows, err := dr.db.QueryContext(ctx, `
		SELECT stage_id, label, filename, uploaded_at FROM project_documents
		WHERE project_id = $1
		ORDER BY id`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents for project %s: %w", projectID, err)
	}
	defer rows.Close()

	var records []models.DocumentRecord

	for rows.Next() {
		var record models.DocumentRecord
		if err := rows.Scan(&record.StageID, &record.Label, &record.Filename, &record.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document record for project %s: %w", projectID, err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list documents for project %s: %w", projectID, err)
	}

	return records, nil
}
