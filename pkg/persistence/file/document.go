package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/craftdesk/flowline/pkg/models"
)

// DocumentRepository stores document metadata per project in
// <root>/documents/<projectID>.json.
type DocumentRepository struct {
	root string
	mu   sync.Mutex
}

// NewDocumentRepository creates a file-backed document repository.
func NewDocumentRepository(root string) *DocumentRepository {
	return &DocumentRepository{root: root}
}

func (dr *DocumentRepository) path(projectID string) string {
	return filepath.Join(dr.root, "documents", projectID+".json")
}

// Record appends a document metadata row.
func (dr *DocumentRepository) Record(_ context.Context, projectID, stageID, label, filename string) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	records, err := dr.read(projectID)
	if err != nil {
		return err
	}

	records = append(records, models.DocumentRecord{
		StageID:    stageID,
		Label:      label,
		Filename:   filename,
		UploadedAt: time.Now(),
	})

	if err := os.MkdirAll(filepath.Dir(dr.path(projectID)), 0o755); err != nil {
		return fmt.Errorf("failed to create documents directory: %w", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode document records: %w", err)
	}

	if err := os.WriteFile(dr.path(projectID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write document records: %w", err)
	}

	return nil
}

// CountDocuments counts records matching a project, stage and label.
func (dr *DocumentRepository) CountDocuments(_ context.Context, projectID, stageID, label string) (int, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	records, err := dr.read(projectID)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, record := range records {
		if record.StageID == stageID && record.Label == label {
			count++
		}
	}

	return count, nil
}

// ListByProject returns every document record of a project in upload order.
func (dr *DocumentRepository) ListByProject(_ context.Context, projectID string) ([]models.DocumentRecord, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	return dr.read(projectID)
}

func (dr *DocumentRepository) read(projectID string) ([]models.DocumentRecord, error) {
	data, err := os.ReadFile(dr.path(projectID))
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read document records: %w", err)
	}

	var records []models.DocumentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode document records: %w", err)
	}

	return records, nil
}
