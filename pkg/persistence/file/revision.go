package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/craftdesk/flowline/pkg/models"
	"github.com/craftdesk/flowline/pkg/persistence"
)

// RevisionRepository stores project revisions as JSON files under
// <root>/revisions/<projectID>/<number>.json. Files are written once and
// never rewritten.
type RevisionRepository struct {
	root string
	mu   sync.Mutex
}

// NewRevisionRepository creates a file-backed revision repository.
func NewRevisionRepository(root string) *RevisionRepository {
	return &RevisionRepository{root: root}
}

func (rr *RevisionRepository) dir(projectID string) string {
	return filepath.Join(rr.root, "revisions", projectID)
}

func (rr *RevisionRepository) path(projectID string, number int) string {
	return filepath.Join(rr.dir(projectID), strconv.Itoa(number)+".json")
}

// Save persists a new revision. Overwriting an existing revision number is
// refused: revisions are immutable.
func (rr *RevisionRepository) Save(_ context.Context, revision *models.Revision) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	path := rr.path(revision.ProjectID, revision.RevisionNumber)

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("revision %d of project %s already exists", revision.RevisionNumber, revision.ProjectID)
	}

	if err := os.MkdirAll(rr.dir(revision.ProjectID), 0o755); err != nil {
		return fmt.Errorf("failed to create revisions directory: %w", err)
	}

	data, err := json.MarshalIndent(revision, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode revision: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write revision: %w", err)
	}

	return nil
}

// ListByProject returns every revision of a project ordered by number.
func (rr *RevisionRepository) ListByProject(ctx context.Context, projectID string) ([]*models.Revision, error) {
	if _, err := os.Stat(rr.dir(projectID)); os.IsNotExist(err) {
		return []*models.Revision{}, nil
	}

	entries, err := fs.Glob(os.DirFS(rr.dir(projectID)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list revision files: %w", err)
	}

	revisions := make([]*models.Revision, 0, len(entries))

	for _, entry := range entries {
		number, err := strconv.Atoi(entry[:len(entry)-5])
		if err != nil {
			continue
		}

		revision, err := rr.GetByNumber(ctx, projectID, number)
		if err != nil {
			return nil, err
		}

		revisions = append(revisions, revision)
	}

	sort.Slice(revisions, func(i, j int) bool {
		return revisions[i].RevisionNumber < revisions[j].RevisionNumber
	})

	return revisions, nil
}

// GetByNumber retrieves one revision of a project.
func (rr *RevisionRepository) GetByNumber(_ context.Context, projectID string, revisionNumber int) (*models.Revision, error) {
	data, err := os.ReadFile(rr.path(projectID, revisionNumber))
	if os.IsNotExist(err) {
		return nil, persistence.NewProjectError("GetByNumber", projectID, persistence.ErrRevisionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read revision %d of project %s: %w", revisionNumber, projectID, err)
	}

	var revision models.Revision
	if err := json.Unmarshal(data, &revision); err != nil {
		return nil, fmt.Errorf("failed to decode revision %d of project %s: %w", revisionNumber, projectID, err)
	}

	return &revision, nil
}
