package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/craftdesk/flowline/pkg/models"
	"github.com/craftdesk/flowline/pkg/persistence"
)

// ProjectRepository stores projects as JSON files under <root>/projects.
type ProjectRepository struct {
	root string
	mu   sync.Mutex
}

// NewProjectRepository creates a file-backed project repository.
func NewProjectRepository(root string) *ProjectRepository {
	return &ProjectRepository{root: root}
}

func (pr *ProjectRepository) dir() string {
	return filepath.Join(pr.root, "projects")
}

func (pr *ProjectRepository) path(id string) string {
	return filepath.Join(pr.dir(), id+".json")
}

// List returns every stored project sorted by creation time.
func (pr *ProjectRepository) List(ctx context.Context) ([]*models.Project, error) {
	if _, err := os.Stat(pr.dir()); os.IsNotExist(err) {
		return []*models.Project{}, nil
	}

	entries, err := fs.Glob(os.DirFS(pr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list project files: %w", err)
	}

	projects := make([]*models.Project, 0, len(entries))

	for _, entry := range entries {
		project, err := pr.GetByID(ctx, entry[:len(entry)-5])
		if err != nil {
			return nil, err
		}

		projects = append(projects, project)
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].CreatedAt.Before(projects[j].CreatedAt) })

	return projects, nil
}

// GetByID retrieves a project by its ID.
func (pr *ProjectRepository) GetByID(_ context.Context, id string) (*models.Project, error) {
	data, err := os.ReadFile(pr.path(id))
	if os.IsNotExist(err) {
		return nil, persistence.NewProjectError("GetByID", id, persistence.ErrProjectNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read project %s: %w", id, err)
	}

	var project models.Project
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to decode project %s: %w", id, err)
	}

	return &project, nil
}

// Save persists a project, replacing any previous state.
func (pr *ProjectRepository) Save(_ context.Context, project *models.Project) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	if err := os.MkdirAll(pr.dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create projects directory: %w", err)
	}

	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode project %s: %w", project.ID, err)
	}

	if err := os.WriteFile(pr.path(project.ID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write project %s: %w", project.ID, err)
	}

	return nil
}

// Delete removes a project file. The project's revisions are kept: they are
// immutable audit history.
func (pr *ProjectRepository) Delete(_ context.Context, id string) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	err := os.Remove(pr.path(id))
	if os.IsNotExist(err) {
		return persistence.NewProjectError("Delete", id, persistence.ErrProjectNotFound)
	}

	return err
}
