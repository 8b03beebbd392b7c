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
	"time"

	"github.com/craftdesk/flowline/pkg/models"
	"github.com/craftdesk/flowline/pkg/persistence"
)

const aliasFileName = "_active.json"

// DefinitionRepository stores workflow definitions as JSON files under
// <root>/definitions. A process-wide mutex turns read-modify-write into the
// compare-and-swap the versioned save contract requires; multi-process
// deployments use the postgresql backend instead.
type DefinitionRepository struct {
	root string
	mu   sync.Mutex
}

// NewDefinitionRepository creates a file-backed definition repository.
func NewDefinitionRepository(root string) *DefinitionRepository {
	return &DefinitionRepository{root: root}
}

func (dr *DefinitionRepository) dir() string {
	return filepath.Join(dr.root, "definitions")
}

func (dr *DefinitionRepository) path(id string) string {
	return filepath.Join(dr.dir(), id+".json")
}

// List returns a summary row per stored definition, sorted by ID.
func (dr *DefinitionRepository) List(ctx context.Context) ([]*persistence.DefinitionSummary, error) {
	if _, err := os.Stat(dr.dir()); os.IsNotExist(err) {
		return []*persistence.DefinitionSummary{}, nil
	}

	entries, err := fs.Glob(os.DirFS(dr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list definition files: %w", err)
	}

	summaries := make([]*persistence.DefinitionSummary, 0, len(entries))

	for _, entry := range entries {
		if entry == aliasFileName {
			continue
		}

		id := entry[:len(entry)-5]

		def, err := dr.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load definition %s: %w", id, err)
		}

		summaries = append(summaries, &persistence.DefinitionSummary{
			ID:        def.ID,
			Name:      def.Name,
			Version:   def.Version,
			UpdatedAt: def.UpdatedAt,
			UpdatedBy: def.UpdatedBy,
		})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })

	return summaries, nil
}

// GetByID retrieves a definition. The reserved "active" alias resolves to
// the definition the alias currently points at.
func (dr *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	if id == models.ActiveDefinitionAlias {
		alias, err := dr.ActiveAlias(ctx)
		if err != nil {
			return nil, err
		}

		id = alias.TargetID
	}

	data, err := os.ReadFile(dr.path(id))
	if os.IsNotExist(err) {
		return nil, persistence.NewDefinitionError("GetByID", id, persistence.ErrDefinitionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read definition %s: %w", id, err)
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to decode definition %s: %w", id, err)
	}

	return &def, nil
}

// Save persists a definition under compare-and-swap versioning. The supplied
// definition carries the version the writer read; the stored version must
// still match or the save fails with ErrVersionConflict. On success the
// returned copy carries the incremented version.
func (dr *DefinitionRepository) Save(_ context.Context, def *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	stored, err := dr.readRaw(def.ID)
	if err != nil {
		return nil, err
	}

	if stored != nil && stored.Version != def.Version {
		return nil, &persistence.DefinitionError{
			Op:           "Save",
			DefinitionID: def.ID,
			Version:      def.Version,
			Err:          persistence.ErrVersionConflict,
		}
	}

	saved := def.Clone()
	saved.Version++
	saved.UpdatedAt = time.Now()

	if err := dr.writeFile(dr.path(saved.ID), saved); err != nil {
		return nil, err
	}

	return saved, nil
}

// Delete removes a definition file.
func (dr *DefinitionRepository) Delete(_ context.Context, id string) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	err := os.Remove(dr.path(id))
	if os.IsNotExist(err) {
		return persistence.NewDefinitionError("Delete", id, persistence.ErrDefinitionNotFound)
	}

	return err
}

// ActiveAlias returns the "active" alias record.
func (dr *DefinitionRepository) ActiveAlias(_ context.Context) (*persistence.ActiveAlias, error) {
	data, err := os.ReadFile(filepath.Join(dr.dir(), aliasFileName))
	if os.IsNotExist(err) {
		return nil, persistence.NewDefinitionError("ActiveAlias", models.ActiveDefinitionAlias, persistence.ErrDefinitionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read active alias: %w", err)
	}

	var alias persistence.ActiveAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return nil, fmt.Errorf("failed to decode active alias: %w", err)
	}

	return &alias, nil
}

// SetActive re-points the alias at targetID, compare-and-swapped against the
// alias's own version. The target definition must exist.
func (dr *DefinitionRepository) SetActive(ctx context.Context, targetID string, aliasVersion int) (*persistence.ActiveAlias, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	if _, err := os.Stat(dr.path(targetID)); os.IsNotExist(err) {
		return nil, persistence.NewDefinitionError("SetActive", targetID, persistence.ErrDefinitionNotFound)
	}

	current := &persistence.ActiveAlias{}

	data, err := os.ReadFile(filepath.Join(dr.dir(), aliasFileName))
	switch {
	case os.IsNotExist(err):
		// First activation: alias version starts at zero.
	case err != nil:
		return nil, fmt.Errorf("failed to read active alias: %w", err)
	default:
		if err := json.Unmarshal(data, current); err != nil {
			return nil, fmt.Errorf("failed to decode active alias: %w", err)
		}
	}

	if current.Version != aliasVersion {
		return nil, &persistence.DefinitionError{
			Op:           "SetActive",
			DefinitionID: models.ActiveDefinitionAlias,
			Version:      aliasVersion,
			Err:          persistence.ErrVersionConflict,
		}
	}

	updated := &persistence.ActiveAlias{
		TargetID:  targetID,
		Version:   current.Version + 1,
		UpdatedAt: time.Now(),
	}

	if err := dr.writeFile(filepath.Join(dr.dir(), aliasFileName), updated); err != nil {
		return nil, err
	}

	return updated, nil
}

// readRaw loads a definition without alias resolution, returning nil when
// the file does not exist.
func (dr *DefinitionRepository) readRaw(id string) (*models.WorkflowDefinition, error) {
	data, err := os.ReadFile(dr.path(id))
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read definition %s: %w", id, err)
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to decode definition %s: %w", id, err)
	}

	return &def, nil
}

func (dr *DefinitionRepository) writeFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create definitions directory: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}
