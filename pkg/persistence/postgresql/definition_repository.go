package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/craftdesk/flowline/pkg/models"
	"github.com/craftdesk/flowline/pkg/persistence"
)

// DefinitionRepository stores definitions as JSONB documents. The version
// compare-and-swap runs inside a single UPDATE so two racing writers never
// both succeed.
type DefinitionRepository struct {
	db *sql.DB
}

// List returns a summary row per stored definition.
func (dr *DefinitionRepository) List(ctx context.Context) ([]*persistence.DefinitionSummary, error) {
	rows, err := dr.db.QueryContext(ctx, `
		SELECT id, name, version, updated_at, updated_by
		FROM workflow_definitions
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	var summaries []*persistence.DefinitionSummary

	for rows.Next() {
		summary := &persistence.DefinitionSummary{}

		err := rows.Scan(&summary.ID, &summary.Name, &summary.Version, &summary.UpdatedAt, &summary.UpdatedBy)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition summary: %w", err)
		}

		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

// GetByID retrieves a definition, resolving the reserved "active" alias.
func (dr *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	if id == models.ActiveDefinitionAlias {
		alias, err := dr.ActiveAlias(ctx)
		if err != nil {
			return nil, err
		}

		id = alias.TargetID
	}

	var document []byte

	err := dr.db.QueryRowContext(ctx,
		`SELECT document FROM workflow_definitions WHERE id = $1`, id).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewDefinitionError("GetByID", id, persistence.ErrDefinitionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get definition %s: %w", id, err)
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal(document, &def); err != nil {
		return nil, fmt.Errorf("failed to decode definition %s: %w", id, err)
	}

	return &def, nil
}

// Save persists a definition under compare-and-swap versioning.
func (dr *DefinitionRepository) Save(ctx context.Context, def *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	saved := def.Clone()
	saved.Version = def.Version + 1
	saved.UpdatedAt = time.Now()

	document, err := json.Marshal(saved)
	if err != nil {
		return nil, fmt.Errorf("failed to encode definition %s: %w", saved.ID, err)
	}

	result, err := dr.db.ExecContext(ctx, `
		INSERT INTO workflow_definitions (id, version, name, document, updated_at, updated_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET version = EXCLUDED.version,
		    name = EXCLUDED.name,
		    document = EXCLUDED.document,
		    updated_at = EXCLUDED.updated_at,
		    updated_by = EXCLUDED.updated_by
		WHERE workflow_definitions.version = $7`,
		saved.ID, saved.Version, saved.Name, document, saved.UpdatedAt, saved.UpdatedBy, def.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to save definition %s: %w", saved.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check save result for definition %s: %w", saved.ID, err)
	}

	if affected == 0 {
		return nil, &persistence.DefinitionError{
			Op:           "Save",
			DefinitionID: saved.ID,
			Version:      def.Version,
			Err:          persistence.ErrVersionConflict,
		}
	}

	return saved, nil
}

// Delete removes a definition row.
func (dr *DefinitionRepository) Delete(ctx context.Context, id string) error {
	result, err := dr.db.ExecContext(ctx, `DELETE FROM workflow_definitions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete definition %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result for definition %s: %w", id, err)
	}

	if affected == 0 {
		return persistence.NewDefinitionError("Delete", id, persistence.ErrDefinitionNotFound)
	}

	return nil
}

// ActiveAlias returns the "active" alias record.
func (dr *DefinitionRepository) ActiveAlias(ctx context.Context) (*persistence.ActiveAlias, error) {
	alias := &persistence.ActiveAlias{}

	err := dr.db.QueryRowContext(ctx,
		`SELECT target_id, version, updated_at FROM workflow_active_alias`).
		Scan(&alias.TargetID, &alias.Version, &alias.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewDefinitionError("ActiveAlias", models.ActiveDefinitionAlias, persistence.ErrDefinitionNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get active alias: %w", err)
	}

	return alias, nil
}

// SetActive re-points the alias, compare-and-swapped on the alias version.
func (dr *DefinitionRepository) SetActive(ctx context.Context, targetID string, aliasVersion int) (*persistence.ActiveAlias, error) {
	var exists bool

	err := dr.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM workflow_definitions WHERE id = $1)`, targetID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check definition %s: %w", targetID, err)
	}

	if !exists {
		return nil, persistence.NewDefinitionError("SetActive", targetID, persistence.ErrDefinitionNotFound)
	}

	updated := &persistence.ActiveAlias{
		TargetID:  targetID,
		Version:   aliasVersion + 1,
		UpdatedAt: time.Now(),
	}

	result, err := dr.db.ExecContext(ctx, `
		INSERT INTO workflow_active_alias (singleton, target_id, version, updated_at)
		VALUES (TRUE, $1, $2, $3)
		ON CONFLICT (singleton) DO UPDATE
		SET target_id = EXCLUDED.target_id,
		    version = EXCLUDED.version,
		    updated_at = EXCLUDED.updated_at
		WHERE workflow_active_alias.version = $4`,
		targetID, updated.Version, updated.UpdatedAt, aliasVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to set active alias: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check active alias result: %w", err)
	}

	if affected == 0 {
		return nil, &persistence.DefinitionError{
			Op:           "SetActive",
			DefinitionID: models.ActiveDefinitionAlias,
			Version:      aliasVersion,
			Err:          persistence.ErrVersionConflict,
		}
	}

	return updated, nil
}
