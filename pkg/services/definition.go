package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/craftdesk/flowline/pkg/eventbus"
	"github.com/craftdesk/flowline/pkg/events"
	"github.com/craftdesk/flowline/pkg/models"
	"github.com/craftdesk/flowline/pkg/persistence"
	"github.com/craftdesk/flowline/pkg/workflow"
)

// Definition manages the workflow definition store: versioned saves, the
// "active" alias, graph edits, import and export.
type Definition struct {
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewDefinition creates the definition service.
func NewDefinition(p persistence.Persistence, bus eventbus.EventBus, logger *slog.Logger) *Definition {
	return &Definition{
		persistence: p,
		eventBus:    bus,
		validate:    validator.New(),
		logger:      logger.With("module", "definition_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Definition) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns summaries of every stored definition.
func (s *Definition) List(ctx context.Context) ([]*persistence.DefinitionSummary, error) {
	return s.persistence.DefinitionRepository().List(ctx)
}

// Fetch retrieves a definition by ID. The reserved ID "active" resolves
// through the alias.
func (s *Definition) Fetch(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return s.persistence.DefinitionRepository().GetByID(ctx, id)
}

// CreateDefinitionRequest carries the fields for a new definition.
type CreateDefinitionRequest struct {
	Name      string   `json:"name"      validate:"required,min=1,max=255"`
	Stages    []string `json:"stages"    validate:"required,min=1"`
	UpdatedBy string   `json:"updated_by"`
}

// Create builds a new definition with the given stages, the first one
// initial, and persists it at version 1.
func (s *Definition) Create(ctx context.Context, req CreateDefinitionRequest) (*models.WorkflowDefinition, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, NewValidationError("Create", "INVALID_DEFINITION", err.Error(), ErrInvalidRequest)
	}

	def := &models.WorkflowDefinition{
		ID:        uuid.New().String(),
		Name:      req.Name,
		UpdatedBy: req.UpdatedBy,
		UpdatedAt: time.Now().UTC(),
	}

	editor := workflow.NewEditor(def)
	for _, stage := range req.Stages {
		if err := editor.AddStage(stage); err != nil {
			return nil, err
		}
	}

	def = editor.Definition()

	if err := workflow.ValidateDefinition(def); err != nil {
		return nil, err
	}

	saved, err := s.persistence.DefinitionRepository().Save(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("failed to create definition: %w", err)
	}

	s.logger.InfoContext(ctx, "Definition created", "definition_id", saved.ID, "name", saved.Name)

	return saved, nil
}

// ApplyEdits loads a definition, applies the edits in order against a working
// copy, validates the result and saves it under optimistic concurrency with
// the version the caller read. A conflict or validation failure leaves the
// stored definition untouched.
func (s *Definition) ApplyEdits(ctx context.Context, id string, version int, edits []workflow.Edit, updatedBy string) (*models.WorkflowDefinition, error) {
	if len(edits) == 0 {
		return nil, NewValidationError("ApplyEdits", "NO_EDITS", "at least one edit is required", ErrInvalidRequest)
	}

	def, err := s.persistence.DefinitionRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, edit := range edits {
		def, err = workflow.ApplyEdit(def, edit)
		if err != nil {
			return nil, err
		}
	}

	if err := workflow.ValidateDefinition(def); err != nil {
		return nil, err
	}

	def.Version = version
	def.UpdatedBy = updatedBy
	def.UpdatedAt = time.Now().UTC()

	saved, err := s.persistence.DefinitionRepository().Save(ctx, def)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Definition edited",
		"definition_id", saved.ID, "version", saved.Version, "edits", len(edits))

	return saved, nil
}

// ActiveAlias returns the current "active" alias record.
func (s *Definition) ActiveAlias(ctx context.Context) (*persistence.ActiveAlias, error) {
	return s.persistence.DefinitionRepository().ActiveAlias(ctx)
}

// Activate re-points the "active" alias at targetID, compare-and-swapped on
// the alias version the caller read, and announces the activation.
func (s *Definition) Activate(ctx context.Context, targetID string, aliasVersion int) (*persistence.ActiveAlias, error) {
	alias, err := s.persistence.DefinitionRepository().SetActive(ctx, targetID, aliasVersion)
	if err != nil {
		return nil, err
	}

	def, err := s.persistence.DefinitionRepository().GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, targetID, events.DefinitionActivated{
		BaseEvent: events.BaseEvent{
			ID:        s.eventID(),
			Type:      events.DefinitionActivatedEvent,
			Timestamp: time.Now().UTC(),
		},
		DefinitionID: targetID,
		Version:      def.Version,
	})

	s.logger.InfoContext(ctx, "Definition activated", "definition_id", targetID, "alias_version", alias.Version)

	return alias, nil
}

// Import validates a raw definition document against the JSON schema, then
// structurally, then persists it as a new definition with a fresh ID.
func (s *Definition) Import(ctx context.Context, raw []byte, updatedBy string) (*models.WorkflowDefinition, error) {
	if err := models.ValidateDefinitionDocument(raw); err != nil {
		return nil, NewValidationError("Import", "SCHEMA_VIOLATION", err.Error(), ErrInvalidRequest)
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, NewValidationError("Import", "INVALID_JSON", err.Error(), ErrInvalidRequest)
	}

	if err := workflow.ValidateDefinition(&def); err != nil {
		return nil, err
	}

	def.ID = uuid.New().String()
	def.Version = 0
	def.UpdatedBy = updatedBy
	def.UpdatedAt = time.Now().UTC()

	saved, err := s.persistence.DefinitionRepository().Save(ctx, &def)
	if err != nil {
		return nil, fmt.Errorf("failed to import definition: %w", err)
	}

	s.logger.InfoContext(ctx, "Definition imported", "definition_id", saved.ID, "name", saved.Name)

	return saved, nil
}

// Export returns the definition as an indented JSON document suitable for
// re-import.
func (s *Definition) Export(ctx context.Context, id string) ([]byte, error) {
	def, err := s.persistence.DefinitionRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return json.MarshalIndent(def, "", "  ")
}

// Delete removes a definition. The delete is refused while any project still
// reads the definition from the store; projects running on a frozen snapshot
// no longer depend on it and do not block the delete.
func (s *Definition) Delete(ctx context.Context, id string) error {
	def, err := s.persistence.DefinitionRepository().GetByID(ctx, id)
	if err != nil {
		return err
	}

	projects, err := s.persistence.ProjectRepository().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	for _, project := range projects {
		if project.WorkflowID == def.ID && project.WorkflowSnapshot == nil {
			return fmt.Errorf("%w: project %s", ErrWorkflowInUse, project.ID)
		}
	}

	return s.persistence.DefinitionRepository().Delete(ctx, def.ID)
}

func (s *Definition) eventID() string {
	if s.eventBus == nil {
		return ""
	}

	return s.eventBus.GenerateID()
}

func (s *Definition) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
