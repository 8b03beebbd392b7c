package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/craftdesk/flowline/pkg/eventbus"
	"github.com/craftdesk/flowline/pkg/events"
	"github.com/craftdesk/flowline/pkg/lock"
	"github.com/craftdesk/flowline/pkg/models"
	"github.com/craftdesk/flowline/pkg/otelhelper"
	"github.com/craftdesk/flowline/pkg/persistence"
	"github.com/craftdesk/flowline/pkg/workflow"
)

// Project drives the lifecycle of projects: creation, approvals, stage
// transitions, revisions and workflow switches. Every mutation runs under the
// project's lock so concurrent writers are serialized.
type Project struct {
	persistence persistence.Persistence
	locker      lock.Locker
	executor    *workflow.Executor
	revisions   *workflow.Manager
	eventBus    eventbus.EventBus
	validate    *validator.Validate
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewProject creates the project service. sink may be nil when stage-entry
// notifications are disabled.
func NewProject(
	p persistence.Persistence,
	locker lock.Locker,
	sink workflow.NotificationSink,
	bus eventbus.EventBus,
	logger *slog.Logger,
) *Project {
	return &Project{
		persistence: p,
		locker:      locker,
		executor:    workflow.NewExecutor(sink, logger),
		revisions:   workflow.NewManager(logger),
		eventBus:    bus,
		validate:    validator.New(),
		logger:      logger.With("module", "project_service"),
		tracer:      otel.Tracer("flowline.project_service"),
	}
}

// CreateProjectRequest carries the fields for a new project.
type CreateProjectRequest struct {
	Name       string `json:"name"        validate:"required,min=1,max=255"`
	WorkflowID string `json:"workflow_id" validate:"required"`
	Owner      string `json:"owner"`
}

// Create starts a project at the workflow's initial stage. The reserved
// workflow ID "active" is resolved to the concrete definition at creation
// time, so later alias changes do not move existing projects.
func (s *Project) Create(ctx context.Context, req CreateProjectRequest) (*models.Project, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, NewValidationError("Create", "INVALID_PROJECT", err.Error(), ErrInvalidRequest)
	}

	def, err := s.persistence.DefinitionRepository().GetByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	project := &models.Project{
		ID:             uuid.New().String(),
		Name:           req.Name,
		WorkflowID:     def.ID,
		CurrentStageID: def.InitialStage,
		Stages: []*models.StageVisit{
			{StageID: def.InitialStage, EnteredAt: now},
		},
		Owner:     req.Owner,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.persistence.ProjectRepository().Save(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.logger.InfoContext(ctx, "Project created",
		"project_id", project.ID, "workflow_id", def.ID, "stage", def.InitialStage)

	return project, nil
}

// List returns all projects ordered by creation time.
func (s *Project) List(ctx context.Context) ([]*models.Project, error) {
	return s.persistence.ProjectRepository().List(ctx)
}

// Fetch retrieves a project by ID.
func (s *Project) Fetch(ctx context.Context, id string) (*models.Project, error) {
	return s.persistence.ProjectRepository().GetByID(ctx, id)
}

// Delete removes a project. Its revisions remain stored.
func (s *Project) Delete(ctx context.Context, id string) error {
	return s.persistence.ProjectRepository().Delete(ctx, id)
}

// Actions resolves the action set permitted for the caller's roles against
// the project's current stage.
func (s *Project) Actions(ctx context.Context, projectID string, callerRoles []string) (models.ActionSet, error) {
	project, err := s.persistence.ProjectRepository().GetByID(ctx, projectID)
	if err != nil {
		return models.ActionSet{}, err
	}

	def, err := s.definitionFor(ctx, project)
	if err != nil {
		return models.ActionSet{}, err
	}

	return workflow.ResolveActions(ctx, def, project, callerRoles, s.persistence.DocumentRepository())
}

// Approve records an approval or rejection against the project's current
// stage.
func (s *Project) Approve(ctx context.Context, projectID, stageID, approverID, role string, status models.ApprovalStatus, comment string) (*models.Project, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "project.approve",
		attribute.String(otelhelper.ProjectIDKey, projectID),
		attribute.String(otelhelper.StageIDKey, stageID))
	defer span.End()

	release, err := s.locker.Acquire(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	project, err := s.persistence.ProjectRepository().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	def, err := s.definitionFor(ctx, project)
	if err != nil {
		return nil, err
	}

	if err := s.executor.Approve(project, def, stageID, approverID, role, status, comment); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := s.persistence.ProjectRepository().Save(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	return project, nil
}

// Move advances the project to toStage, or to the single unambiguous target
// when toStage is empty. Gates are re-evaluated fresh inside the lock.
func (s *Project) Move(ctx context.Context, projectID, toStage string, callerRoles []string) (*models.Project, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "project.move",
		attribute.String(otelhelper.ProjectIDKey, projectID),
		attribute.String(otelhelper.StageIDKey, toStage))
	defer span.End()

	release, err := s.locker.Acquire(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	project, err := s.persistence.ProjectRepository().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	def, err := s.definitionFor(ctx, project)
	if err != nil {
		return nil, err
	}

	if err := s.executor.Move(ctx, project, def, toStage, callerRoles, s.persistence.DocumentRepository()); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := s.persistence.ProjectRepository().Save(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	s.logger.InfoContext(ctx, "Project moved", "project_id", projectID, "stage", project.CurrentStageID)

	return project, nil
}

// Revise snapshots the project's full state and moves it to targetStage. The
// revision is stored before the moved project, so a crash in between leaves a
// valid snapshot and an unmoved project rather than the reverse.
func (s *Project) Revise(ctx context.Context, projectID, reason, targetStage string) (*models.Revision, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "project.revise",
		attribute.String(otelhelper.ProjectIDKey, projectID),
		attribute.String(otelhelper.StageIDKey, targetStage))
	defer span.End()

	release, err := s.locker.Acquire(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	project, err := s.persistence.ProjectRepository().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	def, err := s.definitionFor(ctx, project)
	if err != nil {
		return nil, err
	}

	docs, err := s.persistence.DocumentRepository().ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	revision, err := s.revisions.Revise(project, def, reason, targetStage, docs)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.Int(otelhelper.RevisionNumberKey, revision.RevisionNumber))

	if err := s.persistence.RevisionRepository().Save(ctx, revision); err != nil {
		return nil, fmt.Errorf("failed to save revision: %w", err)
	}

	if err := s.persistence.ProjectRepository().Save(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	s.publish(ctx, projectID, events.ProjectRevised{
		BaseEvent:      s.baseEvent(events.ProjectRevisedEvent, projectID),
		RevisionNumber: revision.RevisionNumber,
		Reason:         reason,
		TargetStageID:  project.CurrentStageID,
	})

	s.logger.InfoContext(ctx, "Project revised",
		"project_id", projectID, "revision", revision.RevisionNumber, "stage", project.CurrentStageID)

	return revision, nil
}

// Restore overwrites the project with the state captured in the numbered
// revision, after storing a safety revision of the pre-restore state.
func (s *Project) Restore(ctx context.Context, projectID string, revisionNumber int) (*models.Project, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "project.restore",
		attribute.String(otelhelper.ProjectIDKey, projectID),
		attribute.Int(otelhelper.RevisionNumberKey, revisionNumber))
	defer span.End()

	release, err := s.locker.Acquire(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	project, err := s.persistence.ProjectRepository().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	target, err := s.persistence.RevisionRepository().GetByNumber(ctx, projectID, revisionNumber)
	if err != nil {
		return nil, err
	}

	def, err := s.definitionFor(ctx, project)
	if err != nil {
		return nil, err
	}

	docs, err := s.persistence.DocumentRepository().ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	safety, err := s.revisions.Restore(project, def, target, docs)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := s.persistence.RevisionRepository().Save(ctx, safety); err != nil {
		return nil, fmt.Errorf("failed to save safety revision: %w", err)
	}

	if err := s.persistence.ProjectRepository().Save(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	s.publish(ctx, projectID, events.ProjectRestored{
		BaseEvent:        s.baseEvent(events.ProjectRestoredEvent, projectID),
		RestoredRevision: revisionNumber,
		SafetyRevision:   safety.RevisionNumber,
	})

	s.logger.InfoContext(ctx, "Project restored",
		"project_id", projectID, "revision", revisionNumber, "safety_revision", safety.RevisionNumber)

	return project, nil
}

// ListRevisions returns every stored revision of a project, oldest first.
func (s *Project) ListRevisions(ctx context.Context, projectID string) ([]*models.Revision, error) {
	if _, err := s.persistence.ProjectRepository().GetByID(ctx, projectID); err != nil {
		return nil, err
	}

	return s.persistence.RevisionRepository().ListByProject(ctx, projectID)
}

// ViewRevision returns a read-only view of the project state captured in the
// numbered revision. Actions resolved against the view are always empty.
func (s *Project) ViewRevision(ctx context.Context, projectID string, revisionNumber int) (*workflow.SnapshotView, error) {
	target, err := s.persistence.RevisionRepository().GetByNumber(ctx, projectID, revisionNumber)
	if err != nil {
		return nil, err
	}

	return s.revisions.ViewSnapshot(target)
}

// SwitchWorkflow rebinds the project to the target workflow definition. The
// project must currently sit on a stage the target also has; its full state
// is snapshotted first and the target's gating subgraph is frozen onto the
// project.
func (s *Project) SwitchWorkflow(ctx context.Context, projectID, targetWorkflowID string) (*models.Project, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "project.switch_workflow",
		attribute.String(otelhelper.ProjectIDKey, projectID),
		attribute.String(otelhelper.WorkflowIDKey, targetWorkflowID))
	defer span.End()

	release, err := s.locker.Acquire(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	project, err := s.persistence.ProjectRepository().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	current, err := s.definitionFor(ctx, project)
	if err != nil {
		return nil, err
	}

	target, err := s.persistence.DefinitionRepository().GetByID(ctx, targetWorkflowID)
	if err != nil {
		return nil, err
	}

	fromWorkflowID := project.WorkflowID

	docs, err := s.persistence.DocumentRepository().ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	revision, err := s.revisions.Switch(project, current, target, docs)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	if err := s.persistence.RevisionRepository().Save(ctx, revision); err != nil {
		return nil, fmt.Errorf("failed to save revision: %w", err)
	}

	if err := s.persistence.ProjectRepository().Save(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	s.publish(ctx, projectID, events.WorkflowSwitched{
		BaseEvent:      s.baseEvent(events.WorkflowSwitchedEvent, projectID),
		FromWorkflowID: fromWorkflowID,
		ToWorkflowID:   target.ID,
		StageID:        project.CurrentStageID,
	})

	s.logger.InfoContext(ctx, "Project switched workflow",
		"project_id", projectID, "from", fromWorkflowID, "to", target.ID)

	return project, nil
}

// RecordDocument registers an uploaded document for the project's current
// stage under a requirement label.
func (s *Project) RecordDocument(ctx context.Context, projectID, label, filename string) error {
	project, err := s.persistence.ProjectRepository().GetByID(ctx, projectID)
	if err != nil {
		return err
	}

	if label == "" || filename == "" {
		return NewValidationError("RecordDocument", "INVALID_DOCUMENT", "label and filename are required", ErrInvalidRequest)
	}

	return s.persistence.DocumentRepository().Record(ctx, projectID, project.CurrentStageID, label, filename)
}

// definitionFor returns the definition governing a project: the frozen
// snapshot when one is attached, the live stored definition otherwise.
func (s *Project) definitionFor(ctx context.Context, project *models.Project) (*models.WorkflowDefinition, error) {
	if project.WorkflowSnapshot != nil {
		return project.WorkflowSnapshot.Definition(), nil
	}

	return s.persistence.DefinitionRepository().GetByID(ctx, project.WorkflowID)
}

func (s *Project) baseEvent(eventType events.EventType, projectID string) events.BaseEvent {
	id := ""
	if s.eventBus != nil {
		id = s.eventBus.GenerateID()
	}

	return events.BaseEvent{
		ID:        id,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ProjectID: projectID,
	}
}

func (s *Project) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	if err := s.eventBus.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
