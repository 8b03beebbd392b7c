package workflow

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/craftdesk/flowline/pkg/models"
	"github.com/google/uuid"
)

// Manager captures and restores point-in-time revisions of a project.
// Revisions are immutable once created: restore reads one and writes a new
// project state plus a new safety revision of the pre-restore state, never
// touching the stored copy. The manager mutates the project it is handed and
// returns the revision it created; persisting both is the caller's concern.
type Manager struct {
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewManager creates a revision manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Revise snapshots the project's full current state, then moves it to
// targetStage. The snapshot always happens, and happens first: a revise that
// fails after the stage check leaves no revision behind because the snapshot
// is only attached once every precondition passed.
func (m *Manager) Revise(project *models.Project, def *models.WorkflowDefinition, reason, targetStage string, docs []models.DocumentRecord) (*models.Revision, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	target := models.NormalizeStageName(targetStage)
	if !def.HasStage(target) {
		return nil, fmt.Errorf("%w: %q", ErrStageNotFound, target)
	}

	revision, err := m.snapshot(project, def, reason, docs)
	if err != nil {
		return nil, err
	}

	now := m.now()
	project.Stages = append(project.Stages, &models.StageVisit{StageID: target, EnteredAt: now})
	project.CurrentStageID = target
	project.UpdatedAt = now

	return revision, nil
}

// Restore overwrites the project's mutable fields (name, stage, history with
// its approvals and comments, bound workflow snapshot) with the state
// captured in target. A safety revision of the pre-restore state is created
// first, so a restore is itself always reversible. The project's revision
// list and count survive the restore untouched apart from the safety bump.
func (m *Manager) Restore(project *models.Project, def *models.WorkflowDefinition, target *models.Revision, docs []models.DocumentRecord) (*models.Revision, error) {
	if target == nil {
		return nil, ErrRevisionNotFound
	}

	captured, err := target.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to decode revision %d: %w", target.RevisionNumber, err)
	}

	reason := fmt.Sprintf("Pre-restore safety snapshot (restoring revision %d)", target.RevisionNumber)

	safety, err := m.snapshot(project, def, reason, docs)
	if err != nil {
		return nil, err
	}

	project.Name = captured.Name
	project.WorkflowID = captured.WorkflowID
	project.CurrentStageID = captured.CurrentStageID
	project.WorkflowSnapshot = captured.WorkflowSnapshot
	project.Stages = captured.Stages
	project.UpdatedAt = m.now()

	return safety, nil
}

// ViewSnapshot returns a read-only view of the project state captured in
// target. The view is not actionable: the resolver deterministically returns
// the zero ActionSet for it, so no call site needs a "view mode" special case.
func (m *Manager) ViewSnapshot(target *models.Revision) (*SnapshotView, error) {
	if target == nil {
		return nil, ErrRevisionNotFound
	}

	captured, err := target.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("failed to decode revision %d: %w", target.RevisionNumber, err)
	}

	documents, err := target.Documents()
	if err != nil {
		return nil, fmt.Errorf("failed to decode documents of revision %d: %w", target.RevisionNumber, err)
	}

	return &SnapshotView{
		RevisionNumber:    target.RevisionNumber,
		SnapshotDate:      target.SnapshotDate,
		Reason:            target.ReasonForRevision,
		VisibleComponents: target.VisibleComponents,
		Documents:         documents,
		project:           captured,
	}, nil
}

// snapshot serializes the project's full state into a new revision and bumps
// the project's revision counter. Numbers are 1-based and monotonic. The
// document records in force at capture time travel with the revision so a
// replay reproduces the uploaded-file state, not just the stage history.
func (m *Manager) snapshot(project *models.Project, def *models.WorkflowDefinition, reason string, docs []models.DocumentRecord) (*models.Revision, error) {
	snapshotJSON, err := json.Marshal(project)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize project %s: %w", project.ID, err)
	}

	var filesSnapshot json.RawMessage

	if len(docs) > 0 {
		filesSnapshot, err = json.Marshal(docs)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize documents for project %s: %w", project.ID, err)
		}
	}

	project.RevisionCount++

	return &models.Revision{
		ID:                m.newID(),
		ProjectID:         project.ID,
		RevisionNumber:    project.RevisionCount,
		SnapshotDate:      m.now(),
		SnapshotJSON:      snapshotJSON,
		FilesSnapshot:     filesSnapshot,
		StageType:         project.CurrentStageID,
		ReasonForRevision: reason,
		VisibleComponents: frozenVisibility(def, project.CurrentStageID),
	}, nil
}

// frozenVisibility flattens the visibility matrix of a stage into the
// component list a read-only replay renders. nil means every component,
// mirroring the missing-entry default of the live matrix.
func frozenVisibility(def *models.WorkflowDefinition, stage string) []string {
	vis, ok := def.Visibility[stage]
	if !ok {
		return nil
	}

	components := models.UnionRoles(vis.Everyone, nil)
	for _, perRole := range vis.PerRole {
		components = models.UnionRoles(components, perRole)
	}

	return components
}

// SnapshotView is a deserialized, detached copy of a project as it existed
// at capture time. It satisfies models.ProjectView but is never actionable.
type SnapshotView struct {
	RevisionNumber    int                     `json:"revision_number"`
	SnapshotDate      time.Time               `json:"snapshot_date"`
	Reason            string                  `json:"reason"`
	VisibleComponents []string                `json:"visible_components,omitempty"`
	Documents         []models.DocumentRecord `json:"documents,omitempty"`

	project *models.Project
}

// Project returns the captured project state. Mutating the returned value
// affects neither the live project nor the stored revision.
func (v *SnapshotView) Project() *models.Project { return v.project }

// ProjectID implements models.ProjectView.
func (v *SnapshotView) ProjectID() string { return v.project.ID }

// CurrentStage implements models.ProjectView.
func (v *SnapshotView) CurrentStage() string { return v.project.CurrentStageID }

// CurrentVisit implements models.ProjectView.
func (v *SnapshotView) CurrentVisit() *models.StageVisit { return v.project.CurrentVisit() }

// Actionable implements models.ProjectView. Snapshot views never accept
// actions.
func (v *SnapshotView) Actionable() bool { return false }
