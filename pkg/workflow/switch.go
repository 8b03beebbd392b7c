package workflow

import (
	"fmt"

	"github.com/craftdesk/flowline/pkg/models"
)

// Switch re-points a live project at a different workflow definition. The
// project's current stage must exist in the target graph. The project is
// snapshotted first, then rebound to a frozen copy of the target's gating
// subgraph, so later edits to the shared target definition do not
// retroactively alter this project's in-flight rules until it is switched
// again.
func (m *Manager) Switch(project *models.Project, current, target *models.WorkflowDefinition, docs []models.DocumentRecord) (*models.Revision, error) {
	if !target.HasStage(project.CurrentStageID) {
		return nil, fmt.Errorf("%w: stage %q, workflow %q", ErrStageNotInTargetWorkflow, project.CurrentStageID, target.ID)
	}

	reason := fmt.Sprintf("Automatic snapshot before switching to workflow %q", target.ID)

	safety, err := m.snapshot(project, current, reason, docs)
	if err != nil {
		return nil, err
	}

	now := m.now()
	project.WorkflowID = target.ID
	project.WorkflowSnapshot = models.SnapshotOf(target, now)
	project.UpdatedAt = now

	return safety, nil
}
