package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdesk/flowline/pkg/lock"
	"github.com/craftdesk/flowline/pkg/models"
	"github.com/craftdesk/flowline/pkg/persistence"
	"github.com/craftdesk/flowline/pkg/persistence/file"
	"github.com/craftdesk/flowline/pkg/testutil"
	"github.com/craftdesk/flowline/pkg/workflow"
)

func newTestServices(t *testing.T) (*Definition, *Project, persistence.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	logger := slog.Default()

	definitions := NewDefinition(p, nil, logger)
	projects := NewProject(p, lock.NewMutexLocker(), nil, nil, logger)

	return definitions, projects, p
}

func seedDefinition(t *testing.T, p persistence.Persistence) *models.WorkflowDefinition {
	t.Helper()

	saved, err := p.DefinitionRepository().Save(context.Background(), testutil.CreateTestDefinition())
	require.NoError(t, err)

	return saved
}

func TestProjectCreateStartsAtInitialStage(t *testing.T) {
	_, projects, p := newTestServices(t)
	def := seedDefinition(t, p)

	project, err := projects.Create(context.Background(), CreateProjectRequest{
		Name:       "Office Fitout",
		WorkflowID: def.ID,
		Owner:      "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "CONCEPT", project.CurrentStageID)
	require.Len(t, project.Stages, 1)
	assert.Equal(t, "CONCEPT", project.Stages[0].StageID)
}

func TestProjectCreateResolvesActiveAlias(t *testing.T) {
	_, projects, p := newTestServices(t)
	def := seedDefinition(t, p)

	_, err := p.DefinitionRepository().SetActive(context.Background(), def.ID, 0)
	require.NoError(t, err)

	project, err := projects.Create(context.Background(), CreateProjectRequest{
		Name:       "Office Fitout",
		WorkflowID: models.ActiveDefinitionAlias,
	})
	require.NoError(t, err)

	assert.Equal(t, def.ID, project.WorkflowID, "projects bind to the concrete definition, not the alias")
}

func TestProjectCreateValidation(t *testing.T) {
	_, projects, _ := newTestServices(t)

	_, err := projects.Create(context.Background(), CreateProjectRequest{Name: "No Workflow"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestProjectApproveAndMoveFlow(t *testing.T) {
	_, projects, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	project, err := projects.Create(ctx, CreateProjectRequest{Name: "Office Fitout", WorkflowID: def.ID})
	require.NoError(t, err)

	// CONCEPT has no gates; the designer moves straight on.
	project, err = projects.Move(ctx, project.ID, "DESIGN_ESTIMATION", []string{"designer"})
	require.NoError(t, err)
	assert.Equal(t, "DESIGN_ESTIMATION", project.CurrentStageID)

	// Forward movement is blocked until both approvals land.
	_, err = projects.Move(ctx, project.ID, "PURCHASE_ORDER", []string{"admin"})
	assert.ErrorIs(t, err, workflow.ErrTransitionNotAllowed)

	_, err = projects.Approve(ctx, project.ID, "DESIGN_ESTIMATION", "user-e", "estimator", models.ApprovalStatusApproved, "")
	require.NoError(t, err)
	_, err = projects.Approve(ctx, project.ID, "DESIGN_ESTIMATION", "user-c", "client", models.ApprovalStatusApproved, "")
	require.NoError(t, err)

	project, err = projects.Move(ctx, project.ID, "PURCHASE_ORDER", []string{"admin"})
	require.NoError(t, err)
	assert.Equal(t, "PURCHASE_ORDER", project.CurrentStageID)

	// PURCHASE_ORDER requires a document before COMPLETED.
	_, err = projects.Move(ctx, project.ID, "COMPLETED", []string{"admin"})
	assert.ErrorIs(t, err, workflow.ErrTransitionNotAllowed)

	require.NoError(t, projects.RecordDocument(ctx, project.ID, "purchase order", "po.pdf"))

	project, err = projects.Move(ctx, project.ID, "COMPLETED", []string{"admin"})
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", project.CurrentStageID)
}

func TestProjectApproveWrongStage(t *testing.T) {
	_, projects, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	project, err := projects.Create(ctx, CreateProjectRequest{Name: "Office Fitout", WorkflowID: def.ID})
	require.NoError(t, err)

	_, err = projects.Approve(ctx, project.ID, "DESIGN_ESTIMATION", "user-e", "estimator", models.ApprovalStatusApproved, "")
	assert.ErrorIs(t, err, workflow.ErrWrongStage)
}

func TestProjectActionsEndToEnd(t *testing.T) {
	_, projects, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	project, err := projects.Create(ctx, CreateProjectRequest{Name: "Office Fitout", WorkflowID: def.ID})
	require.NoError(t, err)

	actions, err := projects.Actions(ctx, project.ID, []string{"designer"})
	require.NoError(t, err)

	assert.False(t, actions.CanApprove)
	assert.True(t, actions.FilesOK)
	assert.Equal(t, []string{"DESIGN_ESTIMATION"}, actions.CanMove)
}

func TestProjectReviseRestoreFlow(t *testing.T) {
	_, projects, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	project, err := projects.Create(ctx, CreateProjectRequest{Name: "Office Fitout", WorkflowID: def.ID})
	require.NoError(t, err)

	project, err = projects.Move(ctx, project.ID, "DESIGN_ESTIMATION", []string{"designer"})
	require.NoError(t, err)

	_, err = projects.Approve(ctx, project.ID, "DESIGN_ESTIMATION", "user-e", "estimator", models.ApprovalStatusApproved, "")
	require.NoError(t, err)

	revision, err := projects.Revise(ctx, project.ID, "client changed the brief", "CONCEPT")
	require.NoError(t, err)
	assert.Equal(t, 1, revision.RevisionNumber)

	project, err = projects.Fetch(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "CONCEPT", project.CurrentStageID)

	// Restoring revision 1 brings the approval back and leaves a safety
	// revision behind.
	project, err = projects.Restore(ctx, project.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "DESIGN_ESTIMATION", project.CurrentStageID)
	require.NotNil(t, project.CurrentVisit())
	assert.Len(t, project.CurrentVisit().Approvals, 1)

	revisions, err := projects.ListRevisions(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, revisions, 2)
}

func TestProjectReviseRequiresReason(t *testing.T) {
	_, projects, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	project, err := projects.Create(ctx, CreateProjectRequest{Name: "Office Fitout", WorkflowID: def.ID})
	require.NoError(t, err)

	_, err = projects.Revise(ctx, project.ID, "", "CONCEPT")
	assert.ErrorIs(t, err, workflow.ErrReasonRequired)
}

func TestProjectViewRevisionNotActionable(t *testing.T) {
	_, projects, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	project, err := projects.Create(ctx, CreateProjectRequest{Name: "Office Fitout", WorkflowID: def.ID})
	require.NoError(t, err)

	_, err = projects.Revise(ctx, project.ID, "rework", "CONCEPT")
	require.NoError(t, err)

	view, err := projects.ViewRevision(ctx, project.ID, 1)
	require.NoError(t, err)
	assert.False(t, view.Actionable())

	_, err = projects.ViewRevision(ctx, project.ID, 9)
	assert.ErrorIs(t, err, persistence.ErrRevisionNotFound)
}

func TestProjectReviseCarriesDocumentRecords(t *testing.T) {
	_, projects, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	project, err := projects.Create(ctx, CreateProjectRequest{Name: "Office Fitout", WorkflowID: def.ID})
	require.NoError(t, err)

	require.NoError(t, projects.RecordDocument(ctx, project.ID, "brief", "brief.pdf"))

	_, err = projects.Revise(ctx, project.ID, "rework", "CONCEPT")
	require.NoError(t, err)

	view, err := projects.ViewRevision(ctx, project.ID, 1)
	require.NoError(t, err)
	require.Len(t, view.Documents, 1)
	assert.Equal(t, "brief", view.Documents[0].Label)
	assert.Equal(t, "brief.pdf", view.Documents[0].Filename)
	assert.Equal(t, "CONCEPT", view.Documents[0].StageID)
}

func TestProjectSwitchWorkflow(t *testing.T) {
	_, projects, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	target, err := p.DefinitionRepository().Save(ctx, testutil.CreateTestDefinition(func(d *models.WorkflowDefinition) {
		d.Name = "Renovation Lifecycle"
	}))
	require.NoError(t, err)

	project, err := projects.Create(ctx, CreateProjectRequest{Name: "Office Fitout", WorkflowID: def.ID})
	require.NoError(t, err)

	project, err = projects.SwitchWorkflow(ctx, project.ID, target.ID)
	require.NoError(t, err)

	assert.Equal(t, target.ID, project.WorkflowID)
	assert.NotNil(t, project.WorkflowSnapshot)

	revisions, err := projects.ListRevisions(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, revisions, 1, "switching snapshots the pre-switch state")
}

func TestProjectSwitchStageMissingInTarget(t *testing.T) {
	_, projects, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	target, err := p.DefinitionRepository().Save(ctx, testutil.CreateTestDefinition(func(d *models.WorkflowDefinition) {
		d.Stages = []string{"INTAKE", "DONE"}
		d.InitialStage = "INTAKE"
		d.Transitions = nil
		d.RequiredApprovals = nil
		d.FileRequirements = nil
		d.Notifications = nil
	}))
	require.NoError(t, err)

	project, err := projects.Create(ctx, CreateProjectRequest{Name: "Office Fitout", WorkflowID: def.ID})
	require.NoError(t, err)

	_, err = projects.SwitchWorkflow(ctx, project.ID, target.ID)
	assert.ErrorIs(t, err, workflow.ErrStageNotInTargetWorkflow)
}

func TestProjectConcurrentApprovalsSerialized(t *testing.T) {
	_, projects, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	project, err := projects.Create(ctx, CreateProjectRequest{Name: "Office Fitout", WorkflowID: def.ID})
	require.NoError(t, err)

	_, err = projects.Move(ctx, project.ID, "DESIGN_ESTIMATION", []string{"designer"})
	require.NoError(t, err)

	var wg sync.WaitGroup

	for _, role := range []string{"estimator", "client"} {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := projects.Approve(ctx, project.ID, "DESIGN_ESTIMATION", "user-"+role, role, models.ApprovalStatusApproved, "")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	loaded, err := projects.Fetch(ctx, project.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.CurrentVisit().Approvals, 2, "both decisions survive the race")
}
