package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdesk/flowline/pkg/models"
	"github.com/craftdesk/flowline/pkg/persistence"
	"github.com/craftdesk/flowline/pkg/testutil"
	"github.com/craftdesk/flowline/pkg/workflow"
)

func TestDefinitionCreate(t *testing.T) {
	definitions, _, _ := newTestServices(t)

	def, err := definitions.Create(context.Background(), CreateDefinitionRequest{
		Name:      "Fitout Lifecycle",
		Stages:    []string{"concept", "design estimation", "completed"},
		UpdatedBy: "user-1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, def.ID)
	assert.Equal(t, 1, def.Version)
	assert.Equal(t, []string{"CONCEPT", "DESIGN_ESTIMATION", "COMPLETED"}, def.Stages)
	assert.Equal(t, "CONCEPT", def.InitialStage)
}

func TestDefinitionCreateValidation(t *testing.T) {
	definitions, _, _ := newTestServices(t)

	_, err := definitions.Create(context.Background(), CreateDefinitionRequest{Name: "No Stages"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = definitions.Create(context.Background(), CreateDefinitionRequest{
		Name:   "Duplicate Stages",
		Stages: []string{"concept", "Concept"},
	})
	assert.ErrorIs(t, err, workflow.ErrDuplicateStage)
}

func TestDefinitionApplyEdits(t *testing.T) {
	definitions, _, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	edited, err := definitions.ApplyEdits(ctx, def.ID, def.Version, []workflow.Edit{
		{Kind: workflow.EditAddStage, Stage: "on hold"},
		{Kind: workflow.EditAddTransition, From: "DESIGN_ESTIMATION", To: "ON_HOLD", Roles: []string{"admin"}},
	}, "user-1")
	require.NoError(t, err)

	assert.Equal(t, def.Version+1, edited.Version)
	assert.True(t, edited.HasStage("ON_HOLD"))
}

func TestDefinitionApplyEditsVersionConflict(t *testing.T) {
	definitions, _, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	_, err := definitions.ApplyEdits(ctx, def.ID, def.Version, []workflow.Edit{
		{Kind: workflow.EditAddStage, Stage: "on hold"},
	}, "user-1")
	require.NoError(t, err)

	// A second editor still holding the old version loses.
	_, err = definitions.ApplyEdits(ctx, def.ID, def.Version, []workflow.Edit{
		{Kind: workflow.EditAddStage, Stage: "archived"},
	}, "user-2")
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)
}

func TestDefinitionApplyEditsRejectsInvalidResult(t *testing.T) {
	definitions, _, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	_, err := definitions.ApplyEdits(ctx, def.ID, def.Version, []workflow.Edit{
		{Kind: workflow.EditAddTransition, From: "CONCEPT", To: "GHOST", Roles: []string{"admin"}},
	}, "user-1")
	assert.ErrorIs(t, err, workflow.ErrStageNotFound)

	// The stored definition is untouched by the failed edit.
	stored, err := definitions.Fetch(ctx, def.ID)
	require.NoError(t, err)
	assert.Equal(t, def.Version, stored.Version)
}

func TestDefinitionActivateAndAlias(t *testing.T) {
	definitions, _, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	_, err := definitions.ActiveAlias(ctx)
	assert.ErrorIs(t, err, persistence.ErrDefinitionNotFound)

	alias, err := definitions.Activate(ctx, def.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, def.ID, alias.TargetID)
	assert.Equal(t, 1, alias.Version)

	resolved, err := definitions.Fetch(ctx, models.ActiveDefinitionAlias)
	require.NoError(t, err)
	assert.Equal(t, def.ID, resolved.ID)

	// Repointing requires the current alias version.
	_, err = definitions.Activate(ctx, def.ID, 0)
	assert.ErrorIs(t, err, persistence.ErrVersionConflict)
}

func TestDefinitionExportImportRoundTrip(t *testing.T) {
	definitions, _, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	raw, err := definitions.Export(ctx, def.ID)
	require.NoError(t, err)

	imported, err := definitions.Import(ctx, raw, "user-1")
	require.NoError(t, err)

	assert.NotEqual(t, def.ID, imported.ID, "import mints a fresh identity")
	assert.Equal(t, 1, imported.Version)
	assert.Equal(t, def.Stages, imported.Stages)
	assert.Equal(t, def.Transitions, imported.Transitions)
}

func TestDefinitionImportRejectsMalformedDocument(t *testing.T) {
	definitions, _, _ := newTestServices(t)

	_, err := definitions.Import(context.Background(), []byte(`{"name": "broken"}`), "user-1")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = definitions.Import(context.Background(), []byte(`not json`), "user-1")
	assert.Error(t, err)
}

func TestDefinitionDeleteRefusedWhileInUse(t *testing.T) {
	definitions, projects, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	_, err := projects.Create(ctx, CreateProjectRequest{Name: "Office Fitout", WorkflowID: def.ID})
	require.NoError(t, err)

	err = definitions.Delete(ctx, def.ID)
	assert.ErrorIs(t, err, ErrWorkflowInUse)
}

func TestDefinitionDeleteAllowedWhenProjectsRunOnSnapshot(t *testing.T) {
	definitions, projects, p := newTestServices(t)
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
	require.NotNil(t, project.WorkflowSnapshot)

	require.NoError(t, definitions.Delete(ctx, target.ID), "snapshot-frozen projects do not pin the definition")

	_, err = definitions.Fetch(ctx, target.ID)
	assert.ErrorIs(t, err, persistence.ErrDefinitionNotFound)
}

func TestDefinitionDelete(t *testing.T) {
	definitions, _, p := newTestServices(t)
	def := seedDefinition(t, p)
	ctx := context.Background()

	require.NoError(t, definitions.Delete(ctx, def.ID))

	_, err := definitions.Fetch(ctx, def.ID)
	assert.ErrorIs(t, err, persistence.ErrDefinitionNotFound)
}

func TestDefinitionExportIsValidDocument(t *testing.T) {
	definitions, _, p := newTestServices(t)
	def := seedDefinition(t, p)

	raw, err := definitions.Export(context.Background(), def.ID)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.NoError(t, models.ValidateDefinitionDocument(raw))
}
