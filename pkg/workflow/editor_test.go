package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdesk/flowline/pkg/models"
	"github.com/craftdesk/flowline/pkg/testutil"
)

func TestAddStageNormalizesName(t *testing.T) {
	editor := NewEditor(&models.WorkflowDefinition{})

	require.NoError(t, editor.AddStage("  design   estimation "))

	def := editor.Definition()
	assert.Equal(t, []string{"DESIGN_ESTIMATION"}, def.Stages)
	assert.Equal(t, "DESIGN_ESTIMATION", def.InitialStage, "first stage becomes initial")
}

func TestAddStageDuplicate(t *testing.T) {
	editor := NewEditor(testutil.CreateTestDefinition())

	err := editor.AddStage("concept")
	assert.ErrorIs(t, err, ErrDuplicateStage)
}

func TestAddStageEmptyName(t *testing.T) {
	editor := NewEditor(&models.WorkflowDefinition{})

	err := editor.AddStage("   ")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEditorLeavesSourceUntouched(t *testing.T) {
	def := testutil.CreateTestDefinition()
	editor := NewEditor(def)

	require.NoError(t, editor.AddStage("EXTRA"))
	assert.NotContains(t, def.Stages, "EXTRA")
}

func TestRenameStageMigratesReferences(t *testing.T) {
	editor := NewEditor(testutil.CreateTestDefinition())

	require.NoError(t, editor.RenameStage("DESIGN_ESTIMATION", "ESTIMATION"))

	def := editor.Definition()
	assert.NotContains(t, def.Stages, "DESIGN_ESTIMATION")
	assert.Contains(t, def.Stages, "ESTIMATION")

	// Inbound edge re-targeted.
	assert.Equal(t, "ESTIMATION", def.Transitions["CONCEPT"][0].To)
	// Outbound edges moved under the new key.
	assert.Empty(t, def.Transitions["DESIGN_ESTIMATION"])
	assert.Len(t, def.Transitions["ESTIMATION"], 2)
	// Approval requirements follow the stage.
	assert.Equal(t, []string{"estimator", "client"}, def.RequiredApprovals["ESTIMATION"])
	assert.Empty(t, def.RequiredApprovals["DESIGN_ESTIMATION"])
}

func TestRenameStageMergeUnionsRoleSets(t *testing.T) {
	def := testutil.CreateTestDefinition(func(d *models.WorkflowDefinition) {
		d.RequiredApprovals["PURCHASE_ORDER"] = []string{"buyer"}
	})
	editor := NewEditor(def)

	require.NoError(t, editor.RenameStage("DESIGN_ESTIMATION", "PURCHASE_ORDER"))

	merged := editor.Definition()
	assert.NotContains(t, merged.Stages, "DESIGN_ESTIMATION")
	assert.ElementsMatch(t, []string{"buyer", "estimator", "client"}, merged.RequiredApprovals["PURCHASE_ORDER"])
	// File rules of the surviving stage are kept.
	assert.Len(t, merged.FileRequirements["PURCHASE_ORDER"], 1)
}

func TestRenameStageSelfIsNoOp(t *testing.T) {
	editor := NewEditor(testutil.CreateTestDefinition())

	require.NoError(t, editor.RenameStage("CONCEPT", "concept"))
	assert.Contains(t, editor.Definition().Stages, "CONCEPT")
}

func TestRenameInitialStageRepointsInitial(t *testing.T) {
	editor := NewEditor(testutil.CreateTestDefinition())

	require.NoError(t, editor.RenameStage("CONCEPT", "INTAKE"))
	assert.Equal(t, "INTAKE", editor.Definition().InitialStage)
}

func TestRemoveStagePrunesReferences(t *testing.T) {
	editor := NewEditor(testutil.CreateTestDefinition())

	require.NoError(t, editor.RemoveStage("PURCHASE_ORDER"))

	def := editor.Definition()
	assert.NotContains(t, def.Stages, "PURCHASE_ORDER")
	assert.Empty(t, def.Transitions["PURCHASE_ORDER"])
	assert.Empty(t, def.FileRequirements["PURCHASE_ORDER"])

	// The DESIGN_ESTIMATION -> PURCHASE_ORDER edge is gone, the back edge
	// to CONCEPT survives.
	targets := def.Transitions["DESIGN_ESTIMATION"]
	require.Len(t, targets, 1)
	assert.Equal(t, "CONCEPT", targets[0].To)
}

func TestRemoveInitialStagePromotesNext(t *testing.T) {
	editor := NewEditor(testutil.CreateTestDefinition())

	require.NoError(t, editor.RemoveStage("CONCEPT"))
	assert.Equal(t, "DESIGN_ESTIMATION", editor.Definition().InitialStage)
}

func TestRemoveLastStageRejected(t *testing.T) {
	editor := NewEditor(&models.WorkflowDefinition{})
	require.NoError(t, editor.AddStage("ONLY"))

	err := editor.RemoveStage("ONLY")
	assert.ErrorIs(t, err, ErrInitialStageUndeletable)
}

func TestRemoveUnknownStage(t *testing.T) {
	editor := NewEditor(testutil.CreateTestDefinition())

	err := editor.RemoveStage("NOPE")
	assert.ErrorIs(t, err, ErrStageNotFound)
}

func TestAddTransitionExistingEdgeUnionsRoles(t *testing.T) {
	editor := NewEditor(testutil.CreateTestDefinition())

	require.NoError(t, editor.AddTransition("CONCEPT", "DESIGN_ESTIMATION", []string{"manager"}))

	rules := editor.Definition().Transitions["CONCEPT"]
	require.Len(t, rules, 1)
	assert.ElementsMatch(t, []string{"designer", "admin", "manager"}, rules[0].AllowedRoles)
}

func TestAddTransitionCycleAllowed(t *testing.T) {
	editor := NewEditor(testutil.CreateTestDefinition())

	require.NoError(t, editor.AddTransition("COMPLETED", "CONCEPT", []string{"admin"}))

	rules := editor.Definition().Transitions["COMPLETED"]
	require.Len(t, rules, 1)
	assert.Equal(t, "CONCEPT", rules[0].To)
}

func TestAddTransitionUnknownEndpoint(t *testing.T) {
	editor := NewEditor(testutil.CreateTestDefinition())

	assert.ErrorIs(t, editor.AddTransition("CONCEPT", "NOPE", nil), ErrStageNotFound)
	assert.ErrorIs(t, editor.AddTransition("NOPE", "CONCEPT", nil), ErrStageNotFound)
}

func TestRemoveTransitionIdempotent(t *testing.T) {
	editor := NewEditor(testutil.CreateTestDefinition())

	require.NoError(t, editor.RemoveTransition("CONCEPT", "DESIGN_ESTIMATION"))
	require.NoError(t, editor.RemoveTransition("CONCEPT", "DESIGN_ESTIMATION"))

	assert.Empty(t, editor.Definition().Transitions["CONCEPT"])
}

func TestSetApprovalsEmptyClearsEntry(t *testing.T) {
	editor := NewEditor(testutil.CreateTestDefinition())

	require.NoError(t, editor.SetApprovals("DESIGN_ESTIMATION", nil))

	_, ok := editor.Definition().RequiredApprovals["DESIGN_ESTIMATION"]
	assert.False(t, ok)
}

func TestSetFileRequirementsValidation(t *testing.T) {
	editor := NewEditor(testutil.CreateTestDefinition())

	err := editor.SetFileRequirements("CONCEPT", []models.FileRule{{Label: ""}})
	assert.ErrorIs(t, err, ErrValidation)

	err = editor.SetFileRequirements("CONCEPT", []models.FileRule{{Label: "brief", MinCount: -1}})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSetVisibilityNilClearsEntry(t *testing.T) {
	def := testutil.CreateTestDefinition(func(d *models.WorkflowDefinition) {
		d.Visibility = map[string]models.Visibility{
			"CONCEPT": {Everyone: []string{"brief"}},
		}
	})
	editor := NewEditor(def)

	require.NoError(t, editor.SetVisibility("CONCEPT", nil))

	_, ok := editor.Definition().Visibility["CONCEPT"]
	assert.False(t, ok)
}

func TestSetInitialStage(t *testing.T) {
	editor := NewEditor(testutil.CreateTestDefinition())

	require.NoError(t, editor.SetInitialStage("DESIGN_ESTIMATION"))
	assert.Equal(t, "DESIGN_ESTIMATION", editor.Definition().InitialStage)

	assert.ErrorIs(t, editor.SetInitialStage("NOPE"), ErrStageNotFound)
}

func TestApplyEditDispatch(t *testing.T) {
	def := testutil.CreateTestDefinition()

	edited, err := ApplyEdit(def, Edit{Kind: EditAddStage, Stage: "ON_HOLD"})
	require.NoError(t, err)
	assert.Contains(t, edited.Stages, "ON_HOLD")
	assert.NotContains(t, def.Stages, "ON_HOLD")

	edited, err = ApplyEdit(edited, Edit{Kind: EditAddTransition, From: "CONCEPT", To: "ON_HOLD", Roles: []string{"admin"}})
	require.NoError(t, err)
	assert.Len(t, edited.Transitions["CONCEPT"], 2)

	_, err = ApplyEdit(def, Edit{Kind: "unknown_kind"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidateDefinition(t *testing.T) {
	assert.NoError(t, ValidateDefinition(testutil.CreateTestDefinition()))

	bad := testutil.CreateTestDefinition(func(d *models.WorkflowDefinition) {
		d.Transitions["CONCEPT"] = append(d.Transitions["CONCEPT"], models.TransitionRule{To: "GHOST"})
	})
	assert.ErrorIs(t, ValidateDefinition(bad), ErrValidation)

	noInitial := testutil.CreateTestDefinition(func(d *models.WorkflowDefinition) {
		d.InitialStage = "GHOST"
	})
	assert.ErrorIs(t, ValidateDefinition(noInitial), ErrValidation)

	assert.ErrorIs(t, ValidateDefinition(&models.WorkflowDefinition{Name: "empty"}), ErrValidation)
}
