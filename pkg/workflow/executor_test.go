package workflow

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftdesk/flowline/pkg/models"
	"github.com/craftdesk/flowline/pkg/testutil"
)

type recordingSink struct {
	notified [][]string
	fail     bool
}

func (r *recordingSink) Notify(_ context.Context, roles []string, _, _ string) error {
	if r.fail {
		return errors.New("broker unavailable")
	}

	r.notified = append(r.notified, roles)

	return nil
}

func TestApproveRecordsDecision(t *testing.T) {
	def := testutil.CreateTestDefinition()
	project := testutil.CreateTestProject(def, testutil.AtStage("DESIGN_ESTIMATION"))
	executor := NewExecutor(nil, slog.Default())

	err := executor.Approve(project, def, "DESIGN_ESTIMATION", "user-1", "estimator", models.ApprovalStatusApproved, "looks good")
	require.NoError(t, err)

	visit := project.CurrentVisit()
	require.Len(t, visit.Approvals, 1)
	assert.Equal(t, "estimator", visit.Approvals[0].Role)
	assert.Equal(t, models.ApprovalStatusApproved, visit.Approvals[0].Status)
	assert.Equal(t, "looks good", visit.Approvals[0].Comment)
}

func TestApproveWrongStage(t *testing.T) {
	def := testutil.CreateTestDefinition()
	project := testutil.CreateTestProject(def, testutil.AtStage("DESIGN_ESTIMATION"))
	executor := NewExecutor(nil, slog.Default())

	err := executor.Approve(project, def, "CONCEPT", "user-1", "estimator", models.ApprovalStatusApproved, "")
	assert.ErrorIs(t, err, ErrWrongStage)
	assert.Empty(t, project.CurrentVisit().Approvals)
}

func TestApproveNormalizesStageName(t *testing.T) {
	def := testutil.CreateTestDefinition()
	project := testutil.CreateTestProject(def, testutil.AtStage("DESIGN_ESTIMATION"))
	executor := NewExecutor(nil, slog.Default())

	err := executor.Approve(project, def, "design estimation", "user-1", "estimator", models.ApprovalStatusApproved, "")
	require.NoError(t, err)
	assert.Len(t, project.CurrentVisit().Approvals, 1)
}

func TestApproveRoleNotRequired(t *testing.T) {
	def := testutil.CreateTestDefinition()
	project := testutil.CreateTestProject(def, testutil.AtStage("DESIGN_ESTIMATION"))
	executor := NewExecutor(nil, slog.Default())

	err := executor.Approve(project, def, "DESIGN_ESTIMATION", "user-1", "designer", models.ApprovalStatusApproved, "")
	assert.ErrorIs(t, err, ErrApprovalNotRequired)
}

func TestApproveRepeatDecisionIsNoOp(t *testing.T) {
	def := testutil.CreateTestDefinition()
	project := testutil.CreateTestProject(def, testutil.AtStage("DESIGN_ESTIMATION"))
	executor := NewExecutor(nil, slog.Default())

	require.NoError(t, executor.Approve(project, def, "DESIGN_ESTIMATION", "user-1", "client", models.ApprovalStatusRejected, "no"))
	require.NoError(t, executor.Approve(project, def, "DESIGN_ESTIMATION", "user-2", "client", models.ApprovalStatusApproved, "yes"))

	visit := project.CurrentVisit()
	require.Len(t, visit.Approvals, 1)
	assert.Equal(t, models.ApprovalStatusRejected, visit.Approvals[0].Status, "the first decision stands")
}

func TestApproveInvalidStatus(t *testing.T) {
	def := testutil.CreateTestDefinition()
	project := testutil.CreateTestProject(def, testutil.AtStage("DESIGN_ESTIMATION"))
	executor := NewExecutor(nil, slog.Default())

	err := executor.Approve(project, def, "DESIGN_ESTIMATION", "user-1", "estimator", "MAYBE", "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMoveExplicitTarget(t *testing.T) {
	def := testutil.CreateTestDefinition()
	project := testutil.CreateTestProject(def)
	executor := NewExecutor(nil, slog.Default())

	err := executor.Move(context.Background(), project, def, "DESIGN_ESTIMATION", []string{"designer"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "DESIGN_ESTIMATION", project.CurrentStageID)
	require.Len(t, project.Stages, 2)
	assert.Equal(t, "DESIGN_ESTIMATION", project.Stages[1].StageID)
	assert.Empty(t, project.Stages[0].Approvals, "earlier visits stay untouched")
}

func TestMoveImplicitSingleTarget(t *testing.T) {
	def := testutil.CreateTestDefinition()
	project := testutil.CreateTestProject(def)
	executor := NewExecutor(nil, slog.Default())

	err := executor.Move(context.Background(), project, def, "", []string{"designer"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "DESIGN_ESTIMATION", project.CurrentStageID)
}

func TestMoveAmbiguousWithoutTarget(t *testing.T) {
	def := testutil.CreateTestDefinition()
	project := testutil.CreateTestProject(def,
		testutil.AtStage("DESIGN_ESTIMATION"),
		testutil.WithApproval("estimator", models.ApprovalStatusApproved),
		testutil.WithApproval("client", models.ApprovalStatusApproved),
	)
	executor := NewExecutor(nil, slog.Default())

	err := executor.Move(context.Background(), project, def, "", []string{"admin", "designer"}, nil)
	assert.ErrorIs(t, err, ErrAmbiguousMove)
	assert.Equal(t, "DESIGN_ESTIMATION", project.CurrentStageID)
}

func TestMoveNotAllowedForRole(t *testing.T) {
	def := testutil.CreateTestDefinition()
	project := testutil.CreateTestProject(def)
	executor := NewExecutor(nil, slog.Default())

	err := executor.Move(context.Background(), project, def, "DESIGN_ESTIMATION", []string{"client"}, nil)
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
}

func TestMoveBlockedByPendingApprovals(t *testing.T) {
	def := testutil.CreateTestDefinition()
	project := testutil.CreateTestProject(def, testutil.AtStage("DESIGN_ESTIMATION"))
	executor := NewExecutor(nil, slog.Default())

	err := executor.Move(context.Background(), project, def, "PURCHASE_ORDER", []string{"admin"}, nil)
	assert.ErrorIs(t, err, ErrTransitionNotAllowed)
}

func TestMoveNotifiesConfiguredRoles(t *testing.T) {
	def := testutil.CreateTestDefinition()
	project := testutil.CreateTestProject(def, testutil.AtStage("PURCHASE_ORDER"))
	sink := &recordingSink{}
	executor := NewExecutor(sink, slog.Default())

	docs := &stubCounter{counts: map[string]int{"purchase order": 1}}

	err := executor.Move(context.Background(), project, def, "COMPLETED", []string{"admin"}, docs)
	require.NoError(t, err)

	require.Len(t, sink.notified, 1)
	assert.Equal(t, []string{"client"}, sink.notified[0])
}

func TestMoveSurvivesNotificationFailure(t *testing.T) {
	def := testutil.CreateTestDefinition()
	project := testutil.CreateTestProject(def, testutil.AtStage("PURCHASE_ORDER"))
	executor := NewExecutor(&recordingSink{fail: true}, slog.Default())

	docs := &stubCounter{counts: map[string]int{"purchase order": 1}}

	err := executor.Move(context.Background(), project, def, "COMPLETED", []string{"admin"}, docs)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", project.CurrentStageID)
}
