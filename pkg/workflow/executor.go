package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/craftdesk/flowline/pkg/models"
)

// NotificationSink receives stage-entry notifications. Implementations are
// fire-and-forget: a sink failure is logged and never rolls back the
// transition that triggered it.
type NotificationSink interface {
	Notify(ctx context.Context, roles []string, projectID, stageID string) error
}

// Executor applies validated transitions to a project: recording approvals
// against the current stage visit and moving the project along permitted
// edges. It mutates the project it is handed; persisting the result is the
// caller's concern, as is serializing concurrent mutations of the same
// project.
type Executor struct {
	sink   NotificationSink
	logger *slog.Logger
	now    func() time.Time
}

// NewExecutor creates a transition executor. sink may be nil when stage-entry
// notifications are not wired (tests, offline tooling).
func NewExecutor(sink NotificationSink, logger *slog.Logger) *Executor {
	return &Executor{
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// Approve records a role-scoped decision against the stage-history entry for
// stageID. The stage must be the project's current stage (ErrWrongStage
// otherwise, which catches stale clients racing a concurrent move). A repeat
// decision by the same role during the same visit is a no-op: the original
// record is kept and no duplicate is appended.
func (e *Executor) Approve(
	project *models.Project,
	def *models.WorkflowDefinition,
	stageID, approverID, role string,
	status models.ApprovalStatus,
	comment string,
) error {
	stage := models.NormalizeStageName(stageID)

	if stage != project.CurrentStageID {
		return fmt.Errorf("%w: got %q, current is %q", ErrWrongStage, stage, project.CurrentStageID)
	}

	if status != models.ApprovalStatusApproved && status != models.ApprovalStatusRejected {
		return fmt.Errorf("%w: unknown approval status %q", ErrValidation, status)
	}

	if !slices.Contains(def.RequiredApprovals[stage], role) {
		return fmt.Errorf("%w: role %q at stage %q", ErrApprovalNotRequired, role, stage)
	}

	visit := project.CurrentVisit()
	if visit == nil {
		visit = &models.StageVisit{StageID: stage, EnteredAt: e.now()}
		project.Stages = append(project.Stages, visit)
	}

	if visit.DecisionForRole(role) != nil {
		return nil
	}

	visit.Approvals = append(visit.Approvals, models.Approval{
		ApproverID: approverID,
		Role:       role,
		Status:     status,
		Comment:    comment,
		DecidedAt:  e.now(),
	})
	project.UpdatedAt = e.now()

	return nil
}

// Move advances the project to toStage. The permitted target set is
// recomputed fresh from the definition, never trusted from a cached
// ActionSet; missing files or pending approvals therefore block the move
// even when the caller's screen still showed it. With an empty toStage the
// single unambiguous target is picked; ErrAmbiguousMove when more than one
// exists. On success a new stage-history entry is appended (approvals of the
// previous stage are left untouched) and stage-entry notifications fire
// best-effort.
func (e *Executor) Move(
	ctx context.Context,
	project *models.Project,
	def *models.WorkflowDefinition,
	toStage string,
	callerRoles []string,
	docs DocumentCounter,
) error {
	actions, err := ResolveActions(ctx, def, project, callerRoles, docs)
	if err != nil {
		return err
	}

	target := models.NormalizeStageName(toStage)

	switch {
	case target == "" && len(actions.CanMove) == 1:
		target = actions.CanMove[0]
	case target == "" && len(actions.CanMove) > 1:
		return fmt.Errorf("%w: %v", ErrAmbiguousMove, actions.CanMove)
	case target == "":
		return fmt.Errorf("%w: no permitted target from stage %q", ErrTransitionNotAllowed, project.CurrentStageID)
	case !slices.Contains(actions.CanMove, target):
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, project.CurrentStageID, target)
	}

	now := e.now()
	project.Stages = append(project.Stages, &models.StageVisit{StageID: target, EnteredAt: now})
	project.CurrentStageID = target
	project.UpdatedAt = now

	e.notifyEntry(ctx, project, def, target)

	return nil
}

// notifyEntry fires stage-entry notifications. Failures are logged only: the
// notification channel is a best-effort side channel and must never fail the
// transition that already happened.
func (e *Executor) notifyEntry(ctx context.Context, project *models.Project, def *models.WorkflowDefinition, stage string) {
	roles := def.Notifications[stage]
	if len(roles) == 0 || e.sink == nil {
		return
	}

	if err := e.sink.Notify(ctx, roles, project.ID, stage); err != nil {
		e.logger.WarnContext(ctx, "Failed to send stage-entry notification",
			"project_id", project.ID, "stage_id", stage, "error", err)
	}
}
