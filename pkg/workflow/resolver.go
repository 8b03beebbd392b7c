package workflow

import (
	"context"
	"fmt"
	"slices"

	"github.com/craftdesk/flowline/pkg/models"
)

// DocumentCounter reports how many documents are uploaded for a project,
// stage and requirement label. Implemented by the document store; the
// resolver only consumes it.
type DocumentCounter interface {
	CountDocuments(ctx context.Context, projectID, stageID, label string) (int, error)
}

// ResolveActions computes the exact action set permitted for the caller's
// roles against the project's current stage under def. The result is always
// computed fresh from the definition: callers must not cache it across
// mutations. A non-actionable view (a point-in-time snapshot) resolves to
// the zero ActionSet regardless of the graph.
func ResolveActions(
	ctx context.Context,
	def *models.WorkflowDefinition,
	view models.ProjectView,
	callerRoles []string,
	docs DocumentCounter,
) (models.ActionSet, error) {
	var actions models.ActionSet

	if !view.Actionable() {
		return actions, nil
	}

	stage := view.CurrentStage()
	visit := view.CurrentVisit()
	required := def.RequiredApprovals[stage]

	var undecided, intersecting []string

	for _, role := range callerRoles {
		if !slices.Contains(required, role) {
			continue
		}

		intersecting = append(intersecting, role)

		if visit == nil || visit.DecisionForRole(role) == nil {
			undecided = append(undecided, role)
		}
	}

	actions.CanApprove = len(required) > 0 && len(undecided) > 0
	actions.CanReject = actions.CanApprove
	actions.AlreadyDecided = len(intersecting) > 0 && len(undecided) == 0

	missing, err := missingFiles(ctx, def, view.ProjectID(), stage, docs)
	if err != nil {
		return models.ActionSet{}, err
	}

	actions.MissingFiles = missing
	actions.FilesOK = len(missing) == 0

	// Moving is blocked outright by missing files or pending approvals,
	// even for a role the transition rules would otherwise allow.
	if actions.FilesOK && approvalsSatisfied(required, visit) {
		actions.CanMove = permittedTargets(def, stage, callerRoles)
	}

	return actions, nil
}

// missingFiles evaluates the mandatory document rules of a stage. A stage
// with no file_requirements entry has no file rules (unlike visibility,
// whose missing entry means "everything visible").
func missingFiles(ctx context.Context, def *models.WorkflowDefinition, projectID, stage string, docs DocumentCounter) ([]string, error) {
	var missing []string

	for _, rule := range def.FileRequirements[stage] {
		if !rule.Required {
			continue
		}

		count := 0

		if docs != nil {
			var err error

			count, err = docs.CountDocuments(ctx, projectID, stage, rule.Label)
			if err != nil {
				return nil, fmt.Errorf("failed to count documents for %q: %w", rule.Label, err)
			}
		}

		if count < rule.MinCount {
			missing = append(missing, fmt.Sprintf("%s (need %d)", rule.Label, rule.MinCount-count))
		}
	}

	return missing, nil
}

// approvalsSatisfied reports whether every required role has recorded an
// APPROVED decision for the given stage visit. An empty requirement set is
// trivially satisfied.
func approvalsSatisfied(required []string, visit *models.StageVisit) bool {
	if len(required) == 0 {
		return true
	}

	if visit == nil {
		return false
	}

	for _, role := range required {
		decision := visit.DecisionForRole(role)
		if decision == nil || decision.Status != models.ApprovalStatusApproved {
			return false
		}
	}

	return true
}

// permittedTargets lists the transition targets out of stage whose role
// restriction is empty or intersects callerRoles. A stage absent from the
// transition map is terminal and yields no targets.
func permittedTargets(def *models.WorkflowDefinition, stage string, callerRoles []string) []string {
	var targets []string

	for _, rule := range def.Transitions[stage] {
		if len(rule.AllowedRoles) == 0 || rolesIntersect(rule.AllowedRoles, callerRoles) {
			targets = append(targets, rule.To)
		}
	}

	return targets
}

func rolesIntersect(a, b []string) bool {
	for _, role := range a {
		if slices.Contains(b, role) {
			return true
		}
	}

	return false
}
