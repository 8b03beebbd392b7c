package web

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/craftdesk/flowline/pkg/workflow"
)

// RolesHeader carries the caller's roles as a comma-separated list. Identity
// is established upstream; this API only consumes the resolved roles.
const RolesHeader = "X-Roles"

// EditDefinitionRequest applies a batch of graph edits to a definition under
// optimistic concurrency.
type EditDefinitionRequest struct {
	Version   int             `json:"version"    validate:"min=0"`
	Edits     []workflow.Edit `json:"edits"      validate:"required,min=1"`
	UpdatedBy string          `json:"updated_by"`
}

// ActivateDefinitionRequest re-points the "active" alias.
type ActivateDefinitionRequest struct {
	AliasVersion int `json:"alias_version" validate:"min=0"`
}

// AddRoleRequest adds a role name to the vocabulary.
type AddRoleRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// ApproveRequest records a decision on the project's current stage.
type ApproveRequest struct {
	StageID    string `json:"stage_id"    validate:"required"`
	ApproverID string `json:"approver_id" validate:"required"`
	Role       string `json:"role"        validate:"required"`
	Status     string `json:"status"      validate:"required,oneof=APPROVED REJECTED"`
	Comment    string `json:"comment"`
}

// MoveRequest advances the project. An empty ToStage means "the single
// unambiguous target".
type MoveRequest struct {
	ToStage string `json:"to_stage"`
}

// ReviseRequest snapshots the project and moves it back.
type ReviseRequest struct {
	Reason      string `json:"reason"       validate:"required,min=1"`
	TargetStage string `json:"target_stage" validate:"required"`
}

// RestoreRequest overwrites the project from a stored revision.
type RestoreRequest struct {
	RevisionNumber int `json:"revision_number" validate:"min=1"`
}

// SwitchWorkflowRequest rebinds the project to another definition.
type SwitchWorkflowRequest struct {
	WorkflowID string `json:"workflow_id" validate:"required"`
}

// RecordDocumentRequest registers an uploaded document against the current
// stage.
type RecordDocumentRequest struct {
	Label    string `json:"label"    validate:"required"`
	Filename string `json:"filename" validate:"required"`
}

// callerRoles parses the X-Roles header into a role slice, dropping blanks.
func callerRoles(c fiber.Ctx) []string {
	header := c.Get(RolesHeader)
	if header == "" {
		return nil
	}

	parts := strings.Split(header, ",")
	roles := make([]string, 0, len(parts))

	for _, part := range parts {
		role := strings.TrimSpace(part)
		if role != "" {
			roles = append(roles, role)
		}
	}

	return roles
}
