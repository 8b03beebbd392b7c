package workflow

import (
	"fmt"

	"github.com/craftdesk/flowline/pkg/models"
)

// EditKind discriminates the edit operations accepted by ApplyEdit.
type EditKind string

const (
	EditAddStage            EditKind = "add_stage"
	EditRenameStage         EditKind = "rename_stage"
	EditRemoveStage         EditKind = "remove_stage"
	EditAddTransition       EditKind = "add_transition"
	EditRemoveTransition    EditKind = "remove_transition"
	EditSetApprovals        EditKind = "set_approvals"
	EditSetFileRequirements EditKind = "set_file_requirements"
	EditSetVisibility       EditKind = "set_visibility"
	EditSetNotifications    EditKind = "set_notifications"
	EditSetInitialStage     EditKind = "set_initial_stage"
)

// Edit is the wire form of a single graph edit, as submitted by the visual
// editor. Which fields are meaningful depends on Kind.
type Edit struct {
	Kind EditKind `json:"kind" validate:"required"`

	Stage   string `json:"stage,omitempty"`
	NewName string `json:"new_name,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`

	Roles      []string           `json:"roles,omitempty"`
	FileRules  []models.FileRule  `json:"file_rules,omitempty"`
	Visibility *models.Visibility `json:"visibility,omitempty"`
}

// ApplyEdit validates and applies a single edit to def, returning a new
// definition. def itself is never mutated; on error it is returned unchanged.
func ApplyEdit(def *models.WorkflowDefinition, edit Edit) (*models.WorkflowDefinition, error) {
	editor := NewEditor(def)

	var err error

	switch edit.Kind {
	case EditAddStage:
		err = editor.AddStage(edit.Stage)
	case EditRenameStage:
		err = editor.RenameStage(edit.Stage, edit.NewName)
	case EditRemoveStage:
		err = editor.RemoveStage(edit.Stage)
	case EditAddTransition:
		err = editor.AddTransition(edit.From, edit.To, edit.Roles)
	case EditRemoveTransition:
		err = editor.RemoveTransition(edit.From, edit.To)
	case EditSetApprovals:
		err = editor.SetApprovals(edit.Stage, edit.Roles)
	case EditSetFileRequirements:
		err = editor.SetFileRequirements(edit.Stage, edit.FileRules)
	case EditSetVisibility:
		err = editor.SetVisibility(edit.Stage, edit.Visibility)
	case EditSetNotifications:
		err = editor.SetNotifications(edit.Stage, edit.Roles)
	case EditSetInitialStage:
		err = editor.SetInitialStage(edit.Stage)
	default:
		err = fmt.Errorf("%w: unknown edit kind %q", ErrValidation, edit.Kind)
	}

	if err != nil {
		return def, err
	}

	return editor.Definition(), nil
}
