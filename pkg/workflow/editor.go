package workflow

import (
	"fmt"
	"slices"

	"github.com/craftdesk/flowline/pkg/models"
)

// Editor applies structural edits to a workflow definition. It works on a
// private deep copy: an edit either commits as a whole or leaves the working
// definition untouched, so partial application is never observable. Callers
// read the result back with Definition and persist it through the versioned
// definition store.
type Editor struct {
	def *models.WorkflowDefinition
}

// NewEditor starts an editing session over a copy of def.
func NewEditor(def *models.WorkflowDefinition) *Editor {
	return &Editor{def: def.Clone()}
}

// Definition returns a copy of the edited definition.
func (e *Editor) Definition() *models.WorkflowDefinition {
	return e.def.Clone()
}

// AddStage appends a new stage. The name is normalized; collisions are
// rejected case-insensitively.
func (e *Editor) AddStage(name string) error {
	stage := models.NormalizeStageName(name)
	if stage == "" {
		return newEditError("add stage", name, fmt.Errorf("%w: empty stage name", ErrValidation))
	}

	if slices.Contains(e.def.Stages, stage) {
		return newEditError("add stage", stage, ErrDuplicateStage)
	}

	e.def.Stages = append(e.def.Stages, stage)
	if len(e.def.Stages) == 1 {
		e.def.InitialStage = stage
	}

	return nil
}

// RenameStage renames a stage and migrates every reference to it:
// transition endpoints, approval/file/notification/visibility keys and
// dependent editor row data. When the new name already exists the data under
// both names is merged: role sets union, file rules and row data append.
func (e *Editor) RenameStage(oldName, newName string) error {
	oldStage := models.NormalizeStageName(oldName)
	newStage := models.NormalizeStageName(newName)

	if newStage == "" {
		return newEditError("rename stage", oldName, fmt.Errorf("%w: empty stage name", ErrValidation))
	}

	if !slices.Contains(e.def.Stages, oldStage) {
		return newEditError("rename stage", oldStage, ErrStageNotFound)
	}

	if oldStage == newStage {
		return nil
	}

	merging := slices.Contains(e.def.Stages, newStage)

	if merging {
		e.def.Stages = slices.DeleteFunc(e.def.Stages, func(s string) bool { return s == oldStage })
	} else {
		e.def.Stages[slices.Index(e.def.Stages, oldStage)] = newStage
	}

	e.migrateTransitions(oldStage, newStage)
	e.migrateRoleSet(e.def.RequiredApprovals, oldStage, newStage)
	e.migrateRoleSet(e.def.Notifications, oldStage, newStage)
	e.migrateFileRules(oldStage, newStage)
	e.migrateVisibility(oldStage, newStage)
	e.migrateRowData(oldStage, newStage)

	if e.def.InitialStage == oldStage {
		e.def.InitialStage = newStage
	}

	return nil
}

// RemoveStage deletes a stage and atomically prunes every reference to it.
// The initial stage is re-pointed at the first remaining stage when needed.
// Removing the last stage is rejected: the stage set must stay non-empty.
func (e *Editor) RemoveStage(name string) error {
	stage := models.NormalizeStageName(name)
	if !slices.Contains(e.def.Stages, stage) {
		return newEditError("remove stage", stage, ErrStageNotFound)
	}

	if len(e.def.Stages) == 1 {
		return newEditError("remove stage", stage, ErrInitialStageUndeletable)
	}

	e.def.Stages = slices.DeleteFunc(e.def.Stages, func(s string) bool { return s == stage })

	delete(e.def.Transitions, stage)

	for from, rules := range e.def.Transitions {
		e.def.Transitions[from] = slices.DeleteFunc(rules, func(r models.TransitionRule) bool {
			return r.To == stage
		})
	}

	delete(e.def.RequiredApprovals, stage)
	delete(e.def.FileRequirements, stage)
	delete(e.def.Notifications, stage)
	delete(e.def.Visibility, stage)
	delete(e.def.RowData, stage)

	if e.def.InitialStage == stage {
		e.def.InitialStage = e.def.Stages[0]
	}

	return nil
}

// AddTransition adds a directed edge. Adding an edge that already exists
// unions the allowed role sets instead of duplicating the rule. Cycles are
// legal: revise-back flows depend on them.
func (e *Editor) AddTransition(from, to string, allowedRoles []string) error {
	fromStage := models.NormalizeStageName(from)
	toStage := models.NormalizeStageName(to)

	if !slices.Contains(e.def.Stages, fromStage) {
		return newEditError("add transition", fromStage, ErrStageNotFound)
	}

	if !slices.Contains(e.def.Stages, toStage) {
		return newEditError("add transition", toStage, ErrStageNotFound)
	}

	if e.def.Transitions == nil {
		e.def.Transitions = make(map[string][]models.TransitionRule)
	}

	rules := e.def.Transitions[fromStage]
	for i, rule := range rules {
		if rule.To == toStage {
			rules[i].AllowedRoles = models.UnionRoles(rule.AllowedRoles, allowedRoles)

			return nil
		}
	}

	e.def.Transitions[fromStage] = append(rules, models.TransitionRule{
		To:           toStage,
		AllowedRoles: slices.Clone(allowedRoles),
	})

	return nil
}

// RemoveTransition deletes the edge from one stage to another. Removing an
// edge that does not exist is a no-op.
func (e *Editor) RemoveTransition(from, to string) error {
	fromStage := models.NormalizeStageName(from)
	toStage := models.NormalizeStageName(to)

	if !slices.Contains(e.def.Stages, fromStage) {
		return newEditError("remove transition", fromStage, ErrStageNotFound)
	}

	e.def.Transitions[fromStage] = slices.DeleteFunc(e.def.Transitions[fromStage], func(r models.TransitionRule) bool {
		return r.To == toStage
	})

	if len(e.def.Transitions[fromStage]) == 0 {
		delete(e.def.Transitions, fromStage)
	}

	return nil
}

// SetApprovals replaces the required-approval role set of a stage. An empty
// set clears the requirement.
func (e *Editor) SetApprovals(stage string, roles []string) error {
	key, err := e.stageKey("set approvals", stage)
	if err != nil {
		return err
	}

	if len(roles) == 0 {
		delete(e.def.RequiredApprovals, key)

		return nil
	}

	if e.def.RequiredApprovals == nil {
		e.def.RequiredApprovals = make(map[string][]string)
	}

	e.def.RequiredApprovals[key] = models.UnionRoles(roles, nil)

	return nil
}

// SetFileRequirements replaces the document rules of a stage. An empty rule
// list clears the entry, restoring the "no file rules" default.
func (e *Editor) SetFileRequirements(stage string, rules []models.FileRule) error {
	key, err := e.stageKey("set file requirements", stage)
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if rule.Label == "" {
			return newEditError("set file requirements", key, fmt.Errorf("%w: file rule label is required", ErrValidation))
		}

		if rule.MinCount < 0 {
			return newEditError("set file requirements", key, fmt.Errorf("%w: min count must be >= 0", ErrValidation))
		}
	}

	if len(rules) == 0 {
		delete(e.def.FileRequirements, key)

		return nil
	}

	if e.def.FileRequirements == nil {
		e.def.FileRequirements = make(map[string][]models.FileRule)
	}

	e.def.FileRequirements[key] = slices.Clone(rules)

	return nil
}

// SetVisibility replaces the component visibility matrix of a stage.
// Passing nil clears the entry, restoring the legacy all-visible default.
func (e *Editor) SetVisibility(stage string, vis *models.Visibility) error {
	key, err := e.stageKey("set visibility", stage)
	if err != nil {
		return err
	}

	if vis == nil {
		delete(e.def.Visibility, key)

		return nil
	}

	if e.def.Visibility == nil {
		e.def.Visibility = make(map[string]models.Visibility)
	}

	e.def.Visibility[key] = models.Visibility{
		Everyone: slices.Clone(vis.Everyone),
		PerRole:  clonePerRole(vis.PerRole),
	}

	return nil
}

// SetNotifications replaces the stage-entry notification role set.
func (e *Editor) SetNotifications(stage string, roles []string) error {
	key, err := e.stageKey("set notifications", stage)
	if err != nil {
		return err
	}

	if len(roles) == 0 {
		delete(e.def.Notifications, key)

		return nil
	}

	if e.def.Notifications == nil {
		e.def.Notifications = make(map[string][]string)
	}

	e.def.Notifications[key] = models.UnionRoles(roles, nil)

	return nil
}

// SetInitialStage re-points the initial stage.
func (e *Editor) SetInitialStage(stage string) error {
	key, err := e.stageKey("set initial stage", stage)
	if err != nil {
		return err
	}

	e.def.InitialStage = key

	return nil
}

func (e *Editor) stageKey(op, stage string) (string, error) {
	key := models.NormalizeStageName(stage)
	if !slices.Contains(e.def.Stages, key) {
		return "", newEditError(op, key, ErrStageNotFound)
	}

	return key, nil
}

func (e *Editor) migrateTransitions(oldStage, newStage string) {
	if rules, ok := e.def.Transitions[oldStage]; ok {
		delete(e.def.Transitions, oldStage)

		for _, rule := range rules {
			merged := false

			for i, existing := range e.def.Transitions[newStage] {
				if existing.To == rule.To {
					e.def.Transitions[newStage][i].AllowedRoles = models.UnionRoles(existing.AllowedRoles, rule.AllowedRoles)
					merged = true

					break
				}
			}

			if !merged {
				if e.def.Transitions == nil {
					e.def.Transitions = make(map[string][]models.TransitionRule)
				}

				e.def.Transitions[newStage] = append(e.def.Transitions[newStage], rule)
			}
		}
	}

	for from, rules := range e.def.Transitions {
		for i := range rules {
			if rules[i].To == oldStage {
				rules[i].To = newStage
			}
		}

		e.def.Transitions[from] = dedupeTransitionRules(rules)
	}
}

func dedupeTransitionRules(rules []models.TransitionRule) []models.TransitionRule {
	merged := make([]models.TransitionRule, 0, len(rules))

	for _, rule := range rules {
		found := false

		for i, existing := range merged {
			if existing.To == rule.To {
				merged[i].AllowedRoles = models.UnionRoles(existing.AllowedRoles, rule.AllowedRoles)
				found = true

				break
			}
		}

		if !found {
			merged = append(merged, rule)
		}
	}

	return merged
}

func (e *Editor) migrateRoleSet(set map[string][]string, oldStage, newStage string) {
	roles, ok := set[oldStage]
	if !ok {
		return
	}

	delete(set, oldStage)
	set[newStage] = models.UnionRoles(set[newStage], roles)
}

func (e *Editor) migrateFileRules(oldStage, newStage string) {
	rules, ok := e.def.FileRequirements[oldStage]
	if !ok {
		return
	}

	delete(e.def.FileRequirements, oldStage)
	e.def.FileRequirements[newStage] = append(e.def.FileRequirements[newStage], rules...)
}

func (e *Editor) migrateVisibility(oldStage, newStage string) {
	vis, ok := e.def.Visibility[oldStage]
	if !ok {
		return
	}

	delete(e.def.Visibility, oldStage)

	existing, merge := e.def.Visibility[newStage]
	if !merge {
		e.def.Visibility[newStage] = vis

		return
	}

	existing.Everyone = models.UnionRoles(existing.Everyone, vis.Everyone)

	if existing.PerRole == nil {
		existing.PerRole = make(map[string][]string)
	}

	for role, components := range vis.PerRole {
		existing.PerRole[role] = models.UnionRoles(existing.PerRole[role], components)
	}

	e.def.Visibility[newStage] = existing
}

func (e *Editor) migrateRowData(oldStage, newStage string) {
	rows, ok := e.def.RowData[oldStage]
	if !ok {
		return
	}

	delete(e.def.RowData, oldStage)
	e.def.RowData[newStage] = append(e.def.RowData[newStage], rows...)
}

func clonePerRole(src map[string][]string) map[string][]string {
	if src == nil {
		return nil
	}

	dst := make(map[string][]string, len(src))
	for role, components := range src {
		dst[role] = slices.Clone(components)
	}

	return dst
}
