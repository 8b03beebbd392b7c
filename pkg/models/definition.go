// Package models defines the core domain models for the project lifecycle workflow engine.
package models

import (
	"slices"
	"strings"
	"time"
)

// ActiveDefinitionAlias is the reserved definition ID that resolves to the
// currently default workflow definition.
const ActiveDefinitionAlias = "active"

// TransitionRule is a directed, optionally role-restricted edge out of a stage.
// An empty AllowedRoles set means any authorized role may trigger the transition.
type TransitionRule struct {
	To           string   `json:"to"            validate:"required"`
	AllowedRoles []string `json:"allowed_roles"`
}

// FileRule describes a document requirement attached to a stage.
type FileRule struct {
	Label         string   `json:"label"          validate:"required"`
	Required      bool     `json:"required"`
	MinCount      int      `json:"min_count"      validate:"min=0"`
	AcceptedTypes []string `json:"accepted_types"`
}

// Visibility controls which functional components a stage exposes.
// A component is visible to a role if it is listed under Everyone or under
// PerRole for that role.
type Visibility struct {
	Everyone []string            `json:"everyone"`
	PerRole  map[string][]string `json:"per_role"`
}

// WorkflowDefinition is a named, versioned directed graph of stages through
// which projects move. Version is the optimistic-concurrency counter: every
// successful save increments it, and a save carrying a stale version is
// rejected.
type WorkflowDefinition struct {
	ID           string   `json:"id"            validate:"required"`
	Name         string   `json:"name"          validate:"required,min=3"`
	Version      int      `json:"version"       validate:"min=0"`
	Stages       []string `json:"stages"        validate:"required,min=1"`
	InitialStage string   `json:"initial_stage" validate:"required"`

	Transitions       map[string][]TransitionRule `json:"transitions"`
	RequiredApprovals map[string][]string         `json:"required_approvals"`
	FileRequirements  map[string][]FileRule       `json:"file_requirements"`
	Notifications     map[string][]string         `json:"notifications"`
	Visibility        map[string]Visibility       `json:"visibility"`

	// RowData carries per-stage editor rows (quantity tables and the like)
	// owned by dependent screens. The engine only migrates it on stage
	// rename/remove; it never interprets the contents.
	RowData map[string][]map[string]any `json:"row_data,omitempty"`

	// Cross-cutting approver sets consumed by other subsystems, unrelated
	// to per-stage gating.
	EstimationApproverRoles    []string `json:"estimation_approver_roles,omitempty"`
	PurchaseOrderApproverRoles []string `json:"purchase_order_approver_roles,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
}

// NormalizeStageName canonicalizes a stage name: surrounding whitespace is
// trimmed, inner whitespace runs collapse to a single underscore, and the
// result is upper-cased so duplicate checks are case-insensitive.
func NormalizeStageName(name string) string {
	fields := strings.Fields(name)

	return strings.ToUpper(strings.Join(fields, "_"))
}

// HasStage reports whether the normalized stage name is a member of Stages.
func (d *WorkflowDefinition) HasStage(stage string) bool {
	return slices.Contains(d.Stages, NormalizeStageName(stage))
}

// VisibleComponents resolves the component set a role sees at a stage.
// A stage with no visibility entry exposes everything; this default-open
// behavior is load-bearing for definitions created before visibility
// control existed, so the missing-entry case returns (nil, true).
func (d *WorkflowDefinition) VisibleComponents(stage, role string) (components []string, all bool) {
	vis, ok := d.Visibility[NormalizeStageName(stage)]
	if !ok {
		return nil, true
	}

	seen := make(map[string]struct{})

	for _, c := range vis.Everyone {
		if _, dup := seen[c]; !dup {
			seen[c] = struct{}{}
			components = append(components, c)
		}
	}

	for _, c := range vis.PerRole[role] {
		if _, dup := seen[c]; !dup {
			seen[c] = struct{}{}
			components = append(components, c)
		}
	}

	return components, false
}

// Clone returns a deep copy of the definition. Editors work on clones so a
// failed edit never leaves a half-mutated definition observable.
func (d *WorkflowDefinition) Clone() *WorkflowDefinition {
	clone := *d
	clone.Stages = slices.Clone(d.Stages)
	clone.EstimationApproverRoles = slices.Clone(d.EstimationApproverRoles)
	clone.PurchaseOrderApproverRoles = slices.Clone(d.PurchaseOrderApproverRoles)

	clone.Transitions = make(map[string][]TransitionRule, len(d.Transitions))
	for stage, rules := range d.Transitions {
		cloned := make([]TransitionRule, len(rules))
		for i, rule := range rules {
			cloned[i] = TransitionRule{To: rule.To, AllowedRoles: slices.Clone(rule.AllowedRoles)}
		}

		clone.Transitions[stage] = cloned
	}

	clone.RequiredApprovals = cloneRoleSets(d.RequiredApprovals)
	clone.Notifications = cloneRoleSets(d.Notifications)

	clone.FileRequirements = make(map[string][]FileRule, len(d.FileRequirements))
	for stage, rules := range d.FileRequirements {
		cloned := make([]FileRule, len(rules))
		for i, rule := range rules {
			cloned[i] = FileRule{
				Label:         rule.Label,
				Required:      rule.Required,
				MinCount:      rule.MinCount,
				AcceptedTypes: slices.Clone(rule.AcceptedTypes),
			}
		}

		clone.FileRequirements[stage] = cloned
	}

	clone.Visibility = make(map[string]Visibility, len(d.Visibility))
	for stage, vis := range d.Visibility {
		clone.Visibility[stage] = Visibility{
			Everyone: slices.Clone(vis.Everyone),
			PerRole:  cloneRoleSets(vis.PerRole),
		}
	}

	clone.RowData = make(map[string][]map[string]any, len(d.RowData))
	for stage, rows := range d.RowData {
		cloned := make([]map[string]any, len(rows))
		for i, row := range rows {
			rowCopy := make(map[string]any, len(row))
			for k, v := range row {
				rowCopy[k] = v
			}

			cloned[i] = rowCopy
		}

		clone.RowData[stage] = cloned
	}

	return &clone
}

func cloneRoleSets(src map[string][]string) map[string][]string {
	dst := make(map[string][]string, len(src))
	for key, values := range src {
		dst[key] = slices.Clone(values)
	}

	return dst
}

// UnionRoles merges two role sets preserving the order of first appearance.
func UnionRoles(a, b []string) []string {
	merged := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))

	for _, role := range a {
		if _, dup := seen[role]; !dup {
			seen[role] = struct{}{}
			merged = append(merged, role)
		}
	}

	for _, role := range b {
		if _, dup := seen[role]; !dup {
			seen[role] = struct{}{}
			merged = append(merged, role)
		}
	}

	return merged
}
