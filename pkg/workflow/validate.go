package workflow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/craftdesk/flowline/pkg/models"
)

// ValidateDefinition checks the structural invariants a definition must hold
// after every successful edit: a non-empty, duplicate-free stage set; exactly
// one initial stage that is a member of it; and every stage referenced by
// transitions, approvals, file rules, notifications or visibility being a
// member. Acyclicity is deliberately not checked: revise-back flows form
// legal cycles.
func ValidateDefinition(def *models.WorkflowDefinition) error {
	if def == nil {
		return fmt.Errorf("%w: definition is nil", ErrValidation)
	}

	if len(def.Stages) == 0 {
		return fmt.Errorf("%w: stage set is empty", ErrValidation)
	}

	seen := make(map[string]struct{}, len(def.Stages))

	for _, stage := range def.Stages {
		if stage != models.NormalizeStageName(stage) {
			return fmt.Errorf("%w: stage %q is not normalized", ErrValidation, stage)
		}

		if _, dup := seen[stage]; dup {
			return fmt.Errorf("%w: stage %q appears twice", ErrDuplicateStage, stage)
		}

		seen[stage] = struct{}{}
	}

	if !slices.Contains(def.Stages, def.InitialStage) {
		return fmt.Errorf("%w: initial stage %q is not a member of the stage set", ErrValidation, def.InitialStage)
	}

	for from, rules := range def.Transitions {
		if _, ok := seen[from]; !ok {
			return danglingRef("transitions", from)
		}

		for _, rule := range rules {
			if _, ok := seen[rule.To]; !ok {
				return fmt.Errorf("%w: transition %s -> %s targets an unknown stage", ErrValidation, from, rule.To)
			}
		}
	}

	for _, keyed := range []struct {
		section string
		stages  []string
	}{
		{"required_approvals", mapKeys(def.RequiredApprovals)},
		{"notifications", mapKeys(def.Notifications)},
		{"file_requirements", fileRuleKeys(def.FileRequirements)},
		{"visibility", visibilityKeys(def.Visibility)},
	} {
		for _, stage := range keyed.stages {
			if _, ok := seen[stage]; !ok {
				return danglingRef(keyed.section, stage)
			}
		}
	}

	return nil
}

func danglingRef(section, stage string) error {
	return fmt.Errorf("%w: %s references unknown stage %q", ErrValidation, strings.ReplaceAll(section, "_", " "), stage)
}

func mapKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	return keys
}

func fileRuleKeys(m map[string][]models.FileRule) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	return keys
}

func visibilityKeys(m map[string]models.Visibility) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	return keys
}
