// Package testutil provides test data builders shared across packages.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/craftdesk/flowline/pkg/models"
)

// CreateTestDefinition builds a small but representative lifecycle graph:
//
//	CONCEPT -> DESIGN_ESTIMATION -> PURCHASE_ORDER -> COMPLETED
//
// with approvals on DESIGN_ESTIMATION, file requirements on PURCHASE_ORDER
// and a notification on COMPLETED. Overrides mutate the built definition.
func CreateTestDefinition(overrides ...func(*models.WorkflowDefinition)) *models.WorkflowDefinition {
	def := &models.WorkflowDefinition{
		ID:           uuid.New().String(),
		Name:         "Test Lifecycle",
		Stages:       []string{"CONCEPT", "DESIGN_ESTIMATION", "PURCHASE_ORDER", "COMPLETED"},
		InitialStage: "CONCEPT",
		Transitions: map[string][]models.TransitionRule{
			"CONCEPT": {
				{To: "DESIGN_ESTIMATION", AllowedRoles: []string{"designer", "admin"}},
			},
			"DESIGN_ESTIMATION": {
				{To: "PURCHASE_ORDER", AllowedRoles: []string{"admin"}},
				{To: "CONCEPT", AllowedRoles: []string{"designer", "admin"}},
			},
			"PURCHASE_ORDER": {
				{To: "COMPLETED", AllowedRoles: []string{"admin"}},
			},
		},
		RequiredApprovals: map[string][]string{
			"DESIGN_ESTIMATION": {"estimator", "client"},
		},
		FileRequirements: map[string][]models.FileRule{
			"PURCHASE_ORDER": {
				{Label: "purchase order", Required: true, MinCount: 1, AcceptedTypes: []string{"pdf"}},
			},
		},
		Notifications: map[string][]string{
			"COMPLETED": {"client"},
		},
		Visibility: map[string]models.Visibility{},
		UpdatedAt: time.Now().UTC(),
	}

	for _, override := range overrides {
		override(def)
	}

	return def
}

// CreateTestProject builds a project sitting at def's initial stage.
func CreateTestProject(def *models.WorkflowDefinition, overrides ...func(*models.Project)) *models.Project {
	now := time.Now().UTC()
	project := &models.Project{
		ID:             uuid.New().String(),
		Name:           "Test Project",
		WorkflowID:     def.ID,
		CurrentStageID: def.InitialStage,
		Stages: []*models.StageVisit{
			{StageID: def.InitialStage, EnteredAt: now},
		},
		Owner:     "owner-1",
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, override := range overrides {
		override(project)
	}

	return project
}

// AtStage moves the built project to a stage by appending a visit.
func AtStage(stage string) func(*models.Project) {
	return func(p *models.Project) {
		p.CurrentStageID = stage
		p.Stages = append(p.Stages, &models.StageVisit{StageID: stage, EnteredAt: time.Now().UTC()})
	}
}

// WithApproval records a decision on the project's current visit.
func WithApproval(role string, status models.ApprovalStatus) func(*models.Project) {
	return func(p *models.Project) {
		visit := p.CurrentVisit()
		visit.Approvals = append(visit.Approvals, models.Approval{
			ApproverID: "user-" + role,
			Role:       role,
			Status:     status,
			DecidedAt:  time.Now().UTC(),
		})
	}
}
