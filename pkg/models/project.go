package models

import "time"

// ApprovalStatus is the decision recorded against a stage visit.
type ApprovalStatus string

const (
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// Approval is a role-scoped decision recorded against a specific stage visit.
type Approval struct {
	ApproverID string         `json:"approver_id" validate:"required"`
	Role       string         `json:"role"        validate:"required"`
	Status     ApprovalStatus `json:"status"      validate:"required,oneof=APPROVED REJECTED"`
	Comment    string         `json:"comment,omitempty"`
	DecidedAt  time.Time      `json:"decided_at"`
}

// StageVisit is one entry in a project's stage history. History is
// append-only: moving to a new stage appends a visit and never rewrites
// approvals of previous visits.
type StageVisit struct {
	StageID   string     `json:"stage_id" validate:"required"`
	EnteredAt time.Time  `json:"entered_at"`
	Approvals []Approval `json:"approvals"`
}

// DecisionForRole returns the approval recorded by the given role during
// this visit, or nil when the role has not decided yet.
func (v *StageVisit) DecisionForRole(role string) *Approval {
	for i := range v.Approvals {
		if v.Approvals[i].Role == role {
			return &v.Approvals[i]
		}
	}

	return nil
}

// WorkflowSnapshot is a frozen copy of the gating-relevant subgraph of a
// workflow definition, bound to a single project. While present it shields
// the project from subsequent edits to the shared definition.
type WorkflowSnapshot struct {
	WorkflowID   string    `json:"workflow_id"`
	Version      int       `json:"version"`
	TakenAt      time.Time `json:"taken_at"`
	Stages       []string  `json:"stages"`
	InitialStage string    `json:"initial_stage"`

	Transitions       map[string][]TransitionRule `json:"transitions"`
	RequiredApprovals map[string][]string         `json:"required_approvals"`
	FileRequirements  map[string][]FileRule       `json:"file_requirements"`
	Notifications     map[string][]string         `json:"notifications"`
	Visibility        map[string]Visibility       `json:"visibility"`
}

// SnapshotOf freezes the gating-relevant subgraph of a definition.
func SnapshotOf(def *WorkflowDefinition, takenAt time.Time) *WorkflowSnapshot {
	frozen := def.Clone()

	return &WorkflowSnapshot{
		WorkflowID:        frozen.ID,
		Version:           frozen.Version,
		TakenAt:           takenAt,
		Stages:            frozen.Stages,
		InitialStage:      frozen.InitialStage,
		Transitions:       frozen.Transitions,
		RequiredApprovals: frozen.RequiredApprovals,
		FileRequirements:  frozen.FileRequirements,
		Notifications:     frozen.Notifications,
		Visibility:        frozen.Visibility,
	}
}

// Definition materializes the snapshot back into a definition the engine
// can resolve against. The returned value is a copy.
func (s *WorkflowSnapshot) Definition() *WorkflowDefinition {
	def := &WorkflowDefinition{
		ID:                s.WorkflowID,
		Name:              s.WorkflowID,
		Version:           s.Version,
		Stages:            s.Stages,
		InitialStage:      s.InitialStage,
		Transitions:       s.Transitions,
		RequiredApprovals: s.RequiredApprovals,
		FileRequirements:  s.FileRequirements,
		Notifications:     s.Notifications,
		Visibility:        s.Visibility,
	}

	return def.Clone()
}

// Project is a business project moving through a workflow's stages.
type Project struct {
	ID             string `json:"id"               validate:"required"`
	Name           string `json:"name"             validate:"required,min=3"`
	WorkflowID     string `json:"workflow_id"      validate:"required"`
	CurrentStageID string `json:"current_stage_id" validate:"required"`

	WorkflowSnapshot *WorkflowSnapshot `json:"workflow_snapshot,omitempty"`
	Stages           []*StageVisit     `json:"stages"`
	RevisionCount    int               `json:"revision_count"`
	Owner            string            `json:"owner,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// CurrentVisit returns the stage-history entry for the current stage visit,
// or nil when the project has no history yet.
func (p *Project) CurrentVisit() *StageVisit {
	for i := len(p.Stages) - 1; i >= 0; i-- {
		if p.Stages[i].StageID == p.CurrentStageID {
			return p.Stages[i]
		}
	}

	return nil
}

// ProjectID implements ProjectView.
func (p *Project) ProjectID() string { return p.ID }

// CurrentStage implements ProjectView.
func (p *Project) CurrentStage() string { return p.CurrentStageID }

// Actionable implements ProjectView. Live projects accept actions.
func (p *Project) Actionable() bool { return true }

// ProjectView is the read surface the action resolver works against. Live
// projects are actionable; point-in-time snapshot views are not, and the
// resolver returns the zero ActionSet for them without consulting the graph.
type ProjectView interface {
	ProjectID() string
	CurrentStage() string
	CurrentVisit() *StageVisit
	Actionable() bool
}
