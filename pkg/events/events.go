// Package events defines event types published on project and definition
// lifecycle changes.
package events

import (
	"time"
)

type EventType string

// Topic is the single stream all lifecycle events are published on.
const Topic = "flowline.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ProjectStageEnteredEvent EventType = "project.stage.entered"
	ProjectRevisedEvent      EventType = "project.revised"
	ProjectRestoredEvent     EventType = "project.restored"
	WorkflowSwitchedEvent    EventType = "project.workflow.switched"
	DefinitionActivatedEvent EventType = "definition.activated"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	ProjectID string         `json:"project_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ProjectStageEntered fires when a project arrives at a stage, carrying the
// roles that should be alerted per the governing workflow's notification map.
type ProjectStageEntered struct {
	BaseEvent

	WorkflowID  string   `json:"workflow_id"`
	StageID     string   `json:"stage_id"`
	NotifyRoles []string `json:"notify_roles,omitempty"`
}

func (e ProjectStageEntered) GetType() EventType {
	return ProjectStageEnteredEvent
}

// ProjectRevised fires after a snapshot is taken and the project is moved to
// its revision target stage.
type ProjectRevised struct {
	BaseEvent

	RevisionNumber int    `json:"revision_number"`
	Reason         string `json:"reason"`
	TargetStageID  string `json:"target_stage_id"`
}

func (e ProjectRevised) GetType() EventType {
	return ProjectRevisedEvent
}

// ProjectRestored fires after a project is overwritten from a stored revision.
type ProjectRestored struct {
	BaseEvent

	RestoredRevision int `json:"restored_revision"`
	SafetyRevision   int `json:"safety_revision"`
}

func (e ProjectRestored) GetType() EventType {
	return ProjectRestoredEvent
}

// WorkflowSwitched fires when a project is rebound to a different workflow
// definition.
type WorkflowSwitched struct {
	BaseEvent

	FromWorkflowID string `json:"from_workflow_id"`
	ToWorkflowID   string `json:"to_workflow_id"`
	StageID        string `json:"stage_id"`
}

func (e WorkflowSwitched) GetType() EventType {
	return WorkflowSwitchedEvent
}

// DefinitionActivated fires when the "active" alias is repointed to a
// definition version.
type DefinitionActivated struct {
	BaseEvent

	DefinitionID string `json:"definition_id"`
	Version      int    `json:"version"`
}

func (e DefinitionActivated) GetType() EventType {
	return DefinitionActivatedEvent
}
