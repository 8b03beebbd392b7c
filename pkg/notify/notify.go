// Package notify bridges stage-entry notifications onto the event bus.
package notify

import (
	"context"
	"time"

	"github.com/craftdesk/flowline/pkg/eventbus"
	"github.com/craftdesk/flowline/pkg/events"
)

// Sink publishes a ProjectStageEntered event for each stage a project enters
// that has roles configured for notification.
type Sink struct {
	bus eventbus.EventBus
}

func NewSink(bus eventbus.EventBus) *Sink {
	return &Sink{bus: bus}
}

// Notify publishes the stage-entry event keyed by project so partitioned
// transports keep per-project ordering.
func (s *Sink) Notify(ctx context.Context, roles []string, projectID, stageID string) error {
	event := events.ProjectStageEntered{
		BaseEvent: events.BaseEvent{
			ID:        s.bus.GenerateID(),
			Type:      events.ProjectStageEnteredEvent,
			Timestamp: time.Now().UTC(),
			ProjectID: projectID,
		},
		StageID:     stageID,
		NotifyRoles: roles,
	}

	return s.bus.Publish(ctx, projectID, event)
}
