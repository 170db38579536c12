package services

import (
	"context"

	"github.com/google/uuid"

	redisclient "github.com/voxlane/voxlane-backend/internal/clients/redis"
	"github.com/voxlane/voxlane-backend/internal/pkg/logger"
	"github.com/voxlane/voxlane-backend/internal/realtime"
)

// Notifier pushes domain events to connected clients. Events go through the
// redis bus when one is configured so every instance's hub sees them;
// otherwise they are broadcast to the local hub directly. Delivery is best
// effort and never fails the calling operation.
type Notifier interface {
	ProjectCreated(ctx context.Context, userID uuid.UUID, projectID uuid.UUID)
	ProjectDeleted(ctx context.Context, userID uuid.UUID, projectID uuid.UUID)
	ProjectConfigSaved(ctx context.Context, userID uuid.UUID, projectID uuid.UUID, version int)
	PhoneNumberAssigned(ctx context.Context, userID uuid.UUID, projectID uuid.UUID, number string)
	PhoneNumberReleased(ctx context.Context, userID uuid.UUID, number string)
	PlanUpdated(ctx context.Context, userID uuid.UUID, tier string)
}

type notifier struct {
	log *logger.Logger
	hub *realtime.Hub
	bus redisclient.EventBus
}

func NewNotifier(log *logger.Logger, hub *realtime.Hub, bus redisclient.EventBus) Notifier {
	return &notifier{
		log: log.With("service", "Notifier"),
		hub: hub,
		bus: bus,
	}
}

func (n *notifier) emit(ctx context.Context, msg realtime.Message) {
	if n.bus != nil {
		if err := n.bus.Publish(ctx, msg); err == nil {
			return
		} else {
			n.log.Warn("Event bus publish failed, falling back to local hub", "event", msg.Event, "error", err)
		}
	}
	if n.hub != nil {
		n.hub.Broadcast(msg)
	}
}

func (n *notifier) ProjectCreated(ctx context.Context, userID uuid.UUID, projectID uuid.UUID) {
	n.emit(ctx, realtime.Message{
		Channel: realtime.UserChannel(userID),
		Event:   realtime.EventProjectCreated,
		Data:    map[string]any{"project_id": projectID},
	})
}

func (n *notifier) ProjectDeleted(ctx context.Context, userID uuid.UUID, projectID uuid.UUID) {
	n.emit(ctx, realtime.Message{
		Channel: realtime.UserChannel(userID),
		Event:   realtime.EventProjectDeleted,
		Data:    map[string]any{"project_id": projectID},
	})
}

func (n *notifier) ProjectConfigSaved(ctx context.Context, userID uuid.UUID, projectID uuid.UUID, version int) {
	n.emit(ctx, realtime.Message{
		Channel: realtime.ProjectChannel(projectID),
		Event:   realtime.EventProjectConfigSaved,
		Data:    map[string]any{"project_id": projectID, "version": version},
	})
	n.emit(ctx, realtime.Message{
		Channel: realtime.UserChannel(userID),
		Event:   realtime.EventProjectConfigSaved,
		Data:    map[string]any{"project_id": projectID, "version": version},
	})
}

func (n *notifier) PhoneNumberAssigned(ctx context.Context, userID uuid.UUID, projectID uuid.UUID, number string) {
	n.emit(ctx, realtime.Message{
		Channel: realtime.UserChannel(userID),
		Event:   realtime.EventPhoneNumberAssigned,
		Data:    map[string]any{"project_id": projectID, "number": number},
	})
}

func (n *notifier) PhoneNumberReleased(ctx context.Context, userID uuid.UUID, number string) {
	n.emit(ctx, realtime.Message{
		Channel: realtime.UserChannel(userID),
		Event:   realtime.EventPhoneNumberReleased,
		Data:    map[string]any{"number": number},
	})
}

func (n *notifier) PlanUpdated(ctx context.Context, userID uuid.UUID, tier string) {
	n.emit(ctx, realtime.Message{
		Channel: realtime.UserChannel(userID),
		Event:   realtime.EventPlanUpdated,
		Data:    map[string]any{"tier": tier},
	})
}
