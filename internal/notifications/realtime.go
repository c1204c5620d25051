package notifications

import (
	"context"

	"github.com/pinkypartner/pinkypartner/internal/realtime"
)

// EventNotificationCreated is the realtime event name for new notifications.
const EventNotificationCreated = "notification.created"

// RealtimeSender is the subset of realtime.Hub used for in-app delivery.
type RealtimeSender interface {
	SendToUser(stream, userID string, message realtime.Message)
}

// RealtimeDispatcher pushes messages to the recipient's open websocket connections.
type RealtimeDispatcher struct {
	hub RealtimeSender
}

// NewRealtimeDispatcher constructs a RealtimeDispatcher.
func NewRealtimeDispatcher(hub RealtimeSender) *RealtimeDispatcher {
	return &RealtimeDispatcher{hub: hub}
}

// Send implements Dispatcher.
func (d *RealtimeDispatcher) Send(_ context.Context, msg Message, _ Tokens) error {
	if msg.RecipientUserID == "" {
		return ErrNoRecipient
	}
	if d.hub == nil {
		return nil
	}
	d.hub.SendToUser(realtime.StreamNotifications, msg.RecipientUserID, realtime.Message{
		Event: EventNotificationCreated,
		Data:  msg,
	})
	return nil
}
