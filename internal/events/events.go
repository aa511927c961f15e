// Package events publishes ledger change notifications to a message broker so
// other services can react to new expenses and membership changes.
package events

import (
	"context"
	"encoding/json"
	"time"

	"splitledger/internal/logger"
)

// Event types. The type doubles as the routing key.
const (
	ExpenseCreated = "expense.created"
	ExpenseUpdated = "expense.updated"
	ExpenseDeleted = "expense.deleted"
	MemberAdded    = "member.added"
	MemberRemoved  = "member.removed"
	GroupDeleted   = "group.deleted"
)

// Event is the payload published for every ledger change.
type Event struct {
	Type       string    `json:"type"`
	GroupID    string    `json:"group_id"`
	ResourceID string    `json:"resource_id"`
	ActorID    string    `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New returns an event of the given type stamped with the current time.
func New(eventType, groupID, resourceID, actorID string) Event {
	return Event{
		Type:       eventType,
		GroupID:    groupID,
		ResourceID: resourceID,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}

// Body returns the JSON encoding of the event.
func (e Event) Body() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

// Publish logs the event at debug level and discards it.
func (NopPublisher) Publish(_ context.Context, event Event) error {
	logger.Named("events").Debugw("event dropped, no broker configured", "type", event.Type, "group_id", event.GroupID)
	return nil
}

// Close is a no-op.
func (NopPublisher) Close() error { return nil }

// PublishAsync hands event to pub in the background. Publishing failures are
// logged and never reach the caller, so a broker outage cannot fail a write
// that has already been committed.
func PublishAsync(pub Publisher, event Event) {
	if pub == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := pub.Publish(ctx, event); err != nil {
			logger.Named("events").Warnw("failed to publish event",
				"type", event.Type,
				"group_id", event.GroupID,
				"resource_id", event.ResourceID,
				"error", err,
			)
		}
	}()
}
