package domain

import "time"

// EventType identifies what kind of change a pushed event describes.
// EventConnected is the join acknowledgement; clients must not refetch on it.
type EventType string

const (
	EventConnected   EventType = "connected"
	EventMenuUpdate  EventType = "menu_update"
	EventDishCreated EventType = "dish_created"
	EventDishUpdated EventType = "dish_updated"
	EventDishDeleted EventType = "dish_deleted"
)

// ChangeEvent is the payload pushed to live viewers of a tenant's menu.
type ChangeEvent struct {
	Type          EventType `json:"type"`
	Tenant        string    `json:"tenant"`
	Timestamp     time.Time `json:"timestamp"`
	EntityID      string    `json:"entity_id,omitempty"`
	ChangedFields []string  `json:"changed_fields,omitempty"`
}

// NewChangeEvent builds a timestamped event for a tenant channel.
// Parameters:
//   - t: event type.
//   - tenant: restaurant slug identifying the channel.
//   - entityID: affected entity ID; empty for whole-menu events.
//   - changedFields: names of the mutated fields, if known.
// Returns:
//   - ChangeEvent: populated event.
func NewChangeEvent(t EventType, tenant, entityID string, changedFields []string) ChangeEvent {
	return ChangeEvent{
		Type:          t,
		Tenant:        tenant,
		Timestamp:     time.Now().UTC(),
		EntityID:      entityID,
		ChangedFields: changedFields,
	}
}
