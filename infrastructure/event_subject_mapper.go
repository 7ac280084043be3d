package infrastructure

import (
	"fmt"

	"betrounds/events"
)

// EventSubjectMapper maps bus events to NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	switch event.Type() {
	case events.EventTypeRoundStateChange:
		return "rounds.state_changed"
	case events.EventTypeRoundSettled:
		return "rounds.settled"
	case events.EventTypeWagerPlaced:
		return "rounds.wager_placed"
	case events.EventTypeBalanceChange:
		return "users.balance_changed"
	case events.EventTypeUserCreated:
		return "users.created"
	default:
		return fmt.Sprintf("unknown.%s", event.Type())
	}
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	switch subject {
	case "rounds.state_changed":
		return events.EventTypeRoundStateChange
	case "rounds.settled":
		return events.EventTypeRoundSettled
	case "rounds.wager_placed":
		return events.EventTypeWagerPlaced
	case "users.balance_changed":
		return events.EventTypeBalanceChange
	case "users.created":
		return events.EventTypeUserCreated
	default:
		return events.EventType(subject)
	}
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	return []string{
		"rounds.state_changed",
		"rounds.settled",
		"rounds.wager_placed",
		"users.balance_changed",
		"users.created",
	}
}

// EventTypes returns every event type with a subject
func (m *EventSubjectMapper) EventTypes() []events.EventType {
	subjects := m.GetAllSubjects()
	types := make([]events.EventType, 0, len(subjects))
	for _, s := range subjects {
		types = append(types, m.MapSubjectToEventType(s))
	}
	return types
}
