package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"betrounds/events"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const publishTimeout = 5 * time.Second

// MessagePublisher sends raw payloads to a subject
type MessagePublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// PublishRecorder observes publish results
type PublishRecorder interface {
	RecordEventPublished(subject string, err error)
}

// EventEnvelope wraps every event published to the message bus
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	Timestamp     time.Time       `json:"timestamp"`
	SourceService string          `json:"source_service"`
	Payload       json.RawMessage `json:"payload"`
}

// EventBridge forwards committed bus events to NATS. Delivery is best effort;
// a failed publish is logged and never affects the ledger.
type EventBridge struct {
	publisher     MessagePublisher
	subjectMapper *EventSubjectMapper
	recorder      PublishRecorder
}

// NewEventBridge creates a bridge. recorder may be nil.
func NewEventBridge(publisher MessagePublisher, subjectMapper *EventSubjectMapper, recorder PublishRecorder) *EventBridge {
	return &EventBridge{
		publisher:     publisher,
		subjectMapper: subjectMapper,
		recorder:      recorder,
	}
}

// Subscribe registers the bridge for every mapped event type
func (b *EventBridge) Subscribe(bus *events.Bus) {
	bus.SubscribeAll(b.handle, b.subjectMapper.EventTypes()...)
}

func (b *EventBridge) handle(ctx context.Context, event events.Event) {
	subject := b.subjectMapper.MapEventToSubject(event)

	data, err := b.encode(event)
	if err == nil {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err = b.publisher.Publish(pubCtx, subject, data)
		cancel()
	}

	if b.recorder != nil {
		b.recorder.RecordEventPublished(subject, err)
	}
	if err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"subject":   subject,
			"error":     err,
		}).Error("Failed to forward event to NATS")
	}
}

func (b *EventBridge) encode(event events.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:       uuid.New().String(),
		EventType:     string(event.Type()),
		Timestamp:     time.Now().UTC(),
		SourceService: "betrounds",
		Payload:       payload,
	}
	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event envelope: %w", err)
	}
	return data, nil
}
