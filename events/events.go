package events

import (
	"context"
	"sync"

	"betrounds/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange    EventType = "balance_change"
	EventTypeUserCreated      EventType = "user_created"
	EventTypeWagerPlaced      EventType = "wager_placed"
	EventTypeRoundStateChange EventType = "round_state_change"
	EventTypeRoundSettled     EventType = "round_settled"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          int64                  `json:"user_id"`
	OldBalance      int64                  `json:"old_balance"`
	NewBalance      int64                  `json:"new_balance"`
	TransactionType models.TransactionType `json:"transaction_type"`
	ChangeAmount    int64                  `json:"change_amount"`
	RoundID         int64                  `json:"round_id,omitempty"`
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// UserCreatedEvent is emitted when a participant's ledger row is first created
type UserCreatedEvent struct {
	DiscordID      int64  `json:"discord_id"`
	Username       string `json:"username"`
	InitialBalance int64  `json:"initial_balance"`
}

func (e UserCreatedEvent) Type() EventType {
	return EventTypeUserCreated
}

// WagerPlacedEvent is emitted after a wager commits
type WagerPlacedEvent struct {
	RoundID      int64 `json:"round_id"`
	DiscordID    int64 `json:"discord_id"`
	SideIndex    int   `json:"side_index"`
	Amount       int64 `json:"amount"`
	PooledAmount int64 `json:"pooled_amount"`
}

func (e WagerPlacedEvent) Type() EventType {
	return EventTypeWagerPlaced
}

// RoundStateChangeEvent represents a round lifecycle transition
type RoundStateChangeEvent struct {
	RoundID   int64             `json:"round_id"`
	ChannelID int64             `json:"channel_id"`
	OldStage  models.RoundStage `json:"old_stage"`
	NewStage  models.RoundStage `json:"new_stage"`
}

func (e RoundStateChangeEvent) Type() EventType {
	return EventTypeRoundStateChange
}

// RoundSettledEvent summarises a committed settlement
type RoundSettledEvent struct {
	RoundID     int64              `json:"round_id"`
	Outcome     models.OutcomeKind `json:"outcome"`
	WinningSide int                `json:"winning_side,omitempty"`
	WagerCount  int                `json:"wager_count"`
	TotalPool   int64              `json:"total_pool"`
	TotalPaid   int64              `json:"total_paid"`
}

func (e RoundSettledEvent) Type() EventType {
	return EventTypeRoundSettled
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every given event type
func (b *Bus) SubscribeAll(handler Handler, eventTypes ...EventType) {
	for _, eventType := range eventTypes {
		b.Subscribe(eventType, handler)
	}
}

// Emit publishes an event to all registered handlers. Handlers run on their
// own goroutines and a panicking handler is logged, not propagated.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// TransactionalBus holds events raised inside a unit of work until the
// transaction commits.
type TransactionalBus struct {
	real    *Bus
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	b.pending = append(b.pending, e)
}

// Flush is called after a successful commit
func (b *TransactionalBus) Flush(ctx context.Context) error {
	// Detached so handlers outlive the request that committed
	eventCtx := context.WithoutCancel(ctx)

	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}

	log.WithField("eventCount", len(b.pending)).Debug("Flushed transactional events")
	b.pending = nil
	return nil
}

// Discard drops pending events after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}
