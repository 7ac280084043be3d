package service

import (
	"context"
	"time"

	"betrounds/events"
	"betrounds/models"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	// GetByDiscordID retrieves a user by their Discord ID, nil if absent
	GetByDiscordID(ctx context.Context, discordID int64) (*models.User, error)

	// CreateIfMissing inserts the user with initialBalance unless they exist.
	// created reports whether this call inserted the row.
	CreateIfMissing(ctx context.Context, discordID int64, username string, initialBalance int64) (user *models.User, created bool, err error)

	// AddBalance credits amount and returns the new balance
	AddBalance(ctx context.Context, discordID int64, amount int64) (int64, error)

	// DeductBalance debits amount only if the balance covers it and returns
	// the new balance. Fails with ErrInsufficientFunds otherwise.
	DeductBalance(ctx context.Context, discordID int64, amount int64) (int64, error)
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// GetByUser returns the most recent entries for a user
	GetByUser(ctx context.Context, discordID int64, limit int) ([]*models.BalanceHistory, error)

	// GetByRelated returns every entry tied to the given entity
	GetByRelated(ctx context.Context, relatedType models.RelatedType, relatedID int64) ([]*models.BalanceHistory, error)
}

// RoundRepository defines the interface for rounds and their wagers
type RoundRepository interface {
	Create(ctx context.Context, round *models.Round) error
	GetByID(ctx context.Context, messageID int64) (*models.Round, error)
	GetUnresolved(ctx context.Context) ([]*models.Round, error)

	// MarkStopped moves an open round to stopped. No-op for any other stage.
	MarkStopped(ctx context.Context, messageID int64, at time.Time) (bool, error)

	// MarkResolved records the outcome. Fails with ErrRoundResolved if the
	// round already has one.
	MarkResolved(ctx context.Context, messageID int64, outcome models.Outcome, at time.Time) error

	// CreateWager inserts a wager. Fails with ErrAlreadyWagered when the
	// participant already has one in the round.
	CreateWager(ctx context.Context, wager *models.RoundWager) error
	GetWager(ctx context.Context, roundID, discordID int64) (*models.RoundWager, error)
	GetWagers(ctx context.Context, roundID int64) ([]*models.RoundWager, error)
	SetWagerPayout(ctx context.Context, wagerID int64, payout int64) error
}

// UnitOfWork scopes a set of repositories to one database transaction
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	UserRepository() UserRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	RoundRepository() RoundRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates a fresh UnitOfWork per operation
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// EventPublisher defines the interface for publishing events
type EventPublisher interface {
	Publish(event events.Event)
}

// UserService defines the interface for user operations
type UserService interface {
	// GetOrCreateUser retrieves an existing user or creates a new one with the starting balance
	GetOrCreateUser(ctx context.Context, discordID int64, username string) (*models.User, error)

	// GetHistory returns the most recent ledger movements for a user
	GetHistory(ctx context.Context, discordID int64, limit int) ([]*models.BalanceHistory, error)
}

// RoundService is the ledger side of a betting round. Every method is one
// transaction against the store.
type RoundService interface {
	CreateRound(ctx context.Context, round *models.Round) error
	HasWagered(ctx context.Context, roundID, discordID int64) (bool, error)
	PlaceWager(ctx context.Context, req WagerRequest) (*models.RoundWager, error)
	RoundOdds(ctx context.Context, roundID int64) (*models.RoundOdds, error)
	MarkStopped(ctx context.Context, roundID int64) error
	Settle(ctx context.Context, roundID int64, outcome models.Outcome) (*models.Settlement, error)

	// AbandonUnresolved cancels rounds left open by a previous process
	AbandonUnresolved(ctx context.Context) ([]*models.Settlement, error)
}

// WagerRequest carries one participant's stake
type WagerRequest struct {
	RoundID   int64
	DiscordID int64
	Username  string
	SideIndex int
	Amount    int64
}
