package repository

import (
	"context"
	"errors"
	"fmt"

	"betrounds/database"
	"betrounds/models"
	"betrounds/service"

	"github.com/jackc/pgx/v5"
)

// UserRepository implements the UserRepository interface
type UserRepository struct {
	q queryable
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{q: db.Pool}
}

// newUserRepositoryWithTx creates a new user repository with a transaction
func newUserRepositoryWithTx(tx queryable) *UserRepository {
	return &UserRepository{q: tx}
}

// GetByDiscordID retrieves a user by their Discord ID
func (r *UserRepository) GetByDiscordID(ctx context.Context, discordID int64) (*models.User, error) {
	query := `
		SELECT discord_id, username, balance, created_at, updated_at
		FROM users
		WHERE discord_id = $1
	`

	user, err := scanUser(r.q.QueryRow(ctx, query, discordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by discord ID %d: %w", discordID, err)
	}
	return user, nil
}

// CreateIfMissing inserts the user unless a row already exists. Two
// concurrent callers for the same ID both get the row back; only one sees
// created == true.
func (r *UserRepository) CreateIfMissing(ctx context.Context, discordID int64, username string, initialBalance int64) (*models.User, bool, error) {
	query := `
		INSERT INTO users (discord_id, username, balance)
		VALUES ($1, $2, $3)
		ON CONFLICT (discord_id) DO NOTHING
		RETURNING discord_id, username, balance, created_at, updated_at
	`

	user, err := scanUser(r.q.QueryRow(ctx, query, discordID, username, initialBalance))
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("failed to create user with discord ID %d: %w", discordID, err)
	}

	user, err = r.GetByDiscordID(ctx, discordID)
	if err != nil {
		return nil, false, err
	}
	if user == nil {
		return nil, false, fmt.Errorf("user %d vanished after insert conflict", discordID)
	}
	return user, false, nil
}

// AddBalance adds to a user's balance atomically and returns the new balance
func (r *UserRepository) AddBalance(ctx context.Context, discordID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE users
		SET balance = balance + $1, updated_at = NOW()
		WHERE discord_id = $2
		RETURNING balance
	`

	var balance int64
	err := r.q.QueryRow(ctx, query, amount, discordID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("user %d: %w", discordID, service.ErrUserNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to add balance for user %d: %w", discordID, err)
	}
	return balance, nil
}

// DeductBalance deducts from a user's balance atomically, failing if insufficient funds
func (r *UserRepository) DeductBalance(ctx context.Context, discordID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}

	query := `
		UPDATE users
		SET balance = balance - $1, updated_at = NOW()
		WHERE discord_id = $2 AND balance >= $1
		RETURNING balance
	`

	var balance int64
	err := r.q.QueryRow(ctx, query, amount, discordID).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to deduct balance for user %d: %w", discordID, err)
	}

	// Either the user is missing or the balance does not cover the amount
	user, err := r.GetByDiscordID(ctx, discordID)
	if err != nil {
		return 0, fmt.Errorf("failed to check user: %w", err)
	}
	if user == nil {
		return 0, fmt.Errorf("user %d: %w", discordID, service.ErrUserNotFound)
	}
	return 0, fmt.Errorf("have %d, need %d: %w", user.Balance, amount, service.ErrInsufficientFunds)
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.DiscordID,
		&user.Username,
		&user.Balance,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
