package service

import (
	"context"
	"fmt"

	"betrounds/events"
	"betrounds/models"
)

// RecordBalanceChange records a balance history entry and queues the matching
// events on the unit of work. Every ledger mutation goes through here.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	var roundID int64
	if history.RelatedType != nil && *history.RelatedType == models.RelatedTypeRound && history.RelatedID != nil {
		roundID = *history.RelatedID
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          history.DiscordID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
		RoundID:         roundID,
	})

	if history.TransactionType == models.TransactionTypeInitial {
		username, _ := history.TransactionMetadata["username"].(string)
		uow.EventBus().Publish(events.UserCreatedEvent{
			DiscordID:      history.DiscordID,
			Username:       username,
			InitialBalance: history.BalanceAfter,
		})
	}

	return nil
}

// ensureUser lazily creates the ledger row for a participant and records the
// starting grant the first time they are seen.
func ensureUser(ctx context.Context, uow UnitOfWork, discordID int64, username string, startingBalance int64) (*models.User, error) {
	user, created, err := uow.UserRepository().CreateIfMissing(ctx, discordID, username, startingBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	if !created {
		return user, nil
	}

	history := &models.BalanceHistory{
		DiscordID:       discordID,
		BalanceBefore:   0,
		BalanceAfter:    user.Balance,
		ChangeAmount:    user.Balance,
		TransactionType: models.TransactionTypeInitial,
		TransactionMetadata: map[string]any{
			"username": username,
		},
	}
	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, fmt.Errorf("failed to record starting balance: %w", err)
	}
	return user, nil
}

func roundRef(roundID int64) (*int64, *models.RelatedType) {
	id := roundID
	relatedType := models.RelatedTypeRound
	return &id, &relatedType
}
