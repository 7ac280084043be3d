package testutil

import (
	"time"

	"betrounds/models"
)

// CreateTestUser creates a test user with default values
func CreateTestUser(discordID int64, username string) *models.User {
	now := time.Now()
	return &models.User{
		DiscordID: discordID,
		Username:  username,
		Balance:   100000,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateTestBalanceHistory creates a test balance history entry
func CreateTestBalanceHistory(discordID int64, transactionType models.TransactionType) *models.BalanceHistory {
	return &models.BalanceHistory{
		DiscordID:       discordID,
		BalanceBefore:   100000,
		BalanceAfter:    90000,
		ChangeAmount:    -10000,
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
	}
}

// CreateTestRound creates an open two-sided round
func CreateTestRound(messageID int64, sides ...string) *models.Round {
	if len(sides) == 0 {
		sides = []string{"Red", "Blue"}
	}
	return &models.Round{
		MessageID:        messageID,
		ChannelID:        555,
		GuildID:          777,
		CreatorDiscordID: 1,
		Sides:            sides,
		Stage:            models.RoundStageOpen,
	}
}

// CreateTestWager creates a fee-free wager
func CreateTestWager(roundID, discordID int64, side int, amount int64) *models.RoundWager {
	return &models.RoundWager{
		RoundID:      roundID,
		DiscordID:    discordID,
		SideIndex:    side,
		Amount:       amount,
		PooledAmount: amount,
	}
}
