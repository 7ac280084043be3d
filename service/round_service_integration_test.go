package service_test

import (
	"context"
	"sync"
	"testing"

	"betrounds/events"
	"betrounds/models"
	"betrounds/repository"
	"betrounds/repository/testutil"
	"betrounds/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntegrationService(t *testing.T, cfg service.RoundConfig) (service.RoundService, *repository.UserRepository, *repository.BalanceHistoryRepository) {
	t.Helper()
	testDB := testutil.SetupTestDatabase(t)
	factory := repository.NewUnitOfWorkFactory(testDB.DB, events.NewBus())
	return service.NewRoundService(factory, cfg),
		repository.NewUserRepository(testDB.DB),
		repository.NewBalanceHistoryRepository(testDB.DB)
}

func TestRoundSettlement_Integration(t *testing.T) {
	ctx := context.Background()
	rounds, users, history := newIntegrationService(t, service.RoundConfig{
		StartingBalance:    1000,
		FallbackMultiplier: service.DefaultFallbackMultiplier,
	})

	round := &models.Round{MessageID: 500, ChannelID: 1, CreatorDiscordID: 9, Sides: []string{"Red", "Blue"}}
	require.NoError(t, rounds.CreateRound(ctx, round))

	_, err := rounds.PlaceWager(ctx, service.WagerRequest{RoundID: 500, DiscordID: 1, Username: "a", SideIndex: 0, Amount: 100})
	require.NoError(t, err)
	_, err = rounds.PlaceWager(ctx, service.WagerRequest{RoundID: 500, DiscordID: 2, Username: "b", SideIndex: 1, Amount: 300})
	require.NoError(t, err)

	odds, err := rounds.RoundOdds(ctx, 500)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, odds.Sides[0].Multiplier, 1e-9)
	assert.Equal(t, int64(400), odds.TotalPool)

	require.NoError(t, rounds.MarkStopped(ctx, 500))

	settlement, err := rounds.Settle(ctx, 500, models.SideWins(0))
	require.NoError(t, err)
	require.Len(t, settlement.Payouts, 2)

	a, err := users.GetByDiscordID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1300), a.Balance)

	b, err := users.GetByDiscordID(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(700), b.Balance)

	_, err = rounds.Settle(ctx, 500, models.Draw())
	assert.ErrorIs(t, err, service.ErrRoundResolved)

	entries, err := history.GetByRelated(ctx, models.RelatedTypeRound, 500)
	require.NoError(t, err)
	// two debits and one payout; the loser gets no entry
	assert.Len(t, entries, 3)
}

func TestPlaceWager_ConcurrentDuplicates_Integration(t *testing.T) {
	ctx := context.Background()
	rounds, users, _ := newIntegrationService(t, service.RoundConfig{
		StartingBalance:    1000,
		FallbackMultiplier: service.DefaultFallbackMultiplier,
	})

	require.NoError(t, rounds.CreateRound(ctx, &models.Round{MessageID: 600, ChannelID: 1, Sides: []string{"Yes", "No"}}))
	_, _, err := users.CreateIfMissing(ctx, 5, "e", 1000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(side int) {
			defer wg.Done()
			_, err := rounds.PlaceWager(ctx, service.WagerRequest{RoundID: 600, DiscordID: 5, Username: "e", SideIndex: side % 2, Amount: 100})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, service.ErrAlreadyWagered)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	user, err := users.GetByDiscordID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(900), user.Balance)
}

func TestCancelledRoundRefunds_Integration(t *testing.T) {
	ctx := context.Background()
	rounds, users, _ := newIntegrationService(t, service.RoundConfig{
		StartingBalance:    1000,
		FeePercent:         10,
		FallbackMultiplier: service.DefaultFallbackMultiplier,
	})

	require.NoError(t, rounds.CreateRound(ctx, &models.Round{MessageID: 700, ChannelID: 1, Sides: []string{"Yes", "No"}}))
	_, err := rounds.PlaceWager(ctx, service.WagerRequest{RoundID: 700, DiscordID: 3, Username: "c", SideIndex: 0, Amount: 500})
	require.NoError(t, err)

	_, err = rounds.PlaceWager(ctx, service.WagerRequest{RoundID: 700, DiscordID: 3, Username: "c", SideIndex: 1, Amount: 600})
	assert.ErrorIs(t, err, service.ErrAlreadyWagered)

	_, err = rounds.PlaceWager(ctx, service.WagerRequest{RoundID: 700, DiscordID: 4, Username: "d", SideIndex: 1, Amount: 2000})
	assert.ErrorIs(t, err, service.ErrInsufficientFunds)

	settlements, err := rounds.AbandonUnresolved(ctx)
	require.NoError(t, err)
	require.Len(t, settlements, 1)

	user, err := users.GetByDiscordID(ctx, 3)
	require.NoError(t, err)
	// the fee stays withheld on refund
	assert.Equal(t, int64(950), user.Balance)

	// the failed wager rolled back the lazy account creation too
	d, err := users.GetByDiscordID(ctx, 4)
	require.NoError(t, err)
	assert.Nil(t, d)
}
